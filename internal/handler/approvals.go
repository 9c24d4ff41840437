package handler

import (
	"net/http"

	"invoiceflow/internal/dto"
	"invoiceflow/internal/middleware"
	"invoiceflow/internal/service"
	"invoiceflow/internal/workflow"

	"github.com/gin-gonic/gin"
)

type ApprovalsHandler struct{ svc service.ApprovalService }

func NewApprovalsHandler(svc service.ApprovalService) *ApprovalsHandler {
	return &ApprovalsHandler{svc: svc}
}

// Transition returns the handler for one workflow action. The body is
// optional; reject requires a comment.
//
// @Summary      Apply a workflow action
// @Description  submit: Draft→Submitted. approve: Submitted→Approved→Invoiced. reject: Submitted|Approved→Rejected (comment required). reopen: Rejected→Draft.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Param        id     path string                true  "Invoice UUID"
// @Param        action path string                true  "submit | approve | reject | reopen"
// @Param        body   body dto.TransitionRequest false "Comment and approver role"
// @Success      200 {object} dto.TransitionResponse
// @Failure      400 {object} apierror.APIError
// @Failure      403 {object} apierror.APIError
// @Failure      404 {object} apierror.APIError
// @Router       /api/invoices/{id}/{action} [post]
func (h *ApprovalsHandler) Transition(action workflow.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id", "Invoice")
		if !ok {
			return
		}
		var req dto.TransitionRequest
		if !bindAndValidate(c, &req, true) {
			return
		}
		resp, err := h.svc.Transition(c.Request.Context(), middleware.GetIdentity(c), id, action, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
