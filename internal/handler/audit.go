package handler

import (
	"net/http"

	"invoiceflow/internal/middleware"
	"invoiceflow/internal/service"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct{ svc service.AuditService }

func NewAuditHandler(svc service.AuditService) *AuditHandler { return &AuditHandler{svc: svc} }

// List godoc
// @Summary      Audit trail of an invoice and its items
// @Tags         audit
// @Produce      json
// @Param        id path string true "Invoice UUID"
// @Success      200 {array}  dto.AuditLogResponse
// @Failure      403 {object} apierror.APIError
// @Failure      404 {object} apierror.APIError
// @Router       /api/invoices/{id}/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	rows, err := h.svc.ListForInvoice(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
