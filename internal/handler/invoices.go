package handler

import (
	"net/http"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/dto"
	"invoiceflow/internal/middleware"
	"invoiceflow/internal/service"

	"github.com/gin-gonic/gin"
)

type InvoicesHandler struct{ svc service.InvoiceService }

func NewInvoicesHandler(svc service.InvoiceService) *InvoicesHandler {
	return &InvoicesHandler{svc: svc}
}

// List godoc
// @Summary      List invoices
// @Description  Paginated, newest first. Drivers only see invoices they created.
// @Tags         invoices
// @Produce      json
// @Param        page        query int    false "Page (default 1)"
// @Param        limit       query int    false "Page size (default 20, max 100)"
// @Param        status      query string false "Draft | Submitted | Approved | Invoiced | Rejected"
// @Param        partner_id  query string false "Partner UUID"
// @Success      200 {object} dto.InvoiceListResponse
// @Failure      400 {object} apierror.APIError
// @Failure      403 {object} apierror.APIError
// @Router       /api/invoices [get]
func (h *InvoicesHandler) List(c *gin.Context) {
	var q dto.ListInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, apierror.Validation("VALIDATION_ERROR", "Invalid query parameters"))
		return
	}
	if !validateStruct(c, &q) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), middleware.GetIdentity(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Create godoc
// @Summary      Create a Draft invoice
// @Description  Totals are computed from the items with the configured tax rate.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        body body dto.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} dto.CreateInvoiceResponse
// @Failure      400 {object} apierror.APIError
// @Failure      403 {object} apierror.APIError
// @Router       /api/invoices [post]
func (h *InvoicesHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !bindAndValidate(c, &req, false) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary      Invoice detail
// @Description  Invoice with items (delivery date order) and approval history.
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice UUID"
// @Success      200 {object} dto.InvoiceDetailResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/invoices/{id} [get]
func (h *InvoicesHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update godoc
// @Summary      Update a Draft invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id   path string                   true "Invoice UUID"
// @Param        body body dto.UpdateInvoiceRequest true "Fields to change"
// @Success      200 {object} dto.InvoiceResponse
// @Failure      400 {object} apierror.APIError
// @Failure      404 {object} apierror.APIError
// @Router       /api/invoices/{id} [patch]
func (h *InvoicesHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	// fields are checked by the service, after the Draft check
	var req dto.UpdateInvoiceRequest
	if !bindJSON(c, &req, true) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), middleware.GetIdentity(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddItems godoc
// @Summary      Append items to a Draft invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id   path string              true "Invoice UUID"
// @Param        body body dto.AddItemsRequest true "Items"
// @Success      201 {object} dto.InvoiceDetailResponse
// @Failure      400 {object} apierror.APIError
// @Router       /api/invoices/{id}/items [post]
func (h *InvoicesHandler) AddItems(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	var req dto.AddItemsRequest
	if !bindAndValidate(c, &req, false) {
		return
	}
	resp, err := h.svc.AddItems(c.Request.Context(), middleware.GetIdentity(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// DeleteItem godoc
// @Summary      Remove an item from a Draft invoice
// @Tags         invoices
// @Produce      json
// @Param        id     path string true "Invoice UUID"
// @Param        itemId path string true "Item UUID"
// @Success      200 {object} dto.InvoiceDetailResponse
// @Failure      400 {object} apierror.APIError
// @Failure      404 {object} apierror.APIError
// @Router       /api/invoices/{id}/items/{itemId} [delete]
func (h *InvoicesHandler) DeleteItem(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId", "Invoice item")
	if !ok {
		return
	}
	resp, err := h.svc.DeleteItem(c.Request.Context(), middleware.GetIdentity(c), id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
