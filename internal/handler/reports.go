package handler

import (
	"net/http"

	"invoiceflow/internal/dto"
	"invoiceflow/internal/middleware"
	"invoiceflow/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportsHandler struct{ svc service.ReportService }

func NewReportsHandler(svc service.ReportService) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

// Download godoc
// @Summary      Render a daily delivery report as PDF
// @Tags         reports
// @Accept       json
// @Produce      application/pdf
// @Param        body body dto.DailyReportRequest true "Report data"
// @Success      200 {file} binary
// @Failure      400 {object} apierror.APIError
// @Failure      500 {object} apierror.APIError
// @Router       /api/reports/pdf [post]
func (h *ReportsHandler) Download(c *gin.Context) {
	var req dto.DailyReportRequest
	if !bindAndValidate(c, &req, false) {
		return
	}
	pdf, err := h.svc.Download(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", contentDisposition(pdf.Filename))
	c.Data(http.StatusOK, "application/pdf", pdf.Data)
}

// Save godoc
// @Summary      Render, store and link a daily delivery report
// @Tags         reports
// @Accept       json
// @Produce      json
// @Param        body body dto.DailyReportRequest true "Report data"
// @Success      201 {object} dto.StoredPDFResponse
// @Failure      400 {object} apierror.APIError
// @Failure      500 {object} apierror.APIError
// @Router       /api/reports/pdf/save [post]
func (h *ReportsHandler) Save(c *gin.Context) {
	var req dto.DailyReportRequest
	if !bindAndValidate(c, &req, false) {
		return
	}
	resp, err := h.svc.Save(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Preview godoc
// @Summary      HTML preview of a daily delivery report
// @Tags         reports
// @Accept       json
// @Produce      html
// @Param        body body dto.DailyReportRequest true "Report data"
// @Success      200 {string} string
// @Failure      400 {object} apierror.APIError
// @Router       /api/reports/preview [post]
func (h *ReportsHandler) Preview(c *gin.Context) {
	var req dto.DailyReportRequest
	if !bindAndValidate(c, &req, false) {
		return
	}
	html, err := h.svc.HTML(c.Request.Context(), middleware.GetIdentity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// Template godoc
// @Summary      Report template source and the fields it prints
// @Tags         reports
// @Produce      json
// @Param        type path string true "Template type"
// @Success      200 {object} dto.ReportTemplateResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/reports/template/{type} [get]
func (h *ReportsHandler) Template(c *gin.Context) {
	resp, err := h.svc.Template(c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
