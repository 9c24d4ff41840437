package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"invoiceflow/internal/middleware"
	"invoiceflow/internal/service"

	"github.com/gin-gonic/gin"
)

type PDFHandler struct{ svc service.PDFService }

func NewPDFHandler(svc service.PDFService) *PDFHandler { return &PDFHandler{svc: svc} }

// Download godoc
// @Summary      Download the invoice PDF
// @Tags         pdf
// @Produce      application/pdf
// @Param        id path string true "Invoice UUID"
// @Success      200 {file} binary
// @Failure      404 {object} apierror.APIError
// @Failure      500 {object} apierror.APIError
// @Router       /api/invoices/{id}/pdf [get]
func (h *PDFHandler) Download(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	pdf, err := h.svc.Download(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", contentDisposition(pdf.Filename))
	c.Data(http.StatusOK, "application/pdf", pdf.Data)
}

// Preview godoc
// @Summary      HTML preview of the invoice template
// @Tags         pdf
// @Produce      html
// @Param        id path string true "Invoice UUID"
// @Success      200 {string} string
// @Failure      404 {object} apierror.APIError
// @Router       /api/invoices/{id}/html [get]
func (h *PDFHandler) Preview(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	html, err := h.svc.HTML(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// Save godoc
// @Summary      Render, store and link the invoice PDF
// @Description  Returns a public URL when a public base is configured, otherwise a signed URL.
// @Tags         pdf
// @Produce      json
// @Param        id path string true "Invoice UUID"
// @Success      201 {object} dto.StoredPDFResponse
// @Failure      404 {object} apierror.APIError
// @Failure      500 {object} apierror.APIError
// @Router       /api/invoices/{id}/pdf [post]
func (h *PDFHandler) Save(c *gin.Context) {
	id, ok := paramID(c, "id", "Invoice")
	if !ok {
		return
	}
	resp, err := h.svc.Save(c.Request.Context(), middleware.GetIdentity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// contentDisposition sends an ASCII fallback plus the RFC 5987 UTF-8 name,
// since partner names are usually Japanese.
func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		asciiFallback(filename), url.PathEscape(filename))
}

func asciiFallback(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			out = append(out, '_')
		case r < 0x20 || r > 0x7e:
			out = append(out, '_')
		default:
			out = append(out, byte(r))
		}
	}
	return string(out)
}
