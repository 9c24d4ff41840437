package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/infra"

	"github.com/gin-gonic/gin"
)

// FilesHandler serves stored objects behind signed URLs.
type FilesHandler struct{ storage infra.ObjectStorage }

func NewFilesHandler(storage infra.ObjectStorage) *FilesHandler {
	return &FilesHandler{storage: storage}
}

// Serve godoc
// @Summary      Download a stored object with a signed token
// @Tags         files
// @Produce      application/pdf
// @Param        key   path  string true "Object key"
// @Param        token query string true "Signed token"
// @Success      200 {file} binary
// @Failure      403 {object} apierror.APIError
// @Failure      404 {object} apierror.APIError
// @Router       /files/{key} [get]
func (h *FilesHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.storage.Verify(key, c.Query("token")); err != nil {
		c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("INVALID_TOKEN", "Invalid or expired link"))
		return
	}
	data, info, err := h.storage.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, infra.ErrObjectNotFound) || errors.Is(err, infra.ErrInvalidKey) {
			respondError(c, apierror.NotFound("File not found"))
			return
		}
		respondError(c, apierror.Upstream("STORAGE_ERROR", "Failed to read file", err))
		return
	}
	name := key[strings.LastIndexByte(key, '/')+1:]
	c.Header("Content-Disposition", contentDisposition(name))
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, info.ContentType, data)
}
