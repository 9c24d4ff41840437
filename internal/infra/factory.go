package infra

import (
	"fmt"
	"strings"
	"time"

	"invoiceflow/internal/config"
	"invoiceflow/internal/document"
)

// NewPDFEngine picks the renderer named by PDF_ENGINE. The breaker is nil for
// engines that do not call out of process.
func NewPDFEngine(cfg *config.Config) (document.Engine, *CircuitBreaker, error) {
	switch strings.ToLower(cfg.PDFEngine) {
	case "", "chromium":
		cb := NewCircuitBreaker(DefaultCBConfig("chromium"))
		timeout := time.Duration(cfg.PDFTimeoutSeconds) * time.Second
		return NewChromiumEngine(cfg.PDFChromiumPath, timeout, cb), cb, nil
	case "fpdf":
		return NewFPDFEngine(cfg.PDFFontPath), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown PDF_ENGINE %q (want chromium or fpdf)", cfg.PDFEngine)
	}
}

// NewStorage opens the object store for rendered PDFs. Signed links are
// served by this process under PUBLIC_BASE_URL and signed with JWT_SECRET.
func NewStorage(cfg *config.Config) (*LocalStorage, error) {
	return NewLocalStorage(cfg.StoragePath, cfg.StorageBucket,
		strings.TrimRight(cfg.StoragePublicBaseURL, "/"),
		strings.TrimRight(cfg.PublicBaseURL, "/"),
		cfg.JWTSecret)
}
