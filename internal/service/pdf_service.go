package service

import (
	"context"
	"errors"
	"time"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/document"
	"invoiceflow/internal/dto"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/logger"
	"invoiceflow/internal/model"
	"invoiceflow/internal/rbac"
	"invoiceflow/internal/repository"
	"invoiceflow/internal/worker"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RenderedPDF is a generated invoice ready to stream.
type RenderedPDF struct {
	Filename string
	Data     []byte
}

// PDFService renders invoices to HTML and PDF and publishes them to object
// storage.
type PDFService interface {
	HTML(ctx context.Context, caller identity.Identity, id uuid.UUID) (string, error)
	Download(ctx context.Context, caller identity.Identity, id uuid.UUID) (*RenderedPDF, error)
	Save(ctx context.Context, caller identity.Identity, id uuid.UUID) (*dto.StoredPDFResponse, error)
	// RenderInvoice is the unguarded path used by the email worker.
	RenderInvoice(ctx context.Context, id uuid.UUID) (*worker.RenderedInvoice, error)
}

type pdfService struct {
	invoices repository.InvoiceRepository
	engine   document.Engine
	storage  infra.ObjectStorage
	company  document.Company
	urlTTL   time.Duration
	now      func() time.Time
}

func NewPDFService(
	invoices repository.InvoiceRepository,
	engine document.Engine,
	storage infra.ObjectStorage,
	company document.Company,
	urlTTL time.Duration,
) PDFService {
	return &pdfService{
		invoices: invoices,
		engine:   engine,
		storage:  storage,
		company:  company,
		urlTTL:   urlTTL,
		now:      time.Now,
	}
}

func (s *pdfService) HTML(ctx context.Context, caller identity.Identity, id uuid.UUID) (string, error) {
	inv, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return "", err
	}
	doc, err := s.document(inv)
	if err != nil {
		return "", apierror.Upstream("PDF_ERROR", "Failed to generate invoice PDF", err)
	}
	return doc.HTML, nil
}

func (s *pdfService) Download(ctx context.Context, caller identity.Identity, id uuid.UUID) (*RenderedPDF, error) {
	inv, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	data, err := s.render(ctx, inv)
	if err != nil {
		return nil, err
	}
	return &RenderedPDF{Filename: document.Filename(inv, partnerName(inv)), Data: data}, nil
}

// Save renders the invoice, uploads it under a dated key and returns a link:
// public when a public base URL is configured, signed otherwise.
func (s *pdfService) Save(ctx context.Context, caller identity.Identity, id uuid.UUID) (*dto.StoredPDFResponse, error) {
	inv, err := s.loadVisible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	data, err := s.render(ctx, inv)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	key, filename := document.StorageKey(inv, partnerName(inv), generatedAt)
	info, err := s.storage.Put(ctx, key, data, "application/pdf")
	if err != nil {
		return nil, apierror.Upstream("STORAGE_ERROR", "Failed to upload PDF", err)
	}
	url, expiresAt, err := s.storage.URL(key, s.urlTTL)
	if err != nil {
		return nil, apierror.Upstream("STORAGE_ERROR", "Failed to generate PDF URL", err)
	}

	logger.Ctx(ctx).Info().
		Str("invoice_id", id.String()).
		Str("key", key).
		Int64("size", info.Size).
		Msg("invoice pdf stored")

	return &dto.StoredPDFResponse{
		Success:  true,
		URL:      url,
		Path:     key,
		Filename: filename,
		Metadata: dto.StoredPDFMetadata{
			Bucket:      s.storage.Bucket(),
			Size:        info.Size,
			ContentType: info.ContentType,
			GeneratedAt: generatedAt,
			ExpiresAt:   expiresAt,
		},
	}, nil
}

func (s *pdfService) RenderInvoice(ctx context.Context, id uuid.UUID) (*worker.RenderedInvoice, error) {
	inv, err := s.invoices.FindDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.document(inv)
	if err != nil {
		return nil, err
	}
	data, err := s.engine.Render(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &worker.RenderedInvoice{
		InvoiceNo:   inv.InvoiceNo,
		PartnerName: partnerName(inv),
		Total:       doc.View.Total,
		DueDate:     doc.View.DueDate,
		Filename:    document.Filename(inv, partnerName(inv)),
		PDF:         data,
	}, nil
}

// loadVisible applies the pdf guard and the driver ownership scope.
func (s *pdfService) loadVisible(ctx context.Context, caller identity.Identity, id uuid.UUID) (*model.Invoice, error) {
	if err := rbac.Check(caller.Role, rbac.OpPDF); err != nil {
		return nil, err
	}
	inv, err := s.invoices.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("Invoice not found")
		}
		return nil, apierror.Upstream("PDF_ERROR", "Failed to generate invoice PDF", err)
	}
	if caller.Role.ScopedToOwn() && inv.CreatedBy != caller.Email {
		return nil, apierror.NotFound("Invoice not found")
	}
	return inv, nil
}

func (s *pdfService) document(inv *model.Invoice) (*document.Document, error) {
	view := document.NewInvoiceView(inv, inv.Items, s.company, s.now())
	html, err := document.RenderHTML(view)
	if err != nil {
		return nil, err
	}
	return &document.Document{View: view, HTML: html}, nil
}

func (s *pdfService) render(ctx context.Context, inv *model.Invoice) ([]byte, error) {
	doc, err := s.document(inv)
	if err != nil {
		return nil, apierror.Upstream("PDF_ERROR", "Failed to generate invoice PDF", err)
	}
	start := s.now()
	data, err := s.engine.Render(ctx, doc)
	if err != nil {
		return nil, apierror.Upstream("PDF_ERROR", "Failed to generate invoice PDF", err)
	}
	logger.Ctx(ctx).Debug().
		Str("engine", s.engine.Name()).
		Str("invoice_no", inv.InvoiceNo).
		Dur("took", s.now().Sub(start)).
		Int("bytes", len(data)).
		Msg("invoice rendered")
	return data, nil
}

func partnerName(inv *model.Invoice) string {
	if inv.Partner == nil {
		return ""
	}
	return inv.Partner.Name
}
