package service

import (
	"context"
	"strings"
	"time"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/document"
	"invoiceflow/internal/dto"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/logger"
	"invoiceflow/internal/rbac"

	"github.com/shopspring/decimal"
)

// ReportService renders drivers' daily delivery reports through the same
// engine and object storage as invoices.
type ReportService interface {
	HTML(ctx context.Context, caller identity.Identity, req dto.DailyReportRequest) (string, error)
	Download(ctx context.Context, caller identity.Identity, req dto.DailyReportRequest) (*RenderedPDF, error)
	Save(ctx context.Context, caller identity.Identity, req dto.DailyReportRequest) (*dto.StoredPDFResponse, error)
	Template(kind string) (*dto.ReportTemplateResponse, error)
}

type reportService struct {
	engine  document.Engine
	storage infra.ObjectStorage
	urlTTL  time.Duration
	now     func() time.Time
}

func NewReportService(engine document.Engine, storage infra.ObjectStorage, urlTTL time.Duration) ReportService {
	return &reportService{engine: engine, storage: storage, urlTTL: urlTTL, now: time.Now}
}

func (s *reportService) HTML(_ context.Context, caller identity.Identity, req dto.DailyReportRequest) (string, error) {
	_, doc, err := s.document(caller, req)
	if err != nil {
		return "", err
	}
	return doc.HTML, nil
}

func (s *reportService) Download(ctx context.Context, caller identity.Identity, req dto.DailyReportRequest) (*RenderedPDF, error) {
	report, doc, err := s.document(caller, req)
	if err != nil {
		return nil, err
	}
	data, err := s.render(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &RenderedPDF{Filename: document.ReportFilename(report), Data: data}, nil
}

// Save stores the report under reports/ keyed by the save date, so a second
// save on the same day replaces the first.
func (s *reportService) Save(ctx context.Context, caller identity.Identity, req dto.DailyReportRequest) (*dto.StoredPDFResponse, error) {
	report, doc, err := s.document(caller, req)
	if err != nil {
		return nil, err
	}
	data, err := s.render(ctx, doc)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now()
	key, filename := document.ReportStorageKey(report.Driver, generatedAt)
	info, err := s.storage.Put(ctx, key, data, "application/pdf")
	if err != nil {
		return nil, apierror.Upstream("STORAGE_ERROR", "Failed to upload PDF", err)
	}
	url, expiresAt, err := s.storage.URL(key, s.urlTTL)
	if err != nil {
		return nil, apierror.Upstream("STORAGE_ERROR", "Failed to generate PDF URL", err)
	}

	logger.Ctx(ctx).Info().
		Str("driver", report.Driver).
		Str("key", key).
		Int64("size", info.Size).
		Msg("daily report stored")

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

func (s *reportService) Template(kind string) (*dto.ReportTemplateResponse, error) {
	tmpl, ok := document.LookupReportTemplate(kind)
	if !ok {
		return nil, apierror.NotFound("Template not found").With("availableTypes", document.ReportTypes())
	}
	return &dto.ReportTemplateResponse{Type: tmpl.Type, Template: tmpl.Source, Placeholders: tmpl.Placeholders}, nil
}

func (s *reportService) document(caller identity.Identity, req dto.DailyReportRequest) (document.DailyReport, *document.Document, error) {
	var report document.DailyReport
	if err := rbac.Check(caller.Role, rbac.OpReport); err != nil {
		return report, nil, err
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return report, nil, apierror.InvalidFields(map[string]string{"date": "datetime"})
	}
	report = document.DailyReport{
		Date:     date,
		Driver:   strings.TrimSpace(req.Driver),
		Count:    req.Count,
		Distance: decimal.NewFromFloat(req.Distance),
		Note:     req.Note,
	}
	if report.Driver == "" {
		return report, nil, apierror.MissingFields("driver")
	}

	view := document.NewReportView(report, s.now())
	html, err := document.RenderReportHTML(view)
	if err != nil {
		return report, nil, apierror.Upstream("PDF_ERROR", "Failed to generate report PDF", err)
	}
	return report, &document.Document{Report: view, HTML: html}, nil
}

func (s *reportService) render(ctx context.Context, doc *document.Document) ([]byte, error) {
	data, err := s.engine.Render(ctx, doc)
	if err != nil {
		return nil, apierror.Upstream("PDF_ERROR", "Failed to generate report PDF", err)
	}
	logger.Ctx(ctx).Debug().
		Str("engine", s.engine.Name()).
		Str("document_id", doc.Report.DocumentID).
		Int("bytes", len(data)).
		Msg("daily report rendered")
	return data, nil
}
