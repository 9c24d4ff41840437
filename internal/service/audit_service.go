package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/dto"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/logger"
	"invoiceflow/internal/model"
	"invoiceflow/internal/rbac"
	"invoiceflow/internal/repository"
	"invoiceflow/internal/worker"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const auditWriteTimeout = 5 * time.Second

// JobDispatcher is the async side channel used after a commit. A nil
// dispatcher disables the audit fallback queue and partner notifications.
type JobDispatcher interface {
	EnqueueAudit(ctx context.Context, entry *model.AuditLog) error
	EnqueueInvoiceEmail(ctx context.Context, job worker.InvoiceEmailJob) error
}

// Change describes one audited mutation.
type Change struct {
	Table     string
	RecordID  uuid.UUID
	ParentID  *uuid.UUID
	Operation string
	Old       any
	New       any
	Actor     string
}

type AuditService interface {
	// Record never fails the caller. A row that cannot be written inline is
	// queued for the audit worker.
	Record(ctx context.Context, c Change)
	ListForInvoice(ctx context.Context, caller identity.Identity, invoiceID uuid.UUID) ([]dto.AuditLogResponse, error)
}

type auditService struct {
	repo       repository.AuditRepository
	invoices   repository.InvoiceRepository
	dispatcher JobDispatcher
}

func NewAuditService(repo repository.AuditRepository, invoices repository.InvoiceRepository, dispatcher JobDispatcher) AuditService {
	return &auditService{repo: repo, invoices: invoices, dispatcher: dispatcher}
}

func (s *auditService) Record(ctx context.Context, c Change) {
	l := logger.Ctx(ctx)

	actor := c.Actor
	if actor == "" {
		actor = "system"
	}
	entry := &model.AuditLog{
		ID:          uuid.New(),
		EntityTable: c.Table,
		RecordID:    c.RecordID,
		ParentID:    c.ParentID,
		Operation:   c.Operation,
		OldValues:   snapshot(c.Old),
		NewValues:   snapshot(c.New),
		ChangedBy:   actor,
		RequestID:   logger.RequestID(ctx),
		ChangedAt:   time.Now(),
	}

	// the primary operation has committed; a client disconnect must not drop the row
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	err := s.repo.Create(writeCtx, entry)
	if err == nil {
		return
	}
	l.Error().Err(err).
		Str("table", c.Table).
		Str("record_id", c.RecordID.String()).
		Str("operation", c.Operation).
		Msg("audit: insert failed")

	if s.dispatcher == nil {
		return
	}
	if qerr := s.dispatcher.EnqueueAudit(writeCtx, entry); qerr != nil {
		l.Error().Err(qerr).Str("record_id", c.RecordID.String()).Msg("audit: fallback enqueue failed, row lost")
		return
	}
	l.Warn().Str("record_id", c.RecordID.String()).Msg("audit: row queued for retry")
}

func (s *auditService) ListForInvoice(ctx context.Context, caller identity.Identity, invoiceID uuid.UUID) ([]dto.AuditLogResponse, error) {
	if err := rbac.Check(caller.Role, rbac.OpAudit); err != nil {
		return nil, err
	}
	if _, err := s.invoices.FindByID(ctx, nil, invoiceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("Invoice not found")
		}
		return nil, apierror.Upstream("FETCH_ERROR", "Failed to fetch audit log", err)
	}

	rows, err := s.repo.ListForInvoice(ctx, invoiceID)
	if err != nil {
		return nil, apierror.Upstream("FETCH_ERROR", "Failed to fetch audit log", err)
	}
	out := make([]dto.AuditLogResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toAuditResponse(&rows[i]))
	}
	return out, nil
}

func snapshot(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
