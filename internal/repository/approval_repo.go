package repository

import (
	"context"

	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApprovalRepository persists the append-only approval history.
type ApprovalRepository interface {
	Create(ctx context.Context, tx *gorm.DB, ev *model.ApprovalEvent) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.ApprovalEvent, error)
}

type approvalRepo struct{ db *gorm.DB }

func NewApprovalRepository(db *gorm.DB) ApprovalRepository { return &approvalRepo{db: db} }

func (r *approvalRepo) Create(ctx context.Context, tx *gorm.DB, ev *model.ApprovalEvent) error {
	return conn(ctx, r.db, tx).Create(ev).Error
}

func (r *approvalRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.ApprovalEvent, error) {
	var events []model.ApprovalEvent
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("approved_at ASC").
		Find(&events).Error
	return events, err
}

// AuditRepository stores before/after snapshots.
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditLog) error
	// ListForInvoice returns the invoice's own rows and those of its children.
	ListForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.AuditLog, error)
}

type auditRepo struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &auditRepo{db: db} }

// Create is idempotent on the row ID so the fallback queue can replay safely.
func (r *auditRepo) Create(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}

func (r *auditRepo) ListForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := r.db.WithContext(ctx).
		Where("record_id = ? OR parent_id = ?", invoiceID, invoiceID).
		Order("changed_at ASC").
		Find(&logs).Error
	return logs, err
}
