package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit operations.
const (
	AuditInsert = "INSERT"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// AuditLog is a before/after snapshot of a mutated row. ParentID points at
// the owning invoice for child rows such as invoice items.
type AuditLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	EntityTable string         `gorm:"column:table_name;type:varchar(64);not null;index:idx_audit_record"`
	RecordID    uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_record"`
	ParentID    *uuid.UUID     `gorm:"type:uuid;index"`
	Operation   string         `gorm:"type:varchar(10);not null"`
	OldValues   datatypes.JSON `gorm:"type:jsonb"`
	NewValues   datatypes.JSON `gorm:"type:jsonb"`
	ChangedBy   string         `gorm:"type:varchar(255);not null"`
	RequestID   string         `gorm:"type:varchar(64)"`
	ChangedAt   time.Time      `gorm:"not null;index"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	ensureID(&a.ID)
	if a.ChangedAt.IsZero() {
		a.ChangedAt = time.Now()
	}
	return nil
}
