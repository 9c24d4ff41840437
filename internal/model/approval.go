package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Approver roles recorded on approval events. These describe the approval
// stage, not the RBAC role of the caller.
const (
	ApproverField      = "field"
	ApproverManager    = "manager"
	ApproverAccounting = "accounting"
)

// Approval event actions.
const (
	ActionApprove       = "approve"
	ActionReject        = "reject"
	ActionRequestChange = "request_change"
)

// ApprovalEvent is an append-only record of one workflow transition.
type ApprovalEvent struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey"`
	InvoiceID      uuid.UUID     `gorm:"type:uuid;index;not null"`
	ApproverRole   string        `gorm:"type:varchar(20);not null"`
	ApproverEmail  string        `gorm:"type:varchar(255);not null"`
	Action         string        `gorm:"type:varchar(20);not null"`
	Comment        *string       `gorm:"type:text"`
	PreviousStatus InvoiceStatus `gorm:"type:varchar(20);not null"`
	NewStatus      InvoiceStatus `gorm:"type:varchar(20);not null"`
	ApprovedAt     time.Time     `gorm:"not null;index"`
}

func (ApprovalEvent) TableName() string { return "approvals" }

func (e *ApprovalEvent) BeforeCreate(_ *gorm.DB) error {
	ensureID(&e.ID)
	if e.ApprovedAt.IsZero() {
		e.ApprovedAt = time.Now()
	}
	return nil
}
