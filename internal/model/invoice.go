package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceStatus is the approval workflow state of an invoice.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "Draft"
	StatusSubmitted InvoiceStatus = "Submitted"
	StatusApproved  InvoiceStatus = "Approved"
	StatusInvoiced  InvoiceStatus = "Invoiced"
	StatusRejected  InvoiceStatus = "Rejected"
)

// Valid reports whether s is one of the five workflow states.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusInvoiced, StatusRejected:
		return true
	}
	return false
}

// Invoice is a billing document issued to a partner for a delivery period.
// Subtotal, Tax and Total are derived from the items and are only written by
// the repository's ComputeTotals. Status only changes through the approval
// workflow.
type Invoice struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceNo      string          `gorm:"type:varchar(40);uniqueIndex;not null"`
	PartnerID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	PeriodStart    datatypes.Date  `gorm:"not null"`
	PeriodEnd      datatypes.Date  `gorm:"not null"`
	RateCardID     *uuid.UUID      `gorm:"type:uuid"`
	Memo           *string         `gorm:"type:text"`
	Status         InvoiceStatus   `gorm:"type:varchar(20);not null;default:'Draft';index"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Tax            decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	Total          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	PaymentDueDate *datatypes.Date
	CreatedBy      string `gorm:"type:varchar(255);index;not null"`
	ApprovedBy     *string
	ApprovedAt     *time.Time
	InvoicedAt     *time.Time
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time

	Partner   *Partner        `gorm:"foreignKey:PartnerID"`
	Items     []InvoiceItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Approvals []ApprovalEvent `gorm:"foreignKey:InvoiceID"`
}

func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// ensureID assigns a v4 UUID when the caller left the key empty. Done in Go
// rather than a column default so the same schema runs on SQLite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
