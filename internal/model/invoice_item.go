package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Billing units for invoice line items.
const (
	UnitStop  = "stop"
	UnitKM    = "km"
	UnitHour  = "hour"
	UnitOther = "other"
)

// InvoiceItem is one delivery line. Amount defaults to Quantity × UnitPrice.
// IsOvertime / IsSpecial only affect how the line is annotated on the PDF.
type InvoiceItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	DeliveryDate *datatypes.Date `gorm:"index"`
	Description  string          `gorm:"type:text;not null"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Unit         string          `gorm:"type:varchar(10);not null;default:'other'"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Amount       decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	IsOvertime   bool            `gorm:"not null;default:false"`
	IsSpecial    bool            `gorm:"not null;default:false"`
	VehicleNo    *string         `gorm:"type:varchar(40)"`
	DriverName   *string         `gorm:"type:varchar(100)"`
	Memo         *string         `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (it *InvoiceItem) BeforeCreate(_ *gorm.DB) error {
	ensureID(&it.ID)
	return nil
}
