package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Partner is the billed counterparty (a carrier or shipper).
// PaymentTerms is the number of days after the period end the invoice is due.
type Partner struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name          string    `gorm:"type:varchar(200);not null"`
	BillingCode   *string   `gorm:"type:varchar(20);uniqueIndex"`
	Email         *string
	Phone         *string
	Address       *string
	ContactPerson *string
	PaymentTerms  *int
	ClosingDay    *int
	IsActive      bool `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Partner) BeforeCreate(_ *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// RateCard is a dated price agreement with a partner. A missing ValidTo
// means open-ended.
type RateCard struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	PartnerID uuid.UUID      `gorm:"type:uuid;index;not null"`
	Name      string         `gorm:"type:varchar(200);not null"`
	ValidFrom datatypes.Date `gorm:"not null"`
	ValidTo   *datatypes.Date
	IsActive  bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (rc *RateCard) BeforeCreate(_ *gorm.DB) error {
	ensureID(&rc.ID)
	return nil
}
