// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"invoiceflow/internal/infra"
	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema.
// The pool is capped at one connection so the shared-cache database lives
// exactly as long as the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.RunMigrations(db))
	return db
}

// Date builds a UTC calendar date.
func Date(y int, m time.Month, d int) datatypes.Date {
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func Ptr[T any](v T) *T { return &v }

// SeedPartner inserts an active partner with the given billing code.
func SeedPartner(t testing.TB, db *gorm.DB, name, code string) *model.Partner {
	t.Helper()
	p := &model.Partner{
		Name:         name,
		BillingCode:  Ptr(code),
		Email:        Ptr("billing@" + code + ".test"),
		PaymentTerms: Ptr(30),
		IsActive:     true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedRateCard inserts an open-ended active rate card.
func SeedRateCard(t testing.TB, db *gorm.DB, partnerID uuid.UUID, from datatypes.Date) *model.RateCard {
	t.Helper()
	rc := &model.RateCard{PartnerID: partnerID, Name: "standard", ValidFrom: from, IsActive: true}
	require.NoError(t, db.Create(rc).Error)
	return rc
}

// SeedInvoice inserts an invoice for March 2026 in the given status.
func SeedInvoice(t testing.TB, db *gorm.DB, partner *model.Partner, status model.InvoiceStatus, createdBy string) *model.Invoice {
	t.Helper()
	inv := &model.Invoice{
		InvoiceNo:   "INV-" + uuid.NewString()[:8],
		PartnerID:   partner.ID,
		PeriodStart: Date(2026, time.March, 1),
		PeriodEnd:   Date(2026, time.March, 31),
		Status:      status,
		CreatedBy:   createdBy,
	}
	require.NoError(t, db.Omit("Partner", "Items", "Approvals").Create(inv).Error)
	inv.Partner = partner
	return inv
}

// SeedItem inserts an item with amount = qty × price.
func SeedItem(t testing.TB, db *gorm.DB, invoiceID uuid.UUID, desc string, qty, price int64) *model.InvoiceItem {
	t.Helper()
	it := &model.InvoiceItem{
		InvoiceID:   invoiceID,
		Description: desc,
		Quantity:    decimal.NewFromInt(qty),
		UnitPrice:   decimal.NewFromInt(price),
		Amount:      decimal.NewFromInt(qty * price),
		Unit:        model.UnitStop,
	}
	require.NoError(t, db.Create(it).Error)
	return it
}
