package repository

import (
	"context"

	"invoiceflow/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceFilter narrows List. CreatedBy is set for callers scoped to their
// own records.
type InvoiceFilter struct {
	Status    string
	PartnerID *uuid.UUID
	CreatedBy string
	Offset    int
	Limit     int
}

// Totals are the derived amounts of an invoice.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type InvoiceRepository interface {
	DB() *gorm.DB
	Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error
	FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Invoice, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, f InvoiceFilter) ([]model.Invoice, int64, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, cols map[string]any) error
	// UpdateStatus applies cols only while the row is still in expected.
	// It reports false when another writer moved the invoice first.
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expected model.InvoiceStatus, cols map[string]any) (bool, error)
	CreateItems(ctx context.Context, tx *gorm.DB, items []model.InvoiceItem) error
	FindItem(ctx context.Context, tx *gorm.DB, invoiceID, itemID uuid.UUID) (*model.InvoiceItem, error)
	DeleteItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
	ListItems(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceItem, error)
	// ComputeTotals recomputes subtotal/tax/total from the stored items and
	// writes them back to the invoice.
	ComputeTotals(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, taxRate decimal.Decimal) (Totals, error)
}

type invoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository { return &invoiceRepo{db: db} }

func (r *invoiceRepo) DB() *gorm.DB { return r.db }

func (r *invoiceRepo) Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error {
	return conn(ctx, r.db, tx).Omit("Partner", "Items", "Approvals").Create(inv).Error
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := conn(ctx, r.db, tx).Preload("Partner").First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepo) FindDetail(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.db.WithContext(ctx).
		Preload("Partner").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("delivery_date ASC").Order("created_at ASC")
		}).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("approved_at ASC")
		}).
		First(&inv, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepo) List(ctx context.Context, f InvoiceFilter) ([]model.Invoice, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Invoice{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PartnerID != nil {
		q = q.Where("partner_id = ?", *f.PartnerID)
	}
	if f.CreatedBy != "" {
		q = q.Where("created_by = ?", f.CreatedBy)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []model.Invoice
	err := q.Preload("Partner").
		Order("created_at DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, cols map[string]any) error {
	return conn(ctx, r.db, tx).Model(&model.Invoice{}).Where("id = ?", id).Updates(cols).Error
}

func (r *invoiceRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, expected model.InvoiceStatus, cols map[string]any) (bool, error) {
	res := conn(ctx, r.db, tx).Model(&model.Invoice{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *invoiceRepo) CreateItems(ctx context.Context, tx *gorm.DB, items []model.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	return conn(ctx, r.db, tx).Create(&items).Error
}

func (r *invoiceRepo) FindItem(ctx context.Context, tx *gorm.DB, invoiceID, itemID uuid.UUID) (*model.InvoiceItem, error) {
	var item model.InvoiceItem
	err := conn(ctx, r.db, tx).Where("id = ? AND invoice_id = ?", itemID, invoiceID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *invoiceRepo) DeleteItem(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	return conn(ctx, r.db, tx).Delete(&model.InvoiceItem{}, "id = ?", itemID).Error
}

func (r *invoiceRepo) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceItem, error) {
	var items []model.InvoiceItem
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("delivery_date ASC").Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *invoiceRepo) ComputeTotals(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, taxRate decimal.Decimal) (Totals, error) {
	db := conn(ctx, r.db, tx)

	var row struct{ Subtotal decimal.Decimal }
	err := db.Model(&model.InvoiceItem{}).
		Select("COALESCE(SUM(amount), 0) AS subtotal").
		Where("invoice_id = ?", invoiceID).
		Scan(&row).Error
	if err != nil {
		return Totals{}, err
	}

	t := CalculateTotals(row.Subtotal, taxRate)
	err = db.Model(&model.Invoice{}).Where("id = ?", invoiceID).Updates(map[string]any{
		"subtotal": t.Subtotal,
		"tax":      t.Tax,
		"total":    t.Total,
	}).Error
	return t, err
}

// CalculateTotals applies the tax rate to a subtotal. Tax is rounded down to
// whole yen.
func CalculateTotals(subtotal, taxRate decimal.Decimal) Totals {
	tax := subtotal.Mul(taxRate).Floor()
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}
