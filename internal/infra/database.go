package infra

import (
	"fmt"

	"invoiceflow/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx. When autoMigrate
// is set it also runs RunMigrations.
func NewDatabase(dsn string, autoMigrate bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if autoMigrate {
		if err := RunMigrations(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&model.Partner{},
		&model.RateCard{},
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.ApprovalEvent{},
		&model.AuditLog{},
	}
}

// RunMigrations creates / updates all tables, then applies the idempotent
// SQL patches GORM cannot express. Patches only run on Postgres; SQLite (used
// by unit tests) gets the plain AutoMigrate schema.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements. Each statement uses
// IF NOT EXISTS semantics so re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"status check constraint", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_invoices_status') THEN
    ALTER TABLE invoices ADD CONSTRAINT chk_invoices_status
      CHECK (status IN ('Draft','Submitted','Approved','Invoiced','Rejected'));
  END IF;
END $$`},
		{"item unit check constraint", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_invoice_items_unit') THEN
    ALTER TABLE invoice_items ADD CONSTRAINT chk_invoice_items_unit
      CHECK (unit IN ('stop','km','hour','other'));
  END IF;
END $$`},
		// list endpoint: ORDER BY created_at DESC filtered by creator (Driver scope)
		{"invoices creator index",
			`CREATE INDEX IF NOT EXISTS idx_invoices_created_by_created_at ON invoices (created_by, created_at DESC)`},
		{"approvals history index",
			`CREATE INDEX IF NOT EXISTS idx_approvals_invoice_approved_at ON approvals (invoice_id, approved_at)`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
