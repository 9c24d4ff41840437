package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"invoiceflow/internal/identity"
	"invoiceflow/internal/model"
	"invoiceflow/internal/rbac"
	"invoiceflow/internal/repository"
	"invoiceflow/internal/testutil"
	"invoiceflow/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubDispatcher records enqueued jobs instead of pushing them to Redis.
type stubDispatcher struct {
	mu     sync.Mutex
	audits []*model.AuditLog
	emails []worker.InvoiceEmailJob
	err    error
}

func (d *stubDispatcher) EnqueueAudit(_ context.Context, entry *model.AuditLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audits = append(d.audits, entry)
	return d.err
}

func (d *stubDispatcher) EnqueueInvoiceEmail(_ context.Context, job worker.InvoiceEmailJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, job)
	return d.err
}

var _ JobDispatcher = (*stubDispatcher)(nil)

// failingAuditRepo rejects every write.
type failingAuditRepo struct{ calls int }

func (r *failingAuditRepo) Create(context.Context, *model.AuditLog) error {
	r.calls++
	return errors.New("audit_logs: relation does not exist")
}

func (r *failingAuditRepo) ListForInvoice(context.Context, uuid.UUID) ([]model.AuditLog, error) {
	return nil, errors.New("audit_logs: relation does not exist")
}

var _ repository.AuditRepository = (*failingAuditRepo)(nil)

// racingInvoiceRepo loses every compare-and-swap, as if another writer
// changed the row between the read and the update.
type racingInvoiceRepo struct {
	repository.InvoiceRepository
}

func (racingInvoiceRepo) UpdateStatus(context.Context, *gorm.DB, uuid.UUID, model.InvoiceStatus, map[string]any) (bool, error) {
	return false, nil
}

// recordingCounter keeps counts in memory.
type recordingCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *recordingCounter) Inc(_ context.Context, action, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[action+":"+role]++
}

// ── Fixture ───────────────────────────────────────────────────────────────────

var (
	admin   = identity.Identity{Email: "admin@corp.test", Role: rbac.Admin}
	manager = identity.Identity{Email: "manager@corp.test", Role: rbac.Manager}
	driverA = identity.Identity{Email: "a@corp.test", Role: rbac.Driver}
	driverB = identity.Identity{Email: "b@corp.test", Role: rbac.Driver}
)

type fixture struct {
	db         *gorm.DB
	invoices   repository.InvoiceRepository
	audits     repository.AuditRepository
	dispatcher *stubDispatcher
	counter    *recordingCounter
	audit      AuditService
	invoiceSvc InvoiceService
	approvals  ApprovalService
	partner    *model.Partner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:         db,
		invoices:   repository.NewInvoiceRepository(db),
		audits:     repository.NewAuditRepository(db),
		dispatcher: &stubDispatcher{},
		counter:    &recordingCounter{},
	}
	f.audit = NewAuditService(f.audits, f.invoices, f.dispatcher)
	f.invoiceSvc = NewInvoiceService(
		f.invoices,
		repository.NewPartnerRepository(db),
		repository.NewRateCardRepository(db),
		f.audit,
		decimal.RequireFromString("0.10"),
	)
	f.approvals = NewApprovalService(f.invoices, repository.NewApprovalRepository(db), f.audit, f.counter, f.dispatcher, true)
	f.partner = testutil.SeedPartner(t, db, "山田運送", "YMD")
	return f
}

func (f *fixture) status(t *testing.T, id uuid.UUID) model.InvoiceStatus {
	t.Helper()
	inv, err := f.invoices.FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	return inv.Status
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
