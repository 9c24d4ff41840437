package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/document"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/model"
	"invoiceflow/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	calls int
	last  *document.Document
	err   error
}

func (e *stubEngine) Name() string { return "stub" }

func (e *stubEngine) Render(_ context.Context, doc *document.Document) ([]byte, error) {
	e.calls++
	e.last = doc
	if e.err != nil {
		return nil, e.err
	}
	return []byte("%PDF-1.4 stub"), nil
}

var testCompany = document.Company{Name: "株式会社テスト物流", Registration: "T1234567890123"}

func newPDFFixture(t *testing.T, publicBase string) (*fixture, *stubEngine, *infra.LocalStorage, *pdfService) {
	t.Helper()
	f := newFixture(t)
	store, err := infra.NewLocalStorage(t.TempDir(), "reports", publicBase, "http://localhost:8787", "secret")
	require.NoError(t, err)
	engine := &stubEngine{}
	svc := NewPDFService(f.invoices, engine, store, testCompany, time.Hour).(*pdfService)
	svc.now = func() time.Time { return time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC) }
	return f, engine, store, svc
}

func TestPDF_HTMLAndDownload(t *testing.T) {
	f, engine, _, svc := newPDFFixture(t, "")
	ctx := context.Background()
	inv := testutil.SeedInvoice(t, f.db, f.partner, model.StatusApproved, manager.Email)
	testutil.SeedItem(t, f.db, inv.ID, "東京→横浜", 2, 1000)

	html, err := svc.HTML(ctx, manager, inv.ID)
	require.NoError(t, err)
	assert.Contains(t, html, inv.InvoiceNo)
	assert.Contains(t, html, "東京→横浜")
	assert.Zero(t, engine.calls)

	pdf, err := svc.Download(ctx, manager, inv.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf.Data), "%PDF"))
	assert.Equal(t, document.Filename(inv, f.partner.Name), pdf.Filename)
	assert.True(t, strings.HasPrefix(pdf.Filename, "invoice_202603_"), pdf.Filename)
	require.NotNil(t, engine.last)
	assert.Equal(t, testCompany.Name, engine.last.View.Company.Name)
}

func TestPDF_Scoping(t *testing.T) {
	f, engine, _, svc := newPDFFixture(t, "")
	ctx := context.Background()
	inv := testutil.SeedInvoice(t, f.db, f.partner, model.StatusDraft, driverB.Email)

	_, err := svc.Download(ctx, driverA, inv.ID)
	assert.True(t, apierror.Is(err, "NOT_FOUND"))

	_, err = svc.Download(ctx, driverB, inv.ID)
	assert.NoError(t, err)

	_, err = svc.HTML(ctx, manager, uuid.New())
	assert.True(t, apierror.Is(err, "NOT_FOUND"))
	assert.Equal(t, 1, engine.calls)
}

func TestPDF_EngineFailure(t *testing.T) {
	f, engine, _, svc := newPDFFixture(t, "")
	engine.err = errors.New("chrome crashed")
	inv := testutil.SeedInvoice(t, f.db, f.partner, model.StatusDraft, manager.Email)

	_, err := svc.Download(context.Background(), manager, inv.ID)
	require.True(t, apierror.Is(err, "PDF_ERROR"))
	e, _ := apierror.As(err)
	assert.Equal(t, "Failed to generate invoice PDF", e.Message)
}

func TestPDF_SaveSigned(t *testing.T) {
	f, _, store, svc := newPDFFixture(t, "")
	ctx := context.Background()
	inv := testutil.SeedInvoice(t, f.db, f.partner, model.StatusInvoiced, manager.Email)

	resp, err := svc.Save(ctx, manager, inv.ID)
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Path, "invoices/2026/04/invoice_2026-04-02_"), resp.Path)
	assert.True(t, strings.HasSuffix(resp.Path, resp.Filename))
	assert.Contains(t, resp.URL, "http://localhost:8787/files/invoices/2026/04/")
	assert.Contains(t, resp.URL, "?token=")
	assert.Equal(t, "reports", resp.Metadata.Bucket)
	assert.Equal(t, "application/pdf", resp.Metadata.ContentType)
	assert.NotNil(t, resp.Metadata.ExpiresAt)

	data, info, err := store.Get(ctx, resp.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 stub", string(data))
	assert.Equal(t, resp.Metadata.Size, info.Size)
}

func TestPDF_SavePublic(t *testing.T) {
	f, _, _, svc := newPDFFixture(t, "https://cdn.test")
	inv := testutil.SeedInvoice(t, f.db, f.partner, model.StatusInvoiced, manager.Email)

	resp, err := svc.Save(context.Background(), manager, inv.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.URL, "https://cdn.test/reports/invoices/2026/04/"), resp.URL)
	assert.Nil(t, resp.Metadata.ExpiresAt)
}

func TestPDF_RenderInvoiceForMail(t *testing.T) {
	f, _, _, svc := newPDFFixture(t, "")
	inv := testutil.SeedInvoice(t, f.db, f.partner, model.StatusInvoiced, driverB.Email)
	testutil.SeedItem(t, f.db, inv.ID, "東京→横浜", 2, 1000)

	doc, err := svc.RenderInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNo, doc.InvoiceNo)
	assert.Equal(t, f.partner.Name, doc.PartnerName)
	assert.NotEmpty(t, doc.PDF)
}

// ── Cleanup ───────────────────────────────────────────────────────────────────

func seedObject(t *testing.T, store *infra.LocalStorage, root, key string, age time.Duration) {
	t.Helper()
	_, err := store.Put(context.Background(), key, []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(root, "reports", filepath.FromSlash(key)), mod, mod))
}

func newCleanupFixture(t *testing.T, cfg CleanupConfig) (*infra.LocalStorage, *CleanupService) {
	t.Helper()
	root := t.TempDir()
	store, err := infra.NewLocalStorage(root, "reports", "", "http://localhost:8787", "secret")
	require.NoError(t, err)
	seedObject(t, store, root, "invoices/2026/01/old-a.pdf", 10*24*time.Hour)
	seedObject(t, store, root, "invoices/2026/01/old-b.pdf", 9*24*time.Hour)
	seedObject(t, store, root, "invoices/2026/04/fresh.pdf", time.Hour)
	seedObject(t, store, root, "reports/2026/01/delivery_report_old.pdf", 8*24*time.Hour)
	seedObject(t, store, root, "exports/2026/01/old.pdf", 30*24*time.Hour)
	return store, NewCleanupService(store, cfg)
}

func TestCleanup_DeletesExpiredOnly(t *testing.T) {
	store, svc := newCleanupFixture(t, CleanupConfig{TTL: 7 * 24 * time.Hour, BatchDelay: time.Millisecond})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalFiles)
	assert.Equal(t, 3, stats.ExpiredFiles)
	assert.Equal(t, 3, stats.DeletedFiles)
	assert.Empty(t, stats.Errors)

	left, err := store.List(context.Background(), "")
	require.NoError(t, err)
	keys := make([]string, 0, len(left))
	for _, o := range left {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"exports/2026/01/old.pdf", "invoices/2026/04/fresh.pdf"}, keys)
}

func TestCleanup_DryRunKeepsFiles(t *testing.T) {
	store, svc := newCleanupFixture(t, CleanupConfig{TTL: 7 * 24 * time.Hour, DryRun: true})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.DryRun)
	assert.Equal(t, 3, stats.DeletedFiles)

	left, err := store.List(context.Background(), "invoices/")
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestCleanup_Disabled(t *testing.T) {
	_, svc := newCleanupFixture(t, CleanupConfig{TTL: time.Hour, Disabled: true})

	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Disabled)
	assert.Zero(t, stats.TotalFiles)
	assert.Zero(t, stats.DeletedFiles)
}
