package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"invoiceflow/internal/config"
	"invoiceflow/internal/document"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/model"
	"invoiceflow/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct{}

func (stubEngine) Name() string { return "stub" }

func (stubEngine) Render(context.Context, *document.Document) ([]byte, error) {
	return []byte("%PDF-1.4 stub"), nil
}

type testEnv struct {
	engine  *gin.Engine
	partner *model.Partner
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "test",
		CORSOrigins:            "http://localhost:5173",
		RateLimitMax:           10000,
		RateLimitWindowMinutes: 15,
		TaxRate:                "0.10",
		SignedURLTTLHours:      1,
		CompanyName:            "株式会社テスト物流",
	}
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	store, err := infra.NewLocalStorage(t.TempDir(), "reports", "", "http://localhost:8787", "secret")
	require.NoError(t, err)

	engine := New(testContext(t), testConfig(), Deps{
		DB:       db,
		Engine:   stubEngine{},
		Storage:  store,
		Identity: identity.NewHeaderProvider("Driver", "unknown@example.com"),
	})
	return &testEnv{engine: engine, partner: testutil.SeedPartner(t, db, "山田運送", "YMD")}
}

type caller struct{ role, email string }

var (
	asManager = caller{"Manager", "manager@corp.test"}
	asAdmin   = caller{"Admin", "admin@corp.test"}
	asDriver  = caller{"Driver", "driver@corp.test"}
)

func (e *testEnv) do(t *testing.T, as caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as.role != "" {
		req.Header.Set(identity.HeaderRole, as.role)
		req.Header.Set(identity.HeaderEmail, as.email)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func (e *testEnv) createInvoice(t *testing.T) string {
	t.Helper()
	w := e.do(t, asManager, http.MethodPost, "/api/invoices", map[string]any{
		"partner_id":   e.partner.ID.String(),
		"period_start": "2026-03-01",
		"period_end":   "2026-03-31",
		"items": []map[string]any{
			{"delivery_date": "2026-03-02", "description": "東京→横浜", "quantity": 2, "unit": "stop", "unit_price": 1000},
			{"delivery_date": "2026-03-05", "description": "東京→千葉", "quantity": 3, "unit": "stop", "unit_price": 500},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "3500", body["subtotal"])
	assert.Equal(t, "350", body["tax"])
	assert.Equal(t, "3850", body["total"])
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	e := setup(t)
	w := e.do(t, caller{}, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "disabled", body["redis"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	store, err := infra.NewLocalStorage(t.TempDir(), "reports", "", "http://localhost:8787", "secret")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.SMTPHost = "smtp.example.test"
	e := &testEnv{
		engine: New(testContext(t), cfg, Deps{
			DB:       db,
			Redis:    infra.NewOptionalRedis(""),
			Engine:   stubEngine{},
			Storage:  store,
			Identity: identity.NewHeaderProvider("Driver", "unknown@example.com"),
		}),
		partner: testutil.SeedPartner(t, db, "山田運送", "YMD"),
	}

	w := e.do(t, caller{}, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disabled", decode(t, w)["redis"])

	// notification is skipped, not queued, when an invoice is issued
	base := "/api/invoices/" + e.createInvoice(t)
	for _, step := range []struct {
		as     caller
		action string
		body   any
	}{
		{asManager, "submit", nil},
		{asManager, "approve", map[string]string{"approver_role": "manager"}},
		{asAdmin, "approve", map[string]string{"approver_role": "accounting"}},
	} {
		w = e.do(t, step.as, http.MethodPost, base+"/"+step.action, step.body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, "Invoiced", decode(t, w)["status"])
}

func TestInvoiceLifecycle(t *testing.T) {
	e := setup(t)
	id := e.createInvoice(t)
	base := "/api/invoices/" + id

	w := e.do(t, asManager, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Len(t, detail["items"], 2)
	assert.Equal(t, "Draft", detail["status"])

	for _, step := range []struct {
		as     caller
		action string
		body   any
		status string
	}{
		{asManager, "submit", nil, "Submitted"},
		{asManager, "approve", map[string]string{"approver_role": "manager"}, "Approved"},
		{asAdmin, "approve", map[string]string{"approver_role": "accounting"}, "Invoiced"},
	} {
		w = e.do(t, step.as, http.MethodPost, base+"/"+step.action, step.body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, step.status, decode(t, w)["status"])
	}

	w = e.do(t, asAdmin, http.MethodPost, base+"/approve", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INVALID_STATUS", body["code"])
	assert.Equal(t, "Invoiced", body["current_status"])

	w = e.do(t, asManager, http.MethodPatch, base, map[string]string{"memo": "late"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATUS", decode(t, w)["code"])

	w = e.do(t, asAdmin, http.MethodGet, base+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// create + three transitions
	assert.Len(t, decode(t, w)["data"], 4)

	w = e.do(t, asManager, http.MethodGet, base+"/audit", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRejectRequiresComment(t *testing.T) {
	e := setup(t)
	id := e.createInvoice(t)
	base := "/api/invoices/" + id
	require.Equal(t, http.StatusOK, e.do(t, asManager, http.MethodPost, base+"/submit", nil).Code)

	w := e.do(t, asManager, http.MethodPost, base+"/reject", map[string]string{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "COMMENT_REQUIRED", decode(t, w)["code"])

	w = e.do(t, asManager, http.MethodPost, base+"/reject", map[string]string{"comment": "fix pricing"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rejected", decode(t, w)["status"])

	w = e.do(t, asManager, http.MethodPost, base+"/reopen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Draft", decode(t, w)["status"])

	w = e.do(t, asManager, http.MethodGet, base, nil)
	approvals := decode(t, w)["approvals"].([]any)
	require.Len(t, approvals, 3)
	assert.Equal(t, "fix pricing", approvals[1].(map[string]any)["comment"])
}

func TestDriverScopeAndGuards(t *testing.T) {
	e := setup(t)
	id := e.createInvoice(t)

	w := e.do(t, asDriver, http.MethodGet, "/api/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Empty(t, body["data"])
	assert.Equal(t, float64(0), body["pagination"].(map[string]any)["total"])

	w = e.do(t, asDriver, http.MethodGet, "/api/invoices/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, asDriver, http.MethodGet, "/api/invoices/"+id+"/pdf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, asDriver, http.MethodPost, "/api/invoices/"+id+"/submit", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	denied := decode(t, w)
	assert.Equal(t, "ACCESS_DENIED", denied["code"])
	assert.Equal(t, "Driver", denied["current"])

	// no headers: the configured default identity is a Driver
	w = e.do(t, caller{}, http.MethodPost, "/api/invoices", map[string]string{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, asManager, http.MethodGet, "/api/invoices/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationErrors(t *testing.T) {
	e := setup(t)

	w := e.do(t, asManager, http.MethodPost, "/api/invoices", map[string]any{"memo": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, []any{"partner_id", "period_start", "period_end"}, body["required"])

	w = e.do(t, asManager, http.MethodPost, "/api/invoices", map[string]any{
		"partner_id":   e.partner.ID.String(),
		"period_start": "2026-03-01",
		"period_end":   "2026-03-31",
		"items":        []map[string]any{{"description": "x", "quantity": 1, "unit": "mile", "unit_price": 1}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Equal(t, "oneof", fields["items[0].unit"])

	req := httptest.NewRequest(http.MethodPost, "/api/invoices", strings.NewReader("{"))
	req.Header.Set(identity.HeaderRole, "Manager")
	w = httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := e.createInvoice(t)
	w = e.do(t, asManager, http.MethodPatch, "/api/invoices/"+id, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_FIELDS", decode(t, w)["code"])
}

func TestPatchChecksStatusBeforeFields(t *testing.T) {
	e := setup(t)
	draft := e.createInvoice(t)
	submitted := e.createInvoice(t)
	w := e.do(t, asManager, http.MethodPost, "/api/invoices/"+submitted+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	malformed := map[string]any{"period_start": "31/03/2026", "rate_card_id": "nope"}

	w = e.do(t, asManager, http.MethodPatch, "/api/invoices/"+submitted, malformed)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INVALID_STATUS", body["code"])
	assert.Equal(t, "Submitted", body["current_status"])

	w = e.do(t, asManager, http.MethodPatch, "/api/invoices/"+draft, malformed)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "period_start")
	assert.Contains(t, fields, "rate_card_id")
}

func TestItemsEndpoints(t *testing.T) {
	e := setup(t)
	id := e.createInvoice(t)
	base := "/api/invoices/" + id

	w := e.do(t, asManager, http.MethodPost, base+"/items", map[string]any{
		"items": []map[string]any{{"description": "高速代", "quantity": 1, "unit_price": 0, "amount": 1000}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	detail := decode(t, w)
	assert.Equal(t, "4500", detail["subtotal"])
	assert.Equal(t, "4950", detail["total"])

	var tollID string
	for _, it := range detail["items"].([]any) {
		m := it.(map[string]any)
		if m["description"] == "高速代" {
			tollID = m["id"].(string)
		}
	}
	require.NotEmpty(t, tollID)

	w = e.do(t, asManager, http.MethodDelete, base+"/items/"+tollID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3850", decode(t, w)["total"])

	w = e.do(t, asManager, http.MethodPost, base+"/items", map[string]any{
		"items": []map[string]any{{"description": "値引き", "quantity": 1, "unit_price": 100, "amount": -5000}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "gte", body["fields"].(map[string]any)["items[0].amount"])

	w = e.do(t, asManager, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3850", decode(t, w)["total"])
}

func TestPDFEndpoints(t *testing.T) {
	e := setup(t)
	id := e.createInvoice(t)
	base := "/api/invoices/" + id

	w := e.do(t, asManager, http.MethodGet, base+"/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"invoice_202603_")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = e.do(t, asManager, http.MethodGet, base+"/html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "東京→横浜")

	w = e.do(t, asManager, http.MethodPost, base+"/pdf", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	stored := decode(t, w)
	link, err := url.Parse(stored["url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/files/"+stored["path"].(string), link.Path)

	w = e.do(t, caller{}, http.MethodGet, link.RequestURI(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 stub", w.Body.String())

	w = e.do(t, caller{}, http.MethodGet, link.EscapedPath()+"?token=forged", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportsEndpoints(t *testing.T) {
	e := setup(t)
	report := map[string]any{"date": "2026-03-31", "driver": "Sato", "count": 12, "distance": 84.5, "note": "gate 5"}

	w := e.do(t, asDriver, http.MethodPost, "/api/reports/preview", report)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "RPT-20260331-SATO")

	w = e.do(t, asDriver, http.MethodPost, "/api/reports/pdf", report)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "delivery_report_2026-03-31_Sato.pdf")

	w = e.do(t, asManager, http.MethodPost, "/api/reports/pdf/save", report)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode(t, w)
	assert.True(t, strings.HasPrefix(saved["path"].(string), "reports/"), saved["path"])
	assert.Equal(t, true, saved["success"])

	w = e.do(t, asManager, http.MethodPost, "/api/reports/pdf", map[string]any{"driver": "Sato", "distance": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Equal(t, "required", fields["date"])
	assert.Equal(t, "gte", fields["distance"])

	w = e.do(t, asManager, http.MethodGet, "/api/reports/template/daily", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "daily", decode(t, w)["type"])

	w = e.do(t, asManager, http.MethodGet, "/api/reports/template/vehicle", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []any{"daily"}, decode(t, w)["availableTypes"])
}

func TestRoleNamesAreCaseSensitive(t *testing.T) {
	e := setup(t)
	w := e.do(t, caller{"driver", "driver@corp.test"}, http.MethodGet, "/api/invoices", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ACCESS_DENIED", body["code"])
	assert.Equal(t, "driver", body["current"])
}

// testContext mirrors testing.T.Context (Go 1.24+): cancelled when the test ends.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
