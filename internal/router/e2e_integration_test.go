//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/...

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"invoiceflow/internal/identity"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/service"
	"invoiceflow/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupContainers(t *testing.T) (*testEnv, *redis.Client) {
	t.Helper()
	ctx := context.Background()
	gin.SetMode(gin.TestMode)

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("invoiceflow_test"),
		tcPostgres.WithUsername("invoiceflow"),
		tcPostgres.WithPassword("invoiceflow"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := infra.NewDatabase(pgURL, true)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(rdURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := infra.NewLocalStorage(t.TempDir(), "reports", "", "http://localhost:8787", "secret")
	require.NoError(t, err)

	engine := New(testContext(t), testConfig(), Deps{
		DB:       db,
		Redis:    rdb,
		Engine:   stubEngine{},
		Storage:  store,
		Identity: identity.NewHeaderProvider("Driver", "unknown@example.com"),
	})
	return &testEnv{engine: engine, partner: testutil.SeedPartner(t, db, "山田運送", "YMD")}, rdb
}

func TestE2E_LifecycleOnPostgres(t *testing.T) {
	e, rdb := setupContainers(t)
	id := e.createInvoice(t)
	base := "/api/invoices/" + id

	require.Equal(t, http.StatusOK, e.do(t, asManager, http.MethodPost, base+"/submit", nil).Code)
	require.Equal(t, http.StatusOK, e.do(t, asManager, http.MethodPost, base+"/approve", map[string]string{"approver_role": "manager"}).Code)

	w := e.do(t, asManager, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.Equal(t, "Approved", detail["status"])
	assert.Equal(t, "2026-04-30", detail["payment_due_date"])
	assert.Len(t, detail["approvals"], 2)

	counts, err := rdb.HGetAll(context.Background(), service.TransitionCounterKey).Result()
	require.NoError(t, err)
	assert.Equal(t, "1", counts["submit:field"])
	assert.Equal(t, "1", counts["approve:manager"])
}

func TestE2E_ConcurrentApproveHasOneWinner(t *testing.T) {
	e, _ := setupContainers(t)
	id := e.createInvoice(t)
	base := "/api/invoices/" + id
	require.Equal(t, http.StatusOK, e.do(t, asManager, http.MethodPost, base+"/submit", nil).Code)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = e.do(t, asManager, http.MethodPost, base+"/approve", nil).Code
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, c := range codes {
		if c == http.StatusOK {
			ok++
		}
	}
	// Submitted→Approved→Invoiced: two approvals can succeed, never more
	assert.LessOrEqual(t, ok, 2)
	assert.GreaterOrEqual(t, ok, 1)

	w := e.do(t, asManager, http.MethodGet, base, nil)
	detail := decode(t, w)
	// one approval event per successful transition, plus the submit
	assert.Len(t, detail["approvals"], ok+1)
}
