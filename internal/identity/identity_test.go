package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"invoiceflow/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderProvider_Defaults(t *testing.T) {
	p := NewHeaderProvider("Driver", "unknown@example.com")
	id, err := p.Resolve(httptest.NewRequest(http.MethodGet, "/api/invoices", nil))
	require.NoError(t, err)
	assert.Equal(t, rbac.Driver, id.Role)
	assert.Equal(t, "unknown@example.com", id.Email)
}

func TestHeaderProvider_Headers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.Header.Set(HeaderRole, "Manager")
	req.Header.Set(HeaderEmail, "m@example.com")

	id, err := NewHeaderProvider("Driver", "unknown@example.com").Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, rbac.Manager, id.Role)
	assert.Equal(t, "m@example.com", id.Email)
}

func TestJWTProvider_RoundTrip(t *testing.T) {
	token, err := IssueToken("s3cret", Identity{Email: "a@example.com", Role: rbac.Admin}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id, err := NewJWTProvider("s3cret").Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, rbac.Admin, id.Role)
	assert.Equal(t, "a@example.com", id.Email)
}

func TestJWTProvider_Rejects(t *testing.T) {
	p := NewJWTProvider("s3cret")

	_, err := p.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrMissingToken)

	wrongKey, _ := IssueToken("other", Identity{Email: "a@example.com", Role: rbac.Admin}, time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+wrongKey)
	_, err = p.Resolve(req)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _ := IssueToken("s3cret", Identity{Email: "a@example.com", Role: rbac.Admin}, -time.Minute)
	req.Header.Set("Authorization", "Bearer "+expired)
	_, err = p.Resolve(req)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("header", "", "Driver", "x@example.com")
	require.NoError(t, err)
	assert.IsType(t, &HeaderProvider{}, p)

	_, err = NewProvider("jwt", "", "Driver", "x@example.com")
	assert.Error(t, err)

	_, err = NewProvider("saml", "k", "Driver", "x@example.com")
	assert.Error(t, err)
}
