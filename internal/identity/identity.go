// Package identity resolves who is calling. Two providers exist: trusted
// headers for internal deployments behind an auth proxy, and HS256 bearer
// tokens.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"invoiceflow/internal/rbac"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated caller.
type Identity struct {
	Email string
	Role  rbac.Role
}

// Provider resolves the caller of an HTTP request.
type Provider interface {
	Resolve(r *http.Request) (Identity, error)
}

var (
	ErrMissingToken = errors.New("identity: bearer token required")
	ErrInvalidToken = errors.New("identity: invalid or expired token")
)

// ── Header provider ──────────────────────────────────────────────────────────

const (
	HeaderRole  = "X-User-Role"
	HeaderEmail = "X-User-Email"
)

// HeaderProvider trusts X-User-Role / X-User-Email and falls back to the
// configured defaults when they are absent.
type HeaderProvider struct {
	DefaultRole  string
	DefaultEmail string
}

func NewHeaderProvider(defaultRole, defaultEmail string) *HeaderProvider {
	return &HeaderProvider{DefaultRole: defaultRole, DefaultEmail: defaultEmail}
}

func (p *HeaderProvider) Resolve(r *http.Request) (Identity, error) {
	role := strings.TrimSpace(r.Header.Get(HeaderRole))
	if role == "" {
		role = p.DefaultRole
	}
	email := strings.TrimSpace(r.Header.Get(HeaderEmail))
	if email == "" {
		email = p.DefaultEmail
	}
	return Identity{Email: email, Role: rbac.ParseRole(role)}, nil
}

// ── JWT provider ─────────────────────────────────────────────────────────────

// Claims are the custom claims embedded in every access token.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider validates the Bearer token on every request.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

func (p *JWTProvider) Resolve(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid || claims.Email == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Email: claims.Email, Role: rbac.ParseRole(claims.Role)}, nil
}

// IssueToken signs an access token for the given identity.
func IssueToken(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: id.Email,
		Role:  string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// NewProvider picks the provider for AUTH_MODE.
func NewProvider(mode, jwtSecret, defaultRole, defaultEmail string) (Provider, error) {
	switch strings.ToLower(mode) {
	case "", "header":
		return NewHeaderProvider(defaultRole, defaultEmail), nil
	case "jwt":
		if jwtSecret == "" {
			return nil, errors.New("identity: AUTH_MODE=jwt requires JWT_SECRET")
		}
		return NewJWTProvider(jwtSecret), nil
	default:
		return nil, fmt.Errorf("identity: unknown AUTH_MODE %q", mode)
	}
}
