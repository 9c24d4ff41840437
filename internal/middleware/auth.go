package middleware

import (
	"net/http"

	"invoiceflow/internal/apierror"
	"invoiceflow/internal/identity"
	"invoiceflow/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const IdentityKey = "identity"

// Authenticate resolves the caller on every protected route.
func Authenticate(provider identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := provider.Resolve(c.Request)
		if err != nil {
			e := apierror.Unauthenticated("Authentication required")
			c.AbortWithStatusJSON(http.StatusUnauthorized, e.Body())
			return
		}
		c.Set(IdentityKey, id)
		c.Next()
	}
}

// RequireOperation rejects callers whose role may not perform op. Services
// check again; this keeps denied requests from binding bodies at all.
func RequireOperation(op rbac.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if err := rbac.Check(id.Role, op); err != nil {
			e, _ := apierror.As(err)
			log.Warn().
				Str("request_id", c.GetString(RequestIDKey)).
				Str("operation", string(op)).
				Str("role", string(id.Role)).
				Str("email", id.Email).
				Msg("access denied")
			c.AbortWithStatusJSON(e.Status(), e.Body())
			return
		}
		c.Next()
	}
}

// GetIdentity returns the caller set by Authenticate, or the zero identity.
func GetIdentity(c *gin.Context) identity.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return identity.Identity{}
	}
	id, _ := v.(identity.Identity)
	return id
}
