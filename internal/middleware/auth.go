package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/famalink/telemed-api/pkg/auth"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
	"github.com/famalink/telemed-api/pkg/httputil"
)

const (
	ContextDoctorID = "doctorID"
	ContextClaims   = "claims"
)

// Authenticator resolves a bearer token, refusing expired and revoked ones.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	authenticator Authenticator
}

func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// Authenticate verifies the bearer token and puts the doctor ID in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return m.authenticate(false)
}

// AuthenticateQuery also accepts ?token=, for WebSocket clients that cannot
// set headers.
func (m *AuthMiddleware) AuthenticateQuery() gin.HandlerFunc {
	return m.authenticate(true)
}

func (m *AuthMiddleware) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok && allowQuery {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			httputil.RespondWithError(c, apperrors.NewUnauthorized("missing or malformed authorization header", nil))
			return
		}

		claims, err := m.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextDoctorID, claims.DoctorID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// DoctorID returns the authenticated doctor. Only valid behind Authenticate.
func DoctorID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(ContextDoctorID)
	doctorID, _ := id.(uuid.UUID)
	return doctorID
}

func Claims(c *gin.Context) *auth.Claims {
	v, _ := c.Get(ContextClaims)
	claims, _ := v.(*auth.Claims)
	return claims
}
