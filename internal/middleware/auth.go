package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/pkg/auth"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// TokenValidator is satisfied by *auth.Verifier.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// PermissionResolver is satisfied by *permission.Service.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID, dashboardType string) (*model.EffectivePermissions, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
	perms  PermissionResolver
}

func NewAuthMiddleware(tokens TokenValidator, perms PermissionResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, perms: perms}
}

// Authenticate verifies the bearer token and sets the caller's user id in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// RequirePermission checks that the caller's effective permissions grant op on
// feature. It runs after Authenticate and Tenant. A caller whose permissions cannot
// be resolved is denied.
func (m *AuthMiddleware) RequirePermission(feature, op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if m.perms == nil {
			abort(c, http.StatusForbidden, "permission denied")
			return
		}

		perms, err := m.perms.EffectivePermissions(c.Request.Context(), userID, model.GuardDashboard)
		switch {
		case apperrors.HasCode(err, apperrors.ErrNotFound):
			abort(c, http.StatusForbidden, "permission denied")
			return
		case err != nil:
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, "failed to check permission")
			return
		}

		if !model.Allows(perms.Features, feature, op) {
			abort(c, http.StatusForbidden, "permission denied")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    status,
		Message: message,
		TraceID: c.GetString(ContextRequestID),
	})
}
