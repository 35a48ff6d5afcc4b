package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/headstart-tech/admissions-api/internal/tenant"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
)

const (
	HeaderUniversityID  = "X-University-ID"
	ContextUniversityID = "university_id"
)

// TenantResolver is satisfied by *tenant.Resolver.
type TenantResolver interface {
	Resolve(ctx context.Context, universityID string) (tenant.Settings, error)
}

// Tenant resolves the university a request acts for and stores its settings in the
// request context. Requests without the header use defaultID.
func Tenant(resolver TenantResolver, defaultID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderUniversityID)
		if id == "" {
			id = defaultID
		}
		if id == "" {
			abortWithError(c, apperrors.BadRequest("university id is required", nil))
			return
		}

		settings, err := resolver.Resolve(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextUniversityID, settings.UniversityID)
		c.Request = c.Request.WithContext(tenant.WithSettings(c.Request.Context(), settings))
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	message := "internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && status < 500 {
		message = appErr.Message
	}
	_ = c.Error(err)
	abort(c, status, message)
}
