package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error a handler attached with c.Error. Server
// errors are logged and their details withheld from the client.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		traceID := c.GetString(ContextRequestID)
		lastErr := c.Errors.Last().Err
		status := apperrors.HTTPStatus(lastErr)

		message := lastErr.Error()
		var appErr *apperrors.AppError
		if errors.As(lastErr, &appErr) {
			message = appErr.Message
		}
		if errors.Is(lastErr, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		if status >= 500 {
			log.Error(lastErr, "request failed",
				"request_id", traceID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			message = http.StatusText(status)
		}

		c.JSON(status, ErrorResponse{
			Code:    status,
			Message: message,
			TraceID: traceID,
		})
	}
}
