package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/headstart-tech/admissions-api/pkg/logger"
)

// Logger returns a middleware that logs HTTP requests
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if university := c.GetString(ContextUniversityID); university != "" {
			fields = append(fields, "university_id", university)
		}

		switch {
		case status >= 500:
			log.Error(lastError(c), "Server error", fields...)
		case status >= 400:
			log.Warn(lastError(c), "Client error", fields...)
		default:
			log.Info("Request processed", fields...)
		}
	}
}

func lastError(c *gin.Context) error {
	if e := c.Errors.Last(); e != nil {
		return e.Err
	}
	return nil
}
