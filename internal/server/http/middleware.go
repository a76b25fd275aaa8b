package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/server/app"
	id "github.com/Timestep-AI/timestep-ai-sub004/internal/utils/id"
)

// requestLogMiddleware logs one line per request with latency and status.
func requestLogMiddleware(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// userContextMiddleware attaches the caller identity to the request context.
// Run-state checkpoints are scoped by this identity.
func userContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Request = c.Request.WithContext(id.WithUserID(c.Request.Context(), userID))
		}
		c.Next()
	}
}

// writeError maps application errors to HTTP status codes with a JSON body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrThreadLocked):
		status = http.StatusConflict
	case errors.Is(err, app.ErrNoPendingApproval):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
