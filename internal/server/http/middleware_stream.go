package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamGuardConfig bounds streaming responses so a wedged run cannot pin a
// connection forever.
type StreamGuardConfig struct {
	MaxDuration   time.Duration `json:"max_duration"`
	MaxBytes      int64         `json:"max_bytes"`
	MaxConcurrent int           `json:"max_concurrent"`
}

type streamLimitWriter struct {
	gin.ResponseWriter
	cancel  context.CancelFunc
	limit   int64
	written int64
}

func (w *streamLimitWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	if n > 0 {
		w.written += int64(n)
	}
	if w.limit > 0 && w.written >= w.limit && w.cancel != nil {
		w.cancel()
	}
	return n, err
}

// StreamGuardMiddleware enforces per-stream duration, byte, and concurrency
// limits on streaming endpoints. Non-streaming requests pass through
// untouched.
func StreamGuardMiddleware(cfg StreamGuardConfig) gin.HandlerFunc {
	if cfg.MaxDuration <= 0 && cfg.MaxBytes <= 0 && cfg.MaxConcurrent <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	var sem chan struct{}
	if cfg.MaxConcurrent > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return func(c *gin.Context) {
		if !isStreamRequest(c.Request) {
			c.Next()
			return
		}

		if sem != nil {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			default:
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "stream limit exceeded"})
				return
			}
		}

		ctx := c.Request.Context()
		cancel := func() {}
		if cfg.MaxDuration > 0 {
			var cancelTimeout context.CancelFunc
			ctx, cancelTimeout = context.WithTimeout(ctx, cfg.MaxDuration)
			cancel = cancelTimeout
		}
		if cfg.MaxBytes > 0 {
			var cancelBytes context.CancelFunc
			ctx, cancelBytes = context.WithCancel(ctx)
			prevCancel := cancel
			cancel = func() {
				cancelBytes()
				prevCancel()
			}
			c.Writer = &streamLimitWriter{ResponseWriter: c.Writer, cancel: cancelBytes, limit: cfg.MaxBytes}
		}
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func isStreamRequest(r *http.Request) bool {
	if r == nil || r.URL == nil {
		return false
	}
	path := strings.TrimSpace(r.URL.Path)
	if strings.HasSuffix(path, "/messages") || strings.HasSuffix(path, "/approvals") {
		return true
	}
	accept := strings.ToLower(strings.TrimSpace(r.Header.Get("Accept")))
	return strings.Contains(accept, "text/event-stream")
}
