package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/stream"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/server/app"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsEventBuffer  = 64
)

// handleEventSocket upgrades to WebSocket and relays the thread's protocol
// events live. The relay is read-only; decisions and messages still go
// through the HTTP endpoints.
func (s *Server) handleEventSocket(c *gin.Context) {
	threadID := c.Param("id")
	if threadID == "" {
		writeError(c, app.ValidationError("thread id is required"))
		return
	}
	if _, err := s.threadsAPI.GetThread(c.Request.Context(), threadID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed for thread %s: %v", threadID, err)
		return
	}
	defer func() { _ = conn.Close() }()

	events := make(chan thread.Event, wsEventBuffer)
	s.broadcaster.RegisterClient(threadID, events)
	defer s.broadcaster.UnregisterClient(threadID, events)

	s.logger.Info("WebSocket subscriber attached to thread %s", threadID)

	// Reader goroutine notices the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case ev := <-events:
			payload, err := stream.MarshalEvent(ev)
			if err != nil {
				s.logger.Error("Dropping unmarshalable event %s: %v", ev.EventType(), err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("WebSocket write failed for thread %s: %v", threadID, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
