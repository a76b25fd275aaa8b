package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/stream"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/server/app"
)

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

type approvalRequest struct {
	CallID   string `json:"call_id" binding:"required"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// handleStreamMessage runs one user turn and streams protocol events as SSE.
// Without a path id a new thread is created; its id arrives on the
// thread.created event.
func (s *Server) handleStreamMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, app.ValidationError("message is required"))
		return
	}

	s.streamResponse(c, func(emit stream.Emitter) error {
		return s.chat.StreamMessage(c.Request.Context(), c.Param("id"), req.Message, emit)
	})
}

// handleSubmitApproval applies an approval decision and streams the resumed
// run.
func (s *Server) handleSubmitApproval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, app.ValidationError("call_id is required"))
		return
	}

	decision := runtime.ApprovalDecision{
		CallID:   req.CallID,
		Approved: req.Approved,
		Reason:   req.Reason,
	}
	s.streamResponse(c, func(emit stream.Emitter) error {
		return s.chat.SubmitApproval(c.Request.Context(), c.Param("id"), decision, emit)
	})
}

// streamResponse sets up the SSE response and relays events from run. Errors
// raised before the first frame map to a JSON error response; once framing
// has begun any failure resolves as a single terminal error frame on the
// open connection. The encoder goes silent after an error frame, so a run
// whose pipeline already emitted one never produces a second.
func (s *Server) streamResponse(c *gin.Context, run func(stream.Emitter) error) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	encoder := stream.NewEncoder(c.Writer, stream.WithEncoderLogger(s.logger))
	framed := false
	emit := func(ev thread.Event) error {
		framed = true
		return encoder.Encode(ev)
	}

	if err := run(emit); err != nil {
		if !framed {
			c.Writer.Header().Del("Content-Type")
			writeError(c, err)
			return
		}
		s.logger.Warn("Stream aborted mid-flight: %v", err)
		if encodeErr := encoder.Encode(&thread.StreamError{
			Code:       thread.ErrCodeStreamError,
			Message:    "Stream processing error",
			AllowRetry: true,
		}); encodeErr != nil {
			s.logger.Warn("Terminal error frame not delivered: %v", encodeErr)
		}
		c.Status(http.StatusOK)
	}
}
