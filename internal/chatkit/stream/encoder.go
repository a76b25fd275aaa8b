package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/observability"
)

// Encoder writes protocol events as server-sent-event frames, one
// `data: <json>\n\n` frame per event, preserving upstream ordering. It is the
// transport-side error boundary: a validation or serialization failure
// produces a single terminal error frame, after which the encoder goes
// silent so a broken stream never carries two terminal events.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	logger  logging.Logger
	metrics *observability.StreamMetrics
	failed  bool
}

// EncoderOption customizes an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderLogger sets the component logger.
func WithEncoderLogger(logger logging.Logger) EncoderOption {
	return func(e *Encoder) {
		e.logger = logging.OrNop(logger)
	}
}

// NewEncoder creates an Encoder writing frames to w. If w implements
// http.Flusher each frame is flushed immediately so clients see events as
// they happen.
func NewEncoder(w io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		w:       w,
		logger:  logging.Nop(),
		metrics: observability.NewStreamMetrics(),
	}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode validates ev, serializes it into its wire envelope, and writes one
// frame. After a failure has been written the encoder drops all further
// events. Write errors on the underlying connection are returned as-is; the
// client is gone and no error frame can reach it.
func (e *Encoder) Encode(ev thread.Event) error {
	if e.failed {
		return nil
	}

	envelope, err := envelopeFor(ev)
	if err != nil {
		e.metrics.RecordEncodeFailure()
		e.logger.Error("Dropping malformed stream event %s: %v", ev.EventType(), err)
		return e.writeError(&thread.StreamError{
			Code:       thread.ErrCodeStreamError,
			Message:    "Stream processing error",
			AllowRetry: true,
		})
	}

	if _, isErr := ev.(*thread.StreamError); isErr {
		e.failed = true
	}
	return e.writeFrame(envelope)
}

func (e *Encoder) writeError(serr *thread.StreamError) error {
	e.failed = true
	envelope := map[string]any{
		"type":        serr.EventType(),
		"code":        serr.Code,
		"message":     serr.Message,
		"allow_retry": serr.AllowRetry,
	}
	return e.writeFrame(envelope)
}

func (e *Encoder) writeFrame(envelope map[string]any) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal stream frame: %w", err)
	}
	if _, err := e.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := e.w.Write(payload); err != nil {
		return err
	}
	if _, err := e.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// MarshalEvent serializes a protocol event into its wire envelope without the
// SSE framing, for transports that carry whole JSON messages.
func MarshalEvent(ev thread.Event) ([]byte, error) {
	envelope, err := envelopeFor(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// envelopeFor maps an event to its wire shape, rejecting events that would
// serialize into frames a client cannot render.
func envelopeFor(ev thread.Event) (map[string]any, error) {
	switch ev := ev.(type) {
	case *thread.ThreadCreated:
		if err := validateThread(ev.Thread); err != nil {
			return nil, err
		}
		return map[string]any{"type": ev.EventType(), "thread": ev.Thread}, nil
	case *thread.ThreadUpdated:
		if err := validateThread(ev.Thread); err != nil {
			return nil, err
		}
		return map[string]any{"type": ev.EventType(), "thread": ev.Thread}, nil
	case *thread.ItemAdded:
		if ev.Item == nil {
			return nil, fmt.Errorf("item.added without item")
		}
		return map[string]any{"type": ev.EventType(), "item": ev.Item}, nil
	case *thread.ItemDone:
		if ev.Item == nil {
			return nil, fmt.Errorf("item.done without item")
		}
		return map[string]any{"type": ev.EventType(), "item": ev.Item}, nil
	case *thread.ItemUpdated:
		if ev.ItemID == "" {
			return nil, fmt.Errorf("item.updated without item id")
		}
		return map[string]any{"type": ev.EventType(), "item_id": ev.ItemID, "update": ev.Update}, nil
	case *thread.StreamError:
		return map[string]any{
			"type":        ev.EventType(),
			"code":        ev.Code,
			"message":     ev.Message,
			"allow_retry": ev.AllowRetry,
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.EventType())
	}
}

func validateThread(t *thread.Thread) error {
	if t == nil {
		return fmt.Errorf("thread event without thread")
	}
	if t.Items.Data == nil {
		return fmt.Errorf("thread %s has nil items container", t.ID)
	}
	if t.Status.Type == "" {
		return fmt.Errorf("thread %s has no status", t.ID)
	}
	return nil
}
