package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/runstate"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/observability"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime"
)

// Emitter receives protocol events in emission order. Returning an error
// aborts the stream.
type Emitter func(thread.Event) error

// Streamer translates one agent run's raw event stream into ordered
// thread-protocol events, persisting thread items as a side effect.
type Streamer struct {
	items     threadstore.Store
	states    runstate.Store
	logger    logging.Logger
	metrics   *observability.StreamMetrics
	collector *observability.MetricsCollector
}

// StreamerOption configures optional behavior.
type StreamerOption func(*Streamer)

// WithStreamerLogger overrides the component logger.
func WithStreamerLogger(logger logging.Logger) StreamerOption {
	return func(s *Streamer) {
		s.logger = logging.OrNop(logger)
	}
}

// WithStreamMetrics records pipeline health counters on m.
func WithStreamMetrics(m *observability.StreamMetrics) StreamerOption {
	return func(s *Streamer) {
		s.metrics = m
	}
}

// WithMetricsCollector records approval pauses on the otel collector.
func WithMetricsCollector(m *observability.MetricsCollector) StreamerOption {
	return func(s *Streamer) {
		s.collector = m
	}
}

// NewStreamer wires the streamer to its stores.
func NewStreamer(items threadstore.Store, states runstate.Store, opts ...StreamerOption) *Streamer {
	s := &Streamer{
		items:   items,
		states:  states,
		logger:  logging.NewComponentLogger("Streamer"),
		metrics: observability.NewStreamMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run consumes src until exhaustion or an approval pause, dispatching each
// raw event to its handler and emitting protocol events via emit.
//
// Invariants: events for the assistant message are emitted in the fixed order
// item.added, content-part updates, item.done, and at most one terminal
// assistant message is persisted per call. A tool-approval event ends
// iteration without the completion flush; the run can later be resumed from
// the persisted run state.
func (s *Streamer) Run(ctx context.Context, threadID string, src runtime.Stream, emit Emitter) error {
	st := newStreamState()

	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		switch ev := ev.(type) {
		case *runtime.ToolCalled:
			err = s.handleToolCalled(ctx, threadID, ev)
		case *runtime.ToolCallOutput:
			err = s.handleToolCallOutput(ctx, threadID, ev, emit)
		case *runtime.HandoffCall:
			err = s.handleHandoffCall(ctx, threadID, ev, st, emit)
		case *runtime.HandoffOutput:
			err = s.handleHandoffOutput(ctx, threadID, ev, emit)
		case *runtime.ToolApprovalRequested:
			// The single early-exit point: pause for a human decision, skip
			// the completion flush entirely.
			return s.handleApprovalRequested(ctx, threadID, ev, src, emit)
		case *runtime.TextDelta:
			err = s.handleTextDelta(threadID, ev, st, emit)
		default:
			s.metrics.RecordUnknownEvent()
			s.logger.Debug("Skipping unhandled runtime event %s", ev.EventType())
		}
		if err != nil {
			return err
		}
	}

	return s.flush(ctx, threadID, st, emit)
}

// flush closes out the assistant message once the raw stream is exhausted.
func (s *Streamer) flush(ctx context.Context, threadID string, st *streamState, emit Emitter) error {
	text := st.text.String()

	if st.partOpened {
		update := &thread.ItemUpdated{
			ItemID: st.itemID,
			Update: thread.NewContentPartDone(text),
		}
		if err := emit(update); err != nil {
			return err
		}
	}

	// A run may produce final output without any deltas; the added event must
	// still precede done.
	if !st.itemAdded {
		st.itemID = thread.NewAssistantMessageID()
		st.createdAt = time.Now().UTC()
		if err := emit(&thread.ItemAdded{Item: thread.AssistantMessageAt(st.itemID, threadID, text, st.createdAt)}); err != nil {
			return err
		}
	}

	final := thread.AssistantMessageAt(st.itemID, threadID, text, st.createdAt)
	if err := emit(&thread.ItemDone{Item: final}); err != nil {
		return err
	}

	if text != "" {
		if err := s.items.SaveItem(ctx, threadID, final); err != nil {
			s.metrics.RecordStoreError("save_item")
			return err
		}
	}
	return nil
}
