package stream

import (
	"context"
	"fmt"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/observability"
)

// RunFunc produces the protocol events for one streaming turn, pushing each
// event through emit.
type RunFunc func(ctx context.Context, emit Emitter) error

// Processor is the outer error boundary of the streaming pipeline. It relays
// events from a RunFunc to the caller's Emitter, persisting completed items
// along the way, and converts any run failure into a single terminal error
// event instead of surfacing internal details to the client.
type Processor struct {
	items     threadstore.Store
	logger    logging.Logger
	collector *observability.MetricsCollector
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the component logger.
func WithProcessorLogger(logger logging.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logging.OrNop(logger)
	}
}

// WithProcessorMetrics records persisted-item counts on the otel collector.
func WithProcessorMetrics(m *observability.MetricsCollector) ProcessorOption {
	return func(p *Processor) {
		p.collector = m
	}
}

// NewProcessor creates a Processor persisting completed items to items.
func NewProcessor(items threadstore.Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		items:  items,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessEvents runs run to completion, forwarding every event to emit.
// Completed items carried by item.done events are persisted, except widgets,
// which are ephemeral UI state. If run fails, a single error event with a
// generic message is emitted and the underlying cause is logged, not
// returned; emitter failures are returned as-is since the client is gone.
func (p *Processor) ProcessEvents(ctx context.Context, threadID string, run RunFunc, emit Emitter) error {
	var emitFailed bool

	wrapped := func(ev thread.Event) error {
		if done, ok := ev.(*thread.ItemDone); ok && done.Item != nil && done.Item.Type != thread.ItemTypeWidget {
			if err := p.items.AddItem(ctx, threadID, done.Item); err != nil {
				return fmt.Errorf("persist completed item %s: %w", done.Item.ID, err)
			}
			if p.collector != nil {
				p.collector.RecordItemPersisted(ctx, string(done.Item.Type))
			}
		}
		if err := emit(ev); err != nil {
			emitFailed = true
			return err
		}
		return nil
	}

	if err := run(ctx, wrapped); err != nil {
		if emitFailed {
			return err
		}
		p.logger.Error("Stream processing failed for thread %s: %v", threadID, err)
		return emit(&thread.StreamError{
			Code:       thread.ErrCodeStreamError,
			Message:    "Stream processing error",
			AllowRetry: true,
		})
	}
	return nil
}
