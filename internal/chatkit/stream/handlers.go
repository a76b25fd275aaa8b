package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime"
)

// handleToolCalled records the invocation. There is no direct visual effect;
// the tool's output or approval prompt does the visible work.
func (s *Streamer) handleToolCalled(ctx context.Context, threadID string, ev *runtime.ToolCalled) error {
	item := thread.NewToolCall(threadID, ev.ToolName, ev.CallID, ev.Arguments)
	if err := s.items.SaveItem(ctx, threadID, item); err != nil {
		s.metrics.RecordStoreError("save_item")
		return fmt.Errorf("persist tool call %s: %w", ev.CallID, err)
	}
	return nil
}

// handleToolCallOutput records the result and surfaces it to the client.
func (s *Streamer) handleToolCallOutput(ctx context.Context, threadID string, ev *runtime.ToolCallOutput, emit Emitter) error {
	item := thread.NewToolCallOutput(threadID, ev.ToolName, ev.CallID, ev.Output)
	if err := s.items.SaveItem(ctx, threadID, item); err != nil {
		s.metrics.RecordStoreError("save_item")
		return fmt.Errorf("persist tool output %s: %w", ev.CallID, err)
	}
	return emit(&thread.ItemAdded{Item: item})
}

// handleHandoffCall notifies the client once per handoff name per stream
// invocation; repeated raw events for the same handoff are dropped silently.
func (s *Streamer) handleHandoffCall(ctx context.Context, threadID string, ev *runtime.HandoffCall, st *streamState, emit Emitter) error {
	if !st.markHandoff(ev.HandoffName, threadID) {
		s.metrics.RecordHandoffDrop()
		s.logger.Debug("Suppressing duplicate handoff %s on thread %s", ev.HandoffName, threadID)
		return nil
	}

	item := thread.NewHandoffCall(threadID, ev.HandoffName)
	if err := s.items.SaveItem(ctx, threadID, item); err != nil {
		s.metrics.RecordStoreError("save_item")
		return fmt.Errorf("persist handoff call %s: %w", ev.HandoffName, err)
	}

	widget := thread.NewHandoffWidget(ev.HandoffName)
	indicator := thread.NewWidgetItem(thread.NewWidgetItemID(), threadID, widget)
	s.metrics.RecordWidgetEmitted("handoff")
	return emit(&thread.ItemAdded{Item: indicator})
}

// handleHandoffOutput mirrors handleToolCallOutput for the handoff response side.
func (s *Streamer) handleHandoffOutput(ctx context.Context, threadID string, ev *runtime.HandoffOutput, emit Emitter) error {
	item := thread.NewHandoffOutput(threadID, ev.HandoffName, ev.Output)
	if err := s.items.SaveItem(ctx, threadID, item); err != nil {
		s.metrics.RecordStoreError("save_item")
		return fmt.Errorf("persist handoff output %s: %w", ev.HandoffName, err)
	}
	return emit(&thread.ItemAdded{Item: item})
}

// handleApprovalRequested checkpoints the run, surfaces the approval prompt,
// and pauses the stream. The widget is emitted added-then-done and is never
// persisted; the saved run state is the resumption point.
func (s *Streamer) handleApprovalRequested(ctx context.Context, threadID string, ev *runtime.ToolApprovalRequested, src runtime.Stream, emit Emitter) error {
	state, err := src.State()
	if err != nil {
		return fmt.Errorf("snapshot run state: %w", err)
	}
	if err := s.states.Save(ctx, threadID, state); err != nil {
		return fmt.Errorf("persist run state for %s: %w", threadID, err)
	}
	s.metrics.RecordRunStateSave()
	if s.collector != nil {
		s.collector.RecordApprovalPause(ctx, ev.ToolName)
	}

	s.metrics.RecordWidgetEmitted("approval")
	widgetID := thread.NewWidgetItemID()
	widget := thread.NewApprovalWidget(ev.ToolName, ev.Arguments, ev.CallID, widgetID)
	item := thread.NewWidgetItem(widgetID, threadID, widget)

	if err := emit(&thread.ItemAdded{Item: item}); err != nil {
		return err
	}
	return emit(&thread.ItemDone{Item: item})
}

// handleTextDelta accumulates assistant text and opens the message on the
// first delta.
func (s *Streamer) handleTextDelta(threadID string, ev *runtime.TextDelta, st *streamState, emit Emitter) error {
	st.text.WriteString(ev.Delta)

	if !st.itemAdded {
		st.itemID = thread.NewAssistantMessageID()
		st.createdAt = time.Now().UTC()
		st.itemAdded = true
		partial := thread.AssistantMessageAt(st.itemID, threadID, st.text.String(), st.createdAt)
		if err := emit(&thread.ItemAdded{Item: partial}); err != nil {
			return err
		}
	}
	st.partOpened = true
	return nil
}
