package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/runstate"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime"
)

func TestProcessEventsPersistsDoneItems(t *testing.T) {
	items := threadstore.NewMemoryStore()
	p := NewProcessor(items)
	msg := thread.NewAssistantMessage("th_p1", "done text")
	run := func(_ context.Context, emit Emitter) error {
		if err := emit(&thread.ItemAdded{Item: msg}); err != nil {
			return err
		}
		return emit(&thread.ItemDone{Item: msg})
	}
	c := &collector{}

	if err := p.ProcessEvents(context.Background(), "th_p1", run, c.emit); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}

	requireTypes(t, c.types(), []string{thread.EventTypeItemAdded, thread.EventTypeItemDone})
	stored := storedItems(t, items, "th_p1")
	if len(stored) != 1 || stored[0].ID != msg.ID {
		t.Fatalf("stored = %+v, want exactly %s", stored, msg.ID)
	}
}

func TestProcessEventsSkipsWidgetPersistence(t *testing.T) {
	items := threadstore.NewMemoryStore()
	p := NewProcessor(items)
	widgetID := thread.NewWidgetItemID()
	item := thread.NewWidgetItem(widgetID, "th_p2", thread.NewApprovalWidget("send_email", "{}", "call_9", widgetID))
	run := func(_ context.Context, emit Emitter) error {
		if err := emit(&thread.ItemAdded{Item: item}); err != nil {
			return err
		}
		return emit(&thread.ItemDone{Item: item})
	}

	if err := p.ProcessEvents(context.Background(), "th_p2", run, (&collector{}).emit); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}
	if stored := storedItems(t, items, "th_p2"); len(stored) != 0 {
		t.Fatalf("stored %d items, want 0", len(stored))
	}
}

func TestProcessEventsNoDuplicateRowWithStreamerSave(t *testing.T) {
	// The streamer saves the final assistant message via upsert; the generic
	// done path appends if absent. Together they must leave one row.
	items := threadstore.NewMemoryStore()
	s := NewStreamer(items, runstate.NewMemoryStore())
	p := NewProcessor(items)
	src := &fakeStream{events: []runtime.Event{&runtime.TextDelta{Delta: "once"}}}
	run := func(ctx context.Context, emit Emitter) error {
		return s.Run(ctx, "th_p3", src, emit)
	}

	if err := p.ProcessEvents(context.Background(), "th_p3", run, (&collector{}).emit); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}
	stored := storedItems(t, items, "th_p3")
	if len(stored) != 1 {
		t.Fatalf("stored %d rows, want 1", len(stored))
	}
	if stored[0].Text() != "once" {
		t.Fatalf("stored text = %q", stored[0].Text())
	}
}

func TestProcessEventsConvertsFailureToErrorEvent(t *testing.T) {
	p := NewProcessor(threadstore.NewMemoryStore())
	run := func(_ context.Context, emit Emitter) error {
		if err := emit(&thread.ItemAdded{Item: thread.NewAssistantMessage("th_p4", "partial")}); err != nil {
			return err
		}
		return errors.New("model connection reset")
	}
	c := &collector{}

	if err := p.ProcessEvents(context.Background(), "th_p4", run, c.emit); err != nil {
		t.Fatalf("ProcessEvents: %v", err)
	}

	requireTypes(t, c.types(), []string{thread.EventTypeItemAdded, thread.EventTypeError})
	serr := c.events[1].(*thread.StreamError)
	if serr.Code != thread.ErrCodeStreamError {
		t.Fatalf("error code = %q, want %q", serr.Code, thread.ErrCodeStreamError)
	}
	if !serr.AllowRetry {
		t.Fatal("error event must allow retry")
	}
	if serr.Message == "model connection reset" {
		t.Fatal("internal error detail leaked to the client")
	}
}

func TestProcessEventsEmitterFailureNotMasked(t *testing.T) {
	p := NewProcessor(threadstore.NewMemoryStore())
	cause := errors.New("write: broken pipe")
	run := func(_ context.Context, emit Emitter) error {
		return emit(&thread.ItemAdded{Item: thread.NewAssistantMessage("th_p5", "x")})
	}
	emit := func(thread.Event) error { return cause }

	// No error frame can reach a dead connection; the failure surfaces to the
	// caller instead.
	if err := p.ProcessEvents(context.Background(), "th_p5", run, emit); !errors.Is(err, cause) {
		t.Fatalf("ProcessEvents error = %v, want %v", err, cause)
	}
}
