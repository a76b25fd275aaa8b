package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/runstate"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime"
)

// scriptedStream replays fixed events then io.EOF.
type scriptedStream struct {
	events []runtime.Event
	pos    int
	state  json.RawMessage
}

func (f *scriptedStream) Next(ctx context.Context) (runtime.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.pos >= len(f.events) {
		return nil, io.EOF
	}
	ev := f.events[f.pos]
	f.pos++
	return ev, nil
}

func (f *scriptedStream) State() (json.RawMessage, error) {
	return f.state, nil
}

// scriptedRunner serves one scripted stream per Run/Resume call.
type scriptedRunner struct {
	runStreams    []*scriptedStream
	resumeStreams []*scriptedStream
	runErr        error
	resumeCalls   []runtime.ApprovalDecision
}

func (r *scriptedRunner) Run(_ context.Context, _, _ string) (runtime.Stream, error) {
	if r.runErr != nil {
		return nil, r.runErr
	}
	if len(r.runStreams) == 0 {
		return &scriptedStream{}, nil
	}
	src := r.runStreams[0]
	r.runStreams = r.runStreams[1:]
	return src, nil
}

func (r *scriptedRunner) Resume(_ context.Context, _ string, _ json.RawMessage, decision runtime.ApprovalDecision) (runtime.Stream, error) {
	r.resumeCalls = append(r.resumeCalls, decision)
	if len(r.resumeStreams) == 0 {
		return &scriptedStream{}, nil
	}
	src := r.resumeStreams[0]
	r.resumeStreams = r.resumeStreams[1:]
	return src, nil
}

type eventSink struct {
	events []thread.Event
}

func (s *eventSink) emit(ev thread.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) types() []string {
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType())
	}
	return out
}

func TestStreamMessageCreatesThreadOnFirstTurn(t *testing.T) {
	threads := threadstore.NewMemoryStore()
	states := runstate.NewMemoryStore()
	runner := &scriptedRunner{runStreams: []*scriptedStream{
		{events: []runtime.Event{&runtime.TextDelta{Delta: "hi there"}}},
	}}
	svc := NewChatService(threads, states, runner)
	sink := &eventSink{}

	if err := svc.StreamMessage(context.Background(), "", "What is Go?", sink.emit); err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}

	types := sink.types()
	if len(types) == 0 || types[0] != thread.EventTypeThreadCreated {
		t.Fatalf("first event = %v, want thread.created", types)
	}

	created := sink.events[0].(*thread.ThreadCreated).Thread
	if created.Title != "What is Go?" {
		t.Errorf("thread title = %q", created.Title)
	}
	if created.Status.Type != thread.StatusActive {
		t.Errorf("thread status = %q", created.Status.Type)
	}
	if created.Items.Data == nil {
		t.Error("thread items container must be non-nil")
	}

	// User message event follows the thread announcement.
	if types[1] != thread.EventTypeItemAdded {
		t.Fatalf("second event = %s, want item.added", types[1])
	}
	userItem := sink.events[1].(*thread.ItemAdded).Item
	if userItem.Type != thread.ItemTypeUserMessage || userItem.Text() != "What is Go?" {
		t.Fatalf("user item = %+v", userItem)
	}

	// Stored history: user message plus the assistant reply.
	items, _, err := threads.ListItems(context.Background(), created.ID, 10, "")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("stored %d items, want 2", len(items))
	}
}

func TestStreamMessageDerivesTitleFromLongMessage(t *testing.T) {
	long := "This opening message is far too long to be used verbatim as a thread title"
	title := deriveTitle(long)
	if len(title) != maxTitleLength+3 {
		t.Fatalf("title length = %d", len(title))
	}
	if title[len(title)-3:] != "..." {
		t.Fatalf("title = %q, want ellipsis suffix", title)
	}
}

func TestDeriveTitleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("日本語のテキスト", 10)
	title := deriveTitle(long)
	if !utf8.ValidString(title) {
		t.Fatalf("title %q is not valid UTF-8", title)
	}
	if len(title) > maxTitleLength+3 {
		t.Fatalf("title length = %d, want at most %d", len(title), maxTitleLength+3)
	}
	if !strings.HasSuffix(title, "...") {
		t.Fatalf("title = %q, want ellipsis suffix", title)
	}
	if !strings.HasPrefix(long, strings.TrimSuffix(title, "...")) {
		t.Fatalf("title %q is not a prefix of the message", title)
	}
}

func TestStreamMessageUnknownThread(t *testing.T) {
	svc := NewChatService(threadstore.NewMemoryStore(), runstate.NewMemoryStore(), &scriptedRunner{})
	err := svc.StreamMessage(context.Background(), "th_missing", "hello", (&eventSink{}).emit)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStreamMessageEmptyMessage(t *testing.T) {
	svc := NewChatService(threadstore.NewMemoryStore(), runstate.NewMemoryStore(), &scriptedRunner{})
	err := svc.StreamMessage(context.Background(), "", "", (&eventSink{}).emit)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestStreamMessageRejectedWhileLocked(t *testing.T) {
	threads := threadstore.NewMemoryStore()
	states := runstate.NewMemoryStore()
	runner := &scriptedRunner{runStreams: []*scriptedStream{
		{
			events: []runtime.Event{&runtime.ToolApprovalRequested{ToolName: "send_email", CallID: "abc"}},
			state:  json.RawMessage(`{"step":3}`),
		},
	}}
	svc := NewChatService(threads, states, runner)
	sink := &eventSink{}

	if err := svc.StreamMessage(context.Background(), "", "send the report", sink.emit); err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}
	threadID := sink.events[0].(*thread.ThreadCreated).Thread.ID

	pending, err := svc.PendingApproval(context.Background(), threadID)
	if err != nil || !pending {
		t.Fatalf("PendingApproval = %v, %v, want true", pending, err)
	}

	err = svc.StreamMessage(context.Background(), threadID, "another message", (&eventSink{}).emit)
	if !errors.Is(err, ErrThreadLocked) {
		t.Fatalf("error = %v, want ErrThreadLocked", err)
	}
}

func TestSubmitApprovalResumesAndClearsState(t *testing.T) {
	threads := threadstore.NewMemoryStore()
	states := runstate.NewMemoryStore()
	runner := &scriptedRunner{
		runStreams: []*scriptedStream{
			{
				events: []runtime.Event{&runtime.ToolApprovalRequested{ToolName: "send_email", CallID: "abc"}},
				state:  json.RawMessage(`{"step":3}`),
			},
		},
		resumeStreams: []*scriptedStream{
			{events: []runtime.Event{
				&runtime.ToolCallOutput{ToolName: "send_email", CallID: "abc", Output: "sent"},
				&runtime.TextDelta{Delta: "Email sent."},
			}},
		},
	}
	svc := NewChatService(threads, states, runner)
	sink := &eventSink{}
	if err := svc.StreamMessage(context.Background(), "", "send the report", sink.emit); err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}
	threadID := sink.events[0].(*thread.ThreadCreated).Thread.ID

	resumeSink := &eventSink{}
	decision := runtime.ApprovalDecision{CallID: "abc", Approved: true}
	if err := svc.SubmitApproval(context.Background(), threadID, decision, resumeSink.emit); err != nil {
		t.Fatalf("SubmitApproval: %v", err)
	}

	if len(runner.resumeCalls) != 1 || runner.resumeCalls[0].CallID != "abc" {
		t.Fatalf("resume calls = %+v", runner.resumeCalls)
	}

	// The continuation carries the tool output and the assistant reply.
	var sawOutput, sawDone bool
	for _, ev := range resumeSink.events {
		switch ev := ev.(type) {
		case *thread.ItemAdded:
			if ev.Item.Type == thread.ItemTypeToolCallOutput {
				sawOutput = true
			}
		case *thread.ItemDone:
			if ev.Item.Type == thread.ItemTypeAssistantMessage && ev.Item.Text() == "Email sent." {
				sawDone = true
			}
		}
	}
	if !sawOutput || !sawDone {
		t.Fatalf("continuation events = %v", resumeSink.types())
	}

	// The checkpoint is consumed.
	if pending, _ := svc.PendingApproval(context.Background(), threadID); pending {
		t.Fatal("run state should be cleared after a successful resume")
	}
}

func TestSubmitApprovalWithoutPendingRun(t *testing.T) {
	svc := NewChatService(threadstore.NewMemoryStore(), runstate.NewMemoryStore(), &scriptedRunner{})
	err := svc.SubmitApproval(context.Background(), "th_x", runtime.ApprovalDecision{CallID: "abc"}, (&eventSink{}).emit)
	if !errors.Is(err, ErrNoPendingApproval) {
		t.Fatalf("error = %v, want ErrNoPendingApproval", err)
	}
}

func TestStreamMessageMirrorsEventsToBroadcaster(t *testing.T) {
	threads := threadstore.NewMemoryStore()
	states := runstate.NewMemoryStore()
	runner := &scriptedRunner{runStreams: []*scriptedStream{
		{events: []runtime.Event{&runtime.TextDelta{Delta: "hi"}}},
	}}
	b := NewEventBroadcaster()
	svc := NewChatService(threads, states, runner, WithBroadcaster(b))

	// Subscribe after learning the thread id via a first pass is impossible,
	// so capture via the emitter and a generous buffer registered on demand.
	ch := make(chan thread.Event, 16)
	sink := &eventSink{}
	emit := func(ev thread.Event) error {
		if created, ok := ev.(*thread.ThreadCreated); ok {
			b.RegisterClient(created.Thread.ID, ch)
		}
		return sink.emit(ev)
	}

	if err := svc.StreamMessage(context.Background(), "", "hello", emit); err != nil {
		t.Fatalf("StreamMessage: %v", err)
	}

	// Everything after thread.created reached the subscriber.
	if got, want := len(ch), len(sink.events)-1; got != want {
		t.Fatalf("broadcast %d events, want %d", got, want)
	}
}
