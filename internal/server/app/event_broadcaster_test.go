package app

import (
	"testing"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
)

func TestBroadcasterDeliversToThreadSubscribers(t *testing.T) {
	b := NewEventBroadcaster()
	ch1 := make(chan thread.Event, 4)
	ch2 := make(chan thread.Event, 4)
	other := make(chan thread.Event, 4)
	b.RegisterClient("th_1", ch1)
	b.RegisterClient("th_1", ch2)
	b.RegisterClient("th_2", other)

	ev := &thread.ItemAdded{Item: thread.NewAssistantMessage("th_1", "hello")}
	b.Publish("th_1", ev)

	if len(ch1) != 1 || len(ch2) != 1 {
		t.Fatalf("delivery counts = %d, %d, want 1 each", len(ch1), len(ch2))
	}
	if len(other) != 0 {
		t.Fatal("event leaked to another thread's subscriber")
	}
	if got := <-ch1; got != ev {
		t.Fatalf("received %v, want %v", got, ev)
	}
}

func TestBroadcasterDropsWhenBufferFull(t *testing.T) {
	b := NewEventBroadcaster()
	ch := make(chan thread.Event, 1)
	b.RegisterClient("th_1", ch)

	first := &thread.ItemAdded{Item: thread.NewAssistantMessage("th_1", "one")}
	second := &thread.ItemAdded{Item: thread.NewAssistantMessage("th_1", "two")}
	b.Publish("th_1", first)
	b.Publish("th_1", second)

	if len(ch) != 1 {
		t.Fatalf("buffered %d events, want 1", len(ch))
	}
	m := b.Metrics()
	if m.TotalEventsSent != 1 || m.DroppedEvents != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestBroadcasterUnregister(t *testing.T) {
	b := NewEventBroadcaster()
	ch := make(chan thread.Event, 1)
	b.RegisterClient("th_1", ch)
	if b.ClientCount("th_1") != 1 {
		t.Fatalf("client count = %d", b.ClientCount("th_1"))
	}

	b.UnregisterClient("th_1", ch)
	if b.ClientCount("th_1") != 0 {
		t.Fatalf("client count after unregister = %d", b.ClientCount("th_1"))
	}

	b.Publish("th_1", &thread.ItemAdded{Item: thread.NewAssistantMessage("th_1", "late")})
	if len(ch) != 0 {
		t.Fatal("unregistered channel received an event")
	}

	m := b.Metrics()
	if m.TotalConnections != 1 || m.ActiveConnections != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}
