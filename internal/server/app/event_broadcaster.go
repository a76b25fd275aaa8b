package app

import (
	"sync"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
)

// EventBroadcaster fans protocol events out to subscribers watching a thread
// over a secondary channel (WebSocket relays, dashboards) while the primary
// SSE response streams to the requester.
type EventBroadcaster struct {
	// Map threadID -> list of client channels
	clients map[string][]chan thread.Event
	mu      sync.RWMutex
	logger  logging.Logger

	metrics broadcasterMetrics
}

// broadcasterMetrics tracks broadcaster delivery counters.
type broadcasterMetrics struct {
	mu sync.RWMutex

	totalEventsSent   int64
	droppedEvents     int64 // events dropped due to full buffers
	totalConnections  int64
	activeConnections int64
}

// BroadcasterMetrics is a point-in-time snapshot of delivery counters.
type BroadcasterMetrics struct {
	TotalEventsSent   int64
	DroppedEvents     int64
	TotalConnections  int64
	ActiveConnections int64
}

// NewEventBroadcaster creates an event broadcaster.
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[string][]chan thread.Event),
		logger:  logging.NewComponentLogger("EventBroadcaster"),
	}
}

// Publish delivers ev to every client subscribed to threadID. Delivery is
// non-blocking: a subscriber whose buffer is full misses the event rather
// than stalling the stream for everyone else.
func (b *EventBroadcaster) Publish(threadID string, ev thread.Event) {
	if ev == nil || threadID == "" {
		return
	}

	b.mu.RLock()
	clients := b.clients[threadID]
	b.mu.RUnlock()

	for _, ch := range clients {
		select {
		case ch <- ev:
			b.metrics.incrementEventsSent()
		default:
			b.metrics.incrementDropped()
			b.logger.Warn("Dropping event %s for a slow subscriber on thread %s", ev.EventType(), threadID)
		}
	}
}

// RegisterClient subscribes ch to events for threadID. The caller owns the
// channel and must unregister it before closing.
func (b *EventBroadcaster) RegisterClient(threadID string, ch chan thread.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[threadID] = append(b.clients[threadID], ch)
	b.metrics.incrementConnections()
	b.logger.Debug("Registered subscriber for thread %s (%d total)", threadID, len(b.clients[threadID]))
}

// UnregisterClient removes ch from threadID's subscriber list.
func (b *EventBroadcaster) UnregisterClient(threadID string, ch chan thread.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients := b.clients[threadID]
	for i, c := range clients {
		if c == ch {
			b.clients[threadID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(b.clients[threadID]) == 0 {
		delete(b.clients, threadID)
	}
	b.metrics.decrementConnections()
}

// ClientCount returns the number of subscribers for a thread.
func (b *EventBroadcaster) ClientCount(threadID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[threadID])
}

// Metrics returns a snapshot of delivery counters.
func (b *EventBroadcaster) Metrics() BroadcasterMetrics {
	b.metrics.mu.RLock()
	defer b.metrics.mu.RUnlock()
	return BroadcasterMetrics{
		TotalEventsSent:   b.metrics.totalEventsSent,
		DroppedEvents:     b.metrics.droppedEvents,
		TotalConnections:  b.metrics.totalConnections,
		ActiveConnections: b.metrics.activeConnections,
	}
}

func (m *broadcasterMetrics) incrementEventsSent() {
	m.mu.Lock()
	m.totalEventsSent++
	m.mu.Unlock()
}

func (m *broadcasterMetrics) incrementDropped() {
	m.mu.Lock()
	m.droppedEvents++
	m.mu.Unlock()
}

func (m *broadcasterMetrics) incrementConnections() {
	m.mu.Lock()
	m.totalConnections++
	m.activeConnections++
	m.mu.Unlock()
}

func (m *broadcasterMetrics) decrementConnections() {
	m.mu.Lock()
	m.activeConnections--
	m.mu.Unlock()
}
