package stream

import (
	"strings"
	"time"
)

// streamState tracks cross-event streaming state for one invocation. A fresh
// instance exists per Run call and is never shared across concurrent streams.
type streamState struct {
	// Assistant message under construction.
	itemID     string
	createdAt  time.Time
	itemAdded  bool // thread.item.added already emitted
	partOpened bool // a content part was opened and needs a done update
	text       strings.Builder

	// Handoff keys already notified during this invocation.
	handoffs map[string]struct{}
}

func newStreamState() *streamState {
	return &streamState{handoffs: make(map[string]struct{})}
}

func (st *streamState) handoffKey(handoffName, threadID string) string {
	return "handoff_" + handoffName + "_" + threadID
}

func (st *streamState) markHandoff(handoffName, threadID string) bool {
	key := st.handoffKey(handoffName, threadID)
	if _, seen := st.handoffs[key]; seen {
		return false
	}
	st.handoffs[key] = struct{}{}
	return true
}
