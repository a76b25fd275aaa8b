package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// RecordedRun is a captured raw event log from an agent run, the format the
// dashboard ingests to replay a trace through the translation pipeline.
type RecordedRun struct {
	Events []RawEvent      `json:"events"`
	State  json.RawMessage `json:"state,omitempty"`
}

// ReplayStream replays a recorded run as a Stream, classifying each raw
// event on the way out. Unrecognized events are dropped, matching live
// behavior.
type ReplayStream struct {
	events []RawEvent
	state  json.RawMessage
	pos    int
}

// NewReplayStream decodes a recorded run document.
func NewReplayStream(doc []byte) (*ReplayStream, error) {
	var run RecordedRun
	if err := json.Unmarshal(doc, &run); err != nil {
		return nil, fmt.Errorf("decode recorded run: %w", err)
	}
	return &ReplayStream{events: run.Events, state: run.State}, nil
}

// Replay wraps an already-decoded event slice.
func Replay(events []RawEvent, state json.RawMessage) *ReplayStream {
	return &ReplayStream{events: events, state: state}
}

// Next returns the next classified event, skipping raw events that match no
// known shape.
func (r *ReplayStream) Next(ctx context.Context) (Event, error) {
	for r.pos < len(r.events) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := r.events[r.pos]
		r.pos++
		if ev, ok := Classify(raw); ok {
			return ev, nil
		}
	}
	return nil, io.EOF
}

// State returns the checkpoint captured with the recording.
func (r *ReplayStream) State() (json.RawMessage, error) {
	if r.state == nil {
		return json.RawMessage("{}"), nil
	}
	return r.state, nil
}
