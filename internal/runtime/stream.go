package runtime

import (
	"context"
	"encoding/json"
)

// Stream is a pull iterator over classified runtime events for one agent run.
//
// Next returns io.EOF once the run is exhausted; any other error means the
// underlying source failed mid-run. State returns the serialized execution
// snapshot of the run as of the most recently returned event, used as the
// resumption checkpoint when the stream pauses for a tool approval.
type Stream interface {
	Next(ctx context.Context) (Event, error)
	State() (json.RawMessage, error)
}

// ApprovalDecision carries a human decision for a paused tool invocation.
type ApprovalDecision struct {
	CallID   string `json:"call_id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// Runner starts and resumes agent runs. Implementations adapt a concrete
// agent-execution backend; the streaming pipeline treats them as opaque
// event sources.
type Runner interface {
	// Run starts a new run for the given thread and user input.
	Run(ctx context.Context, threadID, input string) (Stream, error)
	// Resume continues a run from a serialized checkpoint with a decision
	// applied to the invocation that caused the pause.
	Resume(ctx context.Context, threadID string, state json.RawMessage, decision ApprovalDecision) (Stream, error)
}
