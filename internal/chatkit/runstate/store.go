package runstate

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound signals that a thread has no saved run state. Absence is an
// expected condition, not a failure; callers test with errors.Is.
var ErrNotFound = errors.New("run state not found")

// Store persists opaque serialized execution state per thread, bridging the
// tool-approval pause/resume boundary.
//
// Save upserts keyed by (thread id, user) with last-write-wins semantics:
// exactly one logical run state exists per thread at a time. Load returns
// ErrNotFound on absence. Clear deletes if present and is idempotent.
type Store interface {
	Save(ctx context.Context, threadID string, state json.RawMessage) error
	Load(ctx context.Context, threadID string) (json.RawMessage, error)
	Clear(ctx context.Context, threadID string) error
}
