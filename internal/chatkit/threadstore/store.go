package threadstore

import (
	"context"
	"errors"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
)

// ErrThreadNotFound is returned when a thread id has no stored record.
var ErrThreadNotFound = errors.New("thread not found")

// Store persists threads and their items.
//
// SaveItem and AddItem are both keyed by item id and are idempotent: storing
// the same id twice leaves one record reflecting the last write. SaveItem is
// the handlers' explicit persistence path; AddItem is the generic done-item
// path and appends only when the id is not already present.
type Store interface {
	CreateThread(ctx context.Context, th *thread.Thread) error
	GetThread(ctx context.Context, threadID string) (*thread.Thread, error)
	SaveThread(ctx context.Context, th *thread.Thread) error
	ListThreads(ctx context.Context, limit, offset int) ([]*thread.Thread, error)

	SaveItem(ctx context.Context, threadID string, item *thread.Item) error
	AddItem(ctx context.Context, threadID string, item *thread.Item) error
	ListItems(ctx context.Context, threadID string, limit int, after string) ([]*thread.Item, bool, error)
}
