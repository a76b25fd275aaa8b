package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
)

const defaultItemPageSize = 50

// ThreadService is the read side the dashboard list and detail views consume.
type ThreadService struct {
	threads threadstore.Store
	logger  logging.Logger
}

// NewThreadService creates a ThreadService over the thread store.
func NewThreadService(threads threadstore.Store) *ThreadService {
	return &ThreadService{
		threads: threads,
		logger:  logging.NewComponentLogger("ThreadService"),
	}
}

// ListThreads returns threads newest first. limit <= 0 selects the store
// default page size.
func (s *ThreadService) ListThreads(ctx context.Context, limit, offset int) ([]*thread.Thread, error) {
	threads, err := s.threads.ListThreads(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

// GetThread returns one thread with its first item page populated.
func (s *ThreadService) GetThread(ctx context.Context, threadID string) (*thread.Thread, error) {
	if threadID == "" {
		return nil, ValidationError("thread id is required")
	}
	th, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, threadstore.ErrThreadNotFound) {
			return nil, NotFoundError(fmt.Sprintf("thread %s", threadID))
		}
		return nil, err
	}

	items, hasMore, err := s.threads.ListItems(ctx, threadID, defaultItemPageSize, "")
	if err != nil {
		return nil, fmt.Errorf("list items for thread %s: %w", threadID, err)
	}
	th.Items = thread.ItemPage{Data: items, HasMore: hasMore}
	if hasMore && len(items) > 0 {
		th.Items.After = items[len(items)-1].ID
	}
	if th.Items.Data == nil {
		th.Items.Data = []*thread.Item{}
	}
	return th, nil
}

// ListItems returns one page of a thread's items starting after the given
// cursor.
func (s *ThreadService) ListItems(ctx context.Context, threadID string, limit int, after string) (thread.ItemPage, error) {
	if threadID == "" {
		return thread.ItemPage{}, ValidationError("thread id is required")
	}
	if limit <= 0 {
		limit = defaultItemPageSize
	}
	items, hasMore, err := s.threads.ListItems(ctx, threadID, limit, after)
	if err != nil {
		if errors.Is(err, threadstore.ErrThreadNotFound) {
			return thread.ItemPage{}, NotFoundError(fmt.Sprintf("thread %s", threadID))
		}
		return thread.ItemPage{}, err
	}
	page := thread.ItemPage{Data: items, HasMore: hasMore}
	if page.Data == nil {
		page.Data = []*thread.Item{}
	}
	if hasMore && len(items) > 0 {
		page.After = items[len(items)-1].ID
	}
	return page, nil
}
