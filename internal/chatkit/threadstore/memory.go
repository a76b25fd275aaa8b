package threadstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*thread.Thread
	items   map[string][]*thread.Item // threadID -> items in insertion order
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*thread.Thread),
		items:   make(map[string][]*thread.Item),
	}
}

func (s *MemoryStore) CreateThread(_ context.Context, th *thread.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.threads[th.ID]; exists {
		return fmt.Errorf("thread %s already exists", th.ID)
	}
	s.threads[th.ID] = cloneThread(th)
	return nil
}

func (s *MemoryStore) GetThread(_ context.Context, threadID string) (*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	out := cloneThread(th)
	out.Items = thread.ItemPage{Data: append([]*thread.Item{}, s.items[threadID]...)}
	return out, nil
}

func (s *MemoryStore) SaveThread(_ context.Context, th *thread.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[th.ID] = cloneThread(th)
	return nil
}

func (s *MemoryStore) ListThreads(_ context.Context, limit, offset int) ([]*thread.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*thread.Thread, 0, len(s.threads))
	for _, th := range s.threads {
		all = append(all, cloneThread(th))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*thread.Thread{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) SaveItem(_ context.Context, threadID string, item *thread.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertItemLocked(threadID, item, true)
}

func (s *MemoryStore) AddItem(_ context.Context, threadID string, item *thread.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertItemLocked(threadID, item, false)
}

// upsertItemLocked stores item under its id. When overwrite is false an
// existing record wins (append-if-absent); either way one row remains per id.
func (s *MemoryStore) upsertItemLocked(threadID string, item *thread.Item, overwrite bool) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("item id is required")
	}
	items := s.items[threadID]
	for i, existing := range items {
		if existing.ID == item.ID {
			if overwrite {
				items[i] = item
			}
			return nil
		}
	}
	s.items[threadID] = append(items, item)
	return nil
}

func (s *MemoryStore) ListItems(_ context.Context, threadID string, limit int, after string) ([]*thread.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.items[threadID]
	start := 0
	if after != "" {
		for i, it := range items {
			if it.ID == after {
				start = i + 1
				break
			}
		}
	}
	items = items[start:]

	hasMore := false
	if limit > 0 && limit < len(items) {
		items = items[:limit]
		hasMore = true
	}
	return append([]*thread.Item{}, items...), hasMore, nil
}

func cloneThread(th *thread.Thread) *thread.Thread {
	out := *th
	if th.Metadata != nil {
		out.Metadata = make(map[string]any, len(th.Metadata))
		for k, v := range th.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
