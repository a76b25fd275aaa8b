package threadstore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
)

const defaultCacheSize = 256

// CachedStore wraps a Store with an LRU read cache for GetThread. Writes to a
// thread invalidate its cached entry, so readers behind the cache observe
// their own writes; cross-process invalidation is out of scope (the cache is
// for single-node deployments).
type CachedStore struct {
	inner Store
	cache *lru.Cache[string, *thread.Thread]
}

// NewCachedStore wraps inner with a cache of the given size (<=0 uses the default).
func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, *thread.Thread](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func (s *CachedStore) CreateThread(ctx context.Context, th *thread.Thread) error {
	if err := s.inner.CreateThread(ctx, th); err != nil {
		return err
	}
	s.cache.Remove(th.ID)
	return nil
}

func (s *CachedStore) GetThread(ctx context.Context, threadID string) (*thread.Thread, error) {
	if th, ok := s.cache.Get(threadID); ok {
		return th, nil
	}
	th, err := s.inner.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(threadID, th)
	return th, nil
}

func (s *CachedStore) SaveThread(ctx context.Context, th *thread.Thread) error {
	if err := s.inner.SaveThread(ctx, th); err != nil {
		return err
	}
	s.cache.Remove(th.ID)
	return nil
}

func (s *CachedStore) ListThreads(ctx context.Context, limit, offset int) ([]*thread.Thread, error) {
	return s.inner.ListThreads(ctx, limit, offset)
}

func (s *CachedStore) SaveItem(ctx context.Context, threadID string, item *thread.Item) error {
	if err := s.inner.SaveItem(ctx, threadID, item); err != nil {
		return err
	}
	s.cache.Remove(threadID)
	return nil
}

func (s *CachedStore) AddItem(ctx context.Context, threadID string, item *thread.Item) error {
	if err := s.inner.AddItem(ctx, threadID, item); err != nil {
		return err
	}
	s.cache.Remove(threadID)
	return nil
}

func (s *CachedStore) ListItems(ctx context.Context, threadID string, limit int, after string) ([]*thread.Item, bool, error) {
	return s.inner.ListItems(ctx, threadID, limit, after)
}
