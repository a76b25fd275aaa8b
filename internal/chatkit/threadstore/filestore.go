package threadstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
)

// FileStore persists each thread as one JSON document under baseDir. It is a
// single-node backend; per-thread writes are serialized by an in-process lock.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
	logger  logging.Logger
}

type threadDocument struct {
	Thread *thread.Thread `json:"thread"`
	Items  []*thread.Item `json:"items"`
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thread store dir: %w", err)
	}
	return &FileStore{
		baseDir: baseDir,
		logger:  logging.NewComponentLogger("ThreadFileStore"),
	}, nil
}

func (s *FileStore) path(threadID string) string {
	return filepath.Join(s.baseDir, threadID+".json")
}

func (s *FileStore) CreateThread(_ context.Context, th *thread.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := threadDocument{Thread: th, Items: []*thread.Item{}}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	// Exclusive create so concurrent first-message races surface as errors
	// rather than silently overwriting history.
	f, err := os.OpenFile(s.path(th.ID), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create thread file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write thread file: %w", err)
	}
	return nil
}

func (s *FileStore) GetThread(_ context.Context, threadID string) (*thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(threadID)
	if err != nil {
		return nil, err
	}
	th := doc.Thread
	th.Items = thread.ItemPage{Data: doc.Items}
	return th, nil
}

func (s *FileStore) SaveThread(_ context.Context, th *thread.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(th.ID)
	if err != nil && err != ErrThreadNotFound {
		return err
	}
	items := []*thread.Item{}
	if doc != nil {
		items = doc.Items
	}
	return s.writeDocument(th.ID, threadDocument{Thread: th, Items: items})
}

func (s *FileStore) ListThreads(_ context.Context, limit, offset int) ([]*thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read thread store dir: %w", err)
	}

	threads := make([]*thread.Thread, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		doc, err := s.readDocument(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("Skipping unreadable thread file %s: %v", name, err)
			continue
		}
		threads = append(threads, doc.Thread)
	}

	sort.Slice(threads, func(i, j int) bool {
		if threads[i].CreatedAt.Equal(threads[j].CreatedAt) {
			return threads[i].ID < threads[j].ID
		}
		return threads[i].CreatedAt.After(threads[j].CreatedAt)
	})

	if offset >= len(threads) {
		return []*thread.Thread{}, nil
	}
	threads = threads[offset:]
	if limit > 0 && limit < len(threads) {
		threads = threads[:limit]
	}
	return threads, nil
}

func (s *FileStore) SaveItem(_ context.Context, threadID string, item *thread.Item) error {
	return s.upsertItem(threadID, item, true)
}

func (s *FileStore) AddItem(_ context.Context, threadID string, item *thread.Item) error {
	return s.upsertItem(threadID, item, false)
}

func (s *FileStore) upsertItem(threadID string, item *thread.Item, overwrite bool) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("item id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(threadID)
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range doc.Items {
		if existing.ID == item.ID {
			if overwrite {
				doc.Items[i] = item
			}
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Items = append(doc.Items, item)
	}
	return s.writeDocument(threadID, *doc)
}

func (s *FileStore) ListItems(_ context.Context, threadID string, limit int, after string) ([]*thread.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readDocument(threadID)
	if err != nil {
		return nil, false, err
	}

	items := doc.Items
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
	return items, hasMore, nil
}

func (s *FileStore) readDocument(threadID string) (*threadDocument, error) {
	data, err := os.ReadFile(s.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("read thread %s: %w", threadID, err)
	}
	var doc threadDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode thread %s: %w", threadID, err)
	}
	if doc.Items == nil {
		doc.Items = []*thread.Item{}
	}
	return &doc, nil
}

func (s *FileStore) writeDocument(threadID string, doc threadDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(threadID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write thread %s: %w", threadID, err)
	}
	return os.Rename(tmp, s.path(threadID))
}
