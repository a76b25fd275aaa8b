package runstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	id "github.com/Timestep-AI/timestep-ai-sub004/internal/utils/id"
)

// FileStore keeps one JSON file per (user, thread) under baseDir. The file is
// replaced wholesale on save, giving last-write-wins upserts.
type FileStore struct {
	baseDir string
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
		return nil, fmt.Errorf("create run state dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(ctx context.Context, threadID string) string {
	user := id.UserIDFromContext(ctx)
	if user == "" {
		user = "local"
	}
	return filepath.Join(s.baseDir, user, threadID+".json")
}

func (s *FileStore) Save(ctx context.Context, threadID string, state json.RawMessage) error {
	path := s.path(ctx, threadID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create run state user dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, state, 0o644); err != nil {
		return fmt.Errorf("write run state for %s: %w", threadID, err)
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) Load(ctx context.Context, threadID string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.path(ctx, threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read run state for %s: %w", threadID, err)
	}
	return data, nil
}

func (s *FileStore) Clear(ctx context.Context, threadID string) error {
	err := os.Remove(s.path(ctx, threadID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear run state for %s: %w", threadID, err)
	}
	return nil
}
