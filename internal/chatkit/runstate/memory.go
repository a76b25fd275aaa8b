package runstate

import (
	"context"
	"encoding/json"
	"sync"

	id "github.com/Timestep-AI/timestep-ai-sub004/internal/utils/id"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]json.RawMessage
}

// NewMemoryStore constructs an empty in-memory run-state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Save(ctx context.Context, threadID string, state json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(ctx, threadID)] = append(json.RawMessage{}, state...)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, threadID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(ctx, threadID)]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage{}, state...), nil
}

func (s *MemoryStore) Clear(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(ctx, threadID))
	return nil
}

// stateKey scopes run states by (user, thread). Unauthenticated deployments
// collapse to a per-thread key.
func stateKey(ctx context.Context, threadID string) string {
	user := id.UserIDFromContext(ctx)
	if user == "" {
		user = "local"
	}
	return user + "/" + threadID
}
