package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	id "github.com/Timestep-AI/timestep-ai-sub004/internal/utils/id"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestRunStateLifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := store.Load(ctx, "thread-1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load before save err = %v, want ErrNotFound", err)
			}

			first := json.RawMessage(`{"turn":1}`)
			if err := store.Save(ctx, "thread-1", first); err != nil {
				t.Fatalf("Save: %v", err)
			}

			// Upsert: the second save replaces the first.
			second := json.RawMessage(`{"turn":2}`)
			if err := store.Save(ctx, "thread-1", second); err != nil {
				t.Fatalf("Save (upsert): %v", err)
			}

			got, err := store.Load(ctx, "thread-1")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(got) != `{"turn":2}` {
				t.Fatalf("Load = %s, want last write", got)
			}

			if err := store.Clear(ctx, "thread-1"); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if _, err := store.Load(ctx, "thread-1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load after clear err = %v, want ErrNotFound", err)
			}
			// Clearing again is a no-op.
			if err := store.Clear(ctx, "thread-1"); err != nil {
				t.Fatalf("Clear (idempotent): %v", err)
			}
		})
	}
}

func TestRunStateScopedByUser(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			alice := id.WithUserID(context.Background(), "alice")
			bob := id.WithUserID(context.Background(), "bob")

			if err := store.Save(alice, "thread-1", json.RawMessage(`{"who":"alice"}`)); err != nil {
				t.Fatalf("Save alice: %v", err)
			}

			if _, err := store.Load(bob, "thread-1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("bob should not see alice's state, err = %v", err)
			}

			got, err := store.Load(alice, "thread-1")
			if err != nil {
				t.Fatalf("Load alice: %v", err)
			}
			if string(got) != `{"who":"alice"}` {
				t.Fatalf("Load = %s", got)
			}
		})
	}
}
