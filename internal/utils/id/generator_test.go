package id

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestNewItemIDUsesKindPrefix(t *testing.T) {
	cases := []struct {
		kind   string
		prefix string
	}{
		{"msg", "msg-"},
		{"tool", "tool-"},
		{"widget", "widget-"},
		{"", "item-"},
	}
	for _, tc := range cases {
		got := NewItemID(tc.kind)
		if !strings.HasPrefix(got, tc.prefix) {
			t.Errorf("NewItemID(%q) = %q, want prefix %q", tc.kind, got, tc.prefix)
		}
		if len(got) <= len(tc.prefix) {
			t.Errorf("NewItemID(%q) = %q, missing body", tc.kind, got)
		}
	}
}

func TestItemIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewItemID("msg")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestKSUIDIdsSortByCreationOrder(t *testing.T) {
	first := NewThreadID()
	time.Sleep(1100 * time.Millisecond) // KSUID has second resolution
	second := NewThreadID()

	ids := []string{second, first}
	sort.Strings(ids)
	if ids[0] != first {
		t.Errorf("expected %q to sort before %q", first, second)
	}
}

func TestUUIDv7Strategy(t *testing.T) {
	SetStrategy(StrategyUUIDv7)
	defer SetStrategy(StrategyKSUID)

	id := NewItemID("msg")
	if !strings.HasPrefix(id, "msg-") {
		t.Fatalf("unexpected id %q", id)
	}
	// UUIDs are 36 chars.
	if len(id) != len("msg-")+36 {
		t.Errorf("unexpected uuid id length: %q", id)
	}
}

func TestUserIDContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := UserIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty user id, got %q", got)
	}
	ctx = WithUserID(ctx, "user-1")
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Fatalf("expected user-1, got %q", got)
	}
	// Empty values do not overwrite.
	ctx = WithUserID(ctx, "")
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Fatalf("expected user-1 after empty set, got %q", got)
	}
}
