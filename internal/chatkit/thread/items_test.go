package thread

import (
	"strings"
	"testing"
	"time"
)

func TestItemFactoriesPopulateKindFields(t *testing.T) {
	const threadID = "thread-1"

	tests := []struct {
		name       string
		item       *Item
		wantType   ItemType
		wantPrefix string
		check      func(t *testing.T, it *Item)
	}{
		{
			name:       "assistant message",
			item:       NewAssistantMessage(threadID, "Hello!"),
			wantType:   ItemTypeAssistantMessage,
			wantPrefix: "msg-",
			check: func(t *testing.T, it *Item) {
				if it.Text() != "Hello!" {
					t.Errorf("Text() = %q", it.Text())
				}
			},
		},
		{
			name:       "user message",
			item:       NewUserMessage(threadID, "hi"),
			wantType:   ItemTypeUserMessage,
			wantPrefix: "umsg-",
			check: func(t *testing.T, it *Item) {
				if len(it.Content) != 1 || it.Content[0].Type != "input_text" {
					t.Errorf("unexpected content %+v", it.Content)
				}
			},
		},
		{
			name:       "tool call",
			item:       NewToolCall(threadID, "get_weather", "call-1", `{"city":"SF"}`),
			wantType:   ItemTypeToolCall,
			wantPrefix: "tc-",
			check: func(t *testing.T, it *Item) {
				if it.ToolName != "get_weather" || it.CallID != "call-1" || it.Arguments == "" {
					t.Errorf("unexpected tool call %+v", it)
				}
			},
		},
		{
			name:       "tool output",
			item:       NewToolCallOutput(threadID, "get_weather", "call-1", "72F"),
			wantType:   ItemTypeToolCallOutput,
			wantPrefix: "to-",
			check: func(t *testing.T, it *Item) {
				if it.Output != "72F" {
					t.Errorf("Output = %q", it.Output)
				}
			},
		},
		{
			name:       "handoff call",
			item:       NewHandoffCall(threadID, "billing"),
			wantType:   ItemTypeHandoffCall,
			wantPrefix: "hc-",
			check: func(t *testing.T, it *Item) {
				if it.HandoffName != "billing" {
					t.Errorf("HandoffName = %q", it.HandoffName)
				}
			},
		},
		{
			name:       "handoff output",
			item:       NewHandoffOutput(threadID, "billing", "ok"),
			wantType:   ItemTypeHandoffOutput,
			wantPrefix: "ho-",
			check:      func(t *testing.T, it *Item) {},
		},
		{
			name:       "widget",
			item:       NewWidgetItem(NewWidgetItemID(), threadID, NewHandoffWidget("billing")),
			wantType:   ItemTypeWidget,
			wantPrefix: "wgt-",
			check: func(t *testing.T, it *Item) {
				if it.Widget == nil || it.Widget.Type != WidgetTypeHandoff {
					t.Errorf("unexpected widget %+v", it.Widget)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := tt.item
			if it.ThreadID != threadID {
				t.Errorf("ThreadID = %q", it.ThreadID)
			}
			if it.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", it.Type, tt.wantType)
			}
			if !strings.HasPrefix(it.ID, tt.wantPrefix) {
				t.Errorf("ID = %q, want prefix %q", it.ID, tt.wantPrefix)
			}
			if it.CreatedAt.IsZero() {
				t.Error("CreatedAt not set")
			}
			tt.check(t, it)
		})
	}
}

func TestAssistantMessageAtKeepsIdentity(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	it := AssistantMessageAt("msg-fixed", "thread-1", "done", created)
	if it.ID != "msg-fixed" {
		t.Errorf("ID = %q", it.ID)
	}
	if !it.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", it.CreatedAt)
	}
	if it.Text() != "done" {
		t.Errorf("Text() = %q", it.Text())
	}
}
