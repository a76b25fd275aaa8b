package runtime

import "testing"

func TestClassifyRunItemEvents(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawEvent
		wantType string
	}{
		{
			name: "tool called by event name",
			raw: RawEvent{
				Type: RawTypeRunItem,
				Name: RawNameToolCall,
				Item: &RawItem{ToolName: "get_weather", CallID: "call-1", Arguments: `{"city":"SF"}`},
			},
			wantType: "tool_called",
		},
		{
			name: "approval requested by event name",
			raw: RawEvent{
				Type: RawTypeRunItem,
				Name: RawNameApproval,
				Item: &RawItem{ToolName: "send_email", CallID: "abc"},
			},
			wantType: "tool_approval_requested",
		},
		{
			name: "tool output by item subtype",
			raw: RawEvent{
				Type: RawTypeRunItem,
				Item: &RawItem{Type: RawItemToolCallOutput, ToolName: "get_weather", Output: "72F"},
			},
			wantType: "tool_call_output",
		},
		{
			name: "handoff call by item subtype",
			raw: RawEvent{
				Type: RawTypeRunItem,
				Item: &RawItem{Type: RawItemHandoffCall, HandoffName: "billing"},
			},
			wantType: "handoff_call",
		},
		{
			name: "handoff output by item subtype",
			raw: RawEvent{
				Type: RawTypeRunItem,
				Item: &RawItem{Type: RawItemHandoffOutput, HandoffName: "billing", Output: "ok"},
			},
			wantType: "handoff_output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Classify(tt.raw)
			if !ok {
				t.Fatalf("Classify() dropped event, want %s", tt.wantType)
			}
			if got := ev.EventType(); got != tt.wantType {
				t.Errorf("EventType() = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestClassifyDeltaShapes(t *testing.T) {
	wrapped := RawEvent{Type: RawTypeModel, Data: &RawPayload{Type: RawTypeDelta, Delta: "Hel"}}
	direct := RawEvent{Type: RawTypeDelta, Delta: "lo!"}
	content := RawEvent{Type: RawTypeContent, Delta: "!"}

	for i, raw := range []RawEvent{wrapped, direct, content} {
		ev, ok := Classify(raw)
		if !ok {
			t.Fatalf("case %d: delta event dropped", i)
		}
		delta, isDelta := ev.(*TextDelta)
		if !isDelta {
			t.Fatalf("case %d: expected *TextDelta, got %T", i, ev)
		}
		if delta.Delta == "" {
			t.Errorf("case %d: empty delta text", i)
		}
	}
}

func TestClassifyDropsUnknownEvents(t *testing.T) {
	tests := []RawEvent{
		{Type: "agent_updated_stream_event"},
		{Type: RawTypeRunItem, Name: "reasoning_item_created"},
		{Type: RawTypeRunItem}, // no name, no item
		{Type: RawTypeRunItem, Item: &RawItem{Type: "message_output_item"}},
		{Type: RawTypeModel}, // no payload
		{Type: RawTypeModel, Data: &RawPayload{Type: "response.completed"}},
		{},
	}
	for i, raw := range tests {
		if ev, ok := Classify(raw); ok {
			t.Errorf("case %d: expected drop, got %T", i, ev)
		}
	}
}
