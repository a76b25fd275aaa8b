package runtime

import "encoding/json"

// Wire-level tags of the raw event stream produced by the agent runtime.
const (
	RawTypeRunItem  = "run_item_stream_event"
	RawTypeModel    = "raw_model_stream_event"
	RawTypeDelta    = "output_text_delta"
	RawTypeContent  = "content.delta"
	RawNameToolCall = "tool_called"
	RawNameApproval = "tool_approval_requested"

	RawItemToolCallOutput = "tool_call_output_item"
	RawItemHandoffCall    = "handoff_call_item"
	RawItemHandoffOutput  = "handoff_output_item"
)

// Event is a classified runtime event. The set of implementations is closed:
// every recognized raw event maps to exactly one of the variants below, and
// everything else is dropped by Classify.
type Event interface {
	EventType() string
}

// ToolCalled - the model requested a tool invocation.
type ToolCalled struct {
	ToolName  string
	CallID    string
	Arguments string
}

func (*ToolCalled) EventType() string { return "tool_called" }

// ToolCallOutput - a tool invocation produced its result.
type ToolCallOutput struct {
	ToolName string
	CallID   string
	Output   string
}

func (*ToolCallOutput) EventType() string { return "tool_call_output" }

// HandoffCall - the running agent requested a transfer of control.
type HandoffCall struct {
	HandoffName string
}

func (*HandoffCall) EventType() string { return "handoff_call" }

// HandoffOutput - a handoff target acknowledged the transfer.
type HandoffOutput struct {
	HandoffName string
	Output      string
}

func (*HandoffOutput) EventType() string { return "handoff_output" }

// ToolApprovalRequested - a guarded tool needs a human decision before it may
// run. Receiving this event pauses the stream.
type ToolApprovalRequested struct {
	ToolName  string
	CallID    string
	Arguments string
}

func (*ToolApprovalRequested) EventType() string { return "tool_approval_requested" }

// TextDelta - a fragment of assistant output text.
type TextDelta struct {
	Delta string
}

func (*TextDelta) EventType() string { return "output_text_delta" }

// RawEvent is the loose union shape events arrive in from the runtime. Fields
// overlap across event categories; Classify is the single place that decides
// which variant a raw event is.
type RawEvent struct {
	Type  string      `json:"type"`
	Name  string      `json:"name,omitempty"`
	Item  *RawItem    `json:"item,omitempty"`
	Data  *RawPayload `json:"data,omitempty"`
	Delta string      `json:"delta,omitempty"`
}

// RawItem is the nested item carried by run_item_stream_event.
type RawItem struct {
	Type        string          `json:"type"`
	ToolName    string          `json:"tool_name,omitempty"`
	CallID      string          `json:"call_id,omitempty"`
	Arguments   string          `json:"arguments,omitempty"`
	Output      string          `json:"output,omitempty"`
	HandoffName string          `json:"handoff_name,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// RawPayload is the nested payload of raw_model_stream_event.
type RawPayload struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
}

// Classify maps a raw event to exactly one variant. The second return is
// false for event shapes this subsystem does not consume; callers skip those.
func Classify(raw RawEvent) (Event, bool) {
	switch raw.Type {
	case RawTypeRunItem:
		return classifyRunItem(raw)
	case RawTypeModel:
		if raw.Data == nil {
			return nil, false
		}
		switch raw.Data.Type {
		case RawTypeDelta, RawTypeContent:
			return &TextDelta{Delta: raw.Data.Delta}, true
		}
		return nil, false
	case RawTypeDelta, RawTypeContent:
		// Direct delta shape, without the model-event envelope.
		return &TextDelta{Delta: raw.Delta}, true
	}
	return nil, false
}

func classifyRunItem(raw RawEvent) (Event, bool) {
	switch raw.Name {
	case RawNameToolCall:
		if raw.Item == nil {
			return nil, false
		}
		return &ToolCalled{
			ToolName:  raw.Item.ToolName,
			CallID:    raw.Item.CallID,
			Arguments: raw.Item.Arguments,
		}, true
	case RawNameApproval:
		if raw.Item == nil {
			return nil, false
		}
		return &ToolApprovalRequested{
			ToolName:  raw.Item.ToolName,
			CallID:    raw.Item.CallID,
			Arguments: raw.Item.Arguments,
		}, true
	}

	if raw.Item == nil {
		return nil, false
	}
	switch raw.Item.Type {
	case RawItemToolCallOutput:
		return &ToolCallOutput{
			ToolName: raw.Item.ToolName,
			CallID:   raw.Item.CallID,
			Output:   raw.Item.Output,
		}, true
	case RawItemHandoffCall:
		return &HandoffCall{HandoffName: raw.Item.HandoffName}, true
	case RawItemHandoffOutput:
		return &HandoffOutput{
			HandoffName: raw.Item.HandoffName,
			Output:      raw.Item.Output,
		}, true
	}
	return nil, false
}
