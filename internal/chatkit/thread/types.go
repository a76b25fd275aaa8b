package thread

import "time"

// StatusType enumerates thread lifecycle states.
type StatusType string

const (
	StatusActive StatusType = "active"
	// StatusLocked marks a thread paused on a pending tool approval; no new
	// user turns are accepted until the decision is submitted.
	StatusLocked StatusType = "locked"
)

// Status is the status object carried on thread events. Type is mandatory on
// the wire; the encoder rejects thread events without it.
type Status struct {
	Type   StatusType `json:"type"`
	Reason string     `json:"reason,omitempty"`
}

// Thread is a persisted conversation context. Threads are created on first
// message and mutated by item additions; this subsystem never deletes them.
type Thread struct {
	ID        string         `json:"id"`
	Title     string         `json:"title,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Status    Status         `json:"status"`
	Items     ItemPage       `json:"items"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ItemPage is the items container embedded in thread payloads. Data must be a
// non-nil array on the wire even when empty.
type ItemPage struct {
	Data    []*Item `json:"data"`
	HasMore bool    `json:"has_more"`
	After   string  `json:"after,omitempty"`
}

// ItemType enumerates the kinds of thread items.
type ItemType string

const (
	ItemTypeUserMessage      ItemType = "user_message"
	ItemTypeAssistantMessage ItemType = "assistant_message"
	ItemTypeToolCall         ItemType = "tool_call"
	ItemTypeToolCallOutput   ItemType = "tool_call_output"
	ItemTypeHandoffCall      ItemType = "handoff_call"
	ItemTypeHandoffOutput    ItemType = "handoff_output"
	ItemTypeWidget           ItemType = "widget"
)

// Item is one discrete unit of conversation history. Exactly the fields for
// its type are populated; the rest stay zero and are omitted on the wire.
type Item struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Type      ItemType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`

	// user_message / assistant_message
	Content []ContentPart `json:"content,omitempty"`

	// tool_call / tool_call_output
	ToolName  string `json:"tool_name,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`

	// handoff_call / handoff_output
	HandoffName string `json:"handoff_name,omitempty"`

	// widget
	Widget *Widget `json:"widget,omitempty"`
}

// Text returns the concatenated text content of a message item.
func (it *Item) Text() string {
	if it == nil {
		return ""
	}
	var out string
	for _, part := range it.Content {
		out += part.Text
	}
	return out
}

// ContentPart is a fragment of message content.
type ContentPart struct {
	Type string `json:"type"` // "output_text" | "input_text"
	Text string `json:"text"`
}

// WidgetType enumerates the ephemeral widget payloads rendered inline in the
// protocol stream. Widgets are display-only and are never persisted as
// conversation history.
type WidgetType string

const (
	WidgetTypeApproval WidgetType = "approval_request"
	WidgetTypeHandoff  WidgetType = "handoff_indicator"
)

// Widget is a structured UI payload.
type Widget struct {
	Type WidgetType `json:"type"`

	// approval_request
	ToolName  string         `json:"tool_name,omitempty"`
	CallID    string         `json:"call_id,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// RawArguments preserves the original arguments text when it could not be
	// parsed as JSON even after repair.
	RawArguments string         `json:"raw_arguments,omitempty"`
	ItemID       string         `json:"item_id,omitempty"`
	Actions      []WidgetAction `json:"actions,omitempty"`

	// handoff_indicator
	HandoffName string `json:"handoff_name,omitempty"`
	Label       string `json:"label,omitempty"`
}

// WidgetAction is one actionable option rendered on a widget.
type WidgetAction struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
