package thread

import (
	"time"

	id "github.com/Timestep-AI/timestep-ai-sub004/internal/utils/id"
)

// Item id namespaces, one per kind.
const (
	itemKindUserMessage      = "umsg"
	itemKindAssistantMessage = "msg"
	itemKindToolCall         = "tc"
	itemKindToolCallOutput   = "to"
	itemKindHandoffCall      = "hc"
	itemKindHandoffOutput    = "ho"
	itemKindWidget           = "wgt"
)

// NewWidgetItemID reserves an id in the widget namespace before the widget
// payload referencing it is built.
func NewWidgetItemID() string {
	return id.NewItemID(itemKindWidget)
}

// NewUserMessage builds a user message item.
func NewUserMessage(threadID, text string) *Item {
	return &Item{
		ID:        id.NewItemID(itemKindUserMessage),
		ThreadID:  threadID,
		Type:      ItemTypeUserMessage,
		CreatedAt: time.Now().UTC(),
		Content:   []ContentPart{{Type: "input_text", Text: text}},
	}
}

// NewAssistantMessage builds an assistant message item carrying the given
// text. An empty text yields an item with an empty content part, so consumers
// always see a content array.
func NewAssistantMessage(threadID, text string) *Item {
	return &Item{
		ID:        id.NewItemID(itemKindAssistantMessage),
		ThreadID:  threadID,
		Type:      ItemTypeAssistantMessage,
		CreatedAt: time.Now().UTC(),
		Content:   []ContentPart{{Type: "output_text", Text: text}},
	}
}

// AssistantMessageAt mirrors NewAssistantMessage for callers that assigned the
// item id and creation time when streaming began.
func AssistantMessageAt(itemID, threadID, text string, createdAt time.Time) *Item {
	return &Item{
		ID:        itemID,
		ThreadID:  threadID,
		Type:      ItemTypeAssistantMessage,
		CreatedAt: createdAt,
		Content:   []ContentPart{{Type: "output_text", Text: text}},
	}
}

// NewAssistantMessageID reserves an id in the assistant-message namespace.
func NewAssistantMessageID() string {
	return id.NewItemID(itemKindAssistantMessage)
}

// NewToolCall builds a tool-call record.
func NewToolCall(threadID, toolName, callID, arguments string) *Item {
	return &Item{
		ID:        id.NewItemID(itemKindToolCall),
		ThreadID:  threadID,
		Type:      ItemTypeToolCall,
		CreatedAt: time.Now().UTC(),
		ToolName:  toolName,
		CallID:    callID,
		Arguments: arguments,
	}
}

// NewToolCallOutput builds a tool-output record.
func NewToolCallOutput(threadID, toolName, callID, output string) *Item {
	return &Item{
		ID:        id.NewItemID(itemKindToolCallOutput),
		ThreadID:  threadID,
		Type:      ItemTypeToolCallOutput,
		CreatedAt: time.Now().UTC(),
		ToolName:  toolName,
		CallID:    callID,
		Output:    output,
	}
}

// NewHandoffCall builds a handoff-call record.
func NewHandoffCall(threadID, handoffName string) *Item {
	return &Item{
		ID:          id.NewItemID(itemKindHandoffCall),
		ThreadID:    threadID,
		Type:        ItemTypeHandoffCall,
		CreatedAt:   time.Now().UTC(),
		HandoffName: handoffName,
	}
}

// NewHandoffOutput builds a handoff-output record.
func NewHandoffOutput(threadID, handoffName, output string) *Item {
	return &Item{
		ID:          id.NewItemID(itemKindHandoffOutput),
		ThreadID:    threadID,
		Type:        ItemTypeHandoffOutput,
		CreatedAt:   time.Now().UTC(),
		HandoffName: handoffName,
		Output:      output,
	}
}

// NewWidgetItem wraps a widget payload in an item under a pre-assigned id.
func NewWidgetItem(itemID, threadID string, widget *Widget) *Item {
	return &Item{
		ID:        itemID,
		ThreadID:  threadID,
		Type:      ItemTypeWidget,
		CreatedAt: time.Now().UTC(),
		Widget:    widget,
	}
}
