package thread

// Wire-level protocol event types.
const (
	EventTypeThreadCreated = "thread.created"
	EventTypeThreadUpdated = "thread.updated"
	EventTypeItemAdded     = "thread.item.added"
	EventTypeItemUpdated   = "thread.item.updated"
	EventTypeItemDone      = "thread.item.done"
	EventTypeError         = "error"
)

// Event is a normalized protocol event emitted to the transport layer.
type Event interface {
	EventType() string
}

// ThreadCreated announces a freshly created thread.
type ThreadCreated struct {
	Thread *Thread
}

func (*ThreadCreated) EventType() string { return EventTypeThreadCreated }

// ThreadUpdated announces a thread mutation (title, status, metadata).
type ThreadUpdated struct {
	Thread *Thread
}

func (*ThreadUpdated) EventType() string { return EventTypeThreadUpdated }

// ItemAdded announces a new in-progress or complete item.
type ItemAdded struct {
	Item *Item
}

func (*ItemAdded) EventType() string { return EventTypeItemAdded }

// ItemUpdated carries an incremental update for an item announced earlier.
type ItemUpdated struct {
	ItemID string
	Update any
}

func (*ItemUpdated) EventType() string { return EventTypeItemUpdated }

// ItemDone announces an item's final state.
type ItemDone struct {
	Item *Item
}

func (*ItemDone) EventType() string { return EventTypeItemDone }

// StreamError is the terminal event a failed stream resolves to. It is always
// the last frame on the connection.
type StreamError struct {
	Code       string
	Message    string
	AllowRetry bool
}

func (*StreamError) EventType() string { return EventTypeError }

// ErrCodeStreamError is the catch-all code for failures surfaced mid-stream.
const ErrCodeStreamError = "STREAM_ERROR"

// ContentPartDone is the update payload flushed when an assistant message's
// content part closes, carrying the fully accumulated text.
type ContentPartDone struct {
	Type         string      `json:"type"`
	ContentIndex int         `json:"content_index"`
	Content      ContentPart `json:"content"`
}

// NewContentPartDone builds the terminal content-part update for a message.
func NewContentPartDone(text string) ContentPartDone {
	return ContentPartDone{
		Type:         "assistant_message.content_part.done",
		ContentIndex: 0,
		Content:      ContentPart{Type: "output_text", Text: text},
	}
}
