package thread

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// NewApprovalWidget builds the approval-prompt payload for a guarded tool
// invocation. The arguments text is parsed for display; model output is often
// truncated or mildly malformed JSON, so a repair pass runs before parsing
// and the raw text is preserved when even that fails.
func NewApprovalWidget(toolName, argumentsText, callID, itemID string) *Widget {
	w := &Widget{
		Type:     WidgetTypeApproval,
		ToolName: toolName,
		CallID:   callID,
		ItemID:   itemID,
		Actions: []WidgetAction{
			{Label: "Approve", Value: "approve"},
			{Label: "Reject", Value: "reject"},
		},
	}

	args, ok := parseArguments(argumentsText)
	if ok {
		w.Arguments = args
	} else {
		w.RawArguments = argumentsText
	}
	return w
}

// NewHandoffWidget builds the handoff-indicator payload.
func NewHandoffWidget(handoffName string) *Widget {
	return &Widget{
		Type:        WidgetTypeHandoff,
		HandoffName: handoffName,
		Label:       "Transferring to " + handoffName,
	}
}

func parseArguments(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(text), &args); err == nil {
		return args, true
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, false
	}
	return args, true
}
