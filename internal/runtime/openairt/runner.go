// Package openairt adapts the OpenAI Responses API to the runtime contract,
// translating its streaming events into the classified event variants the
// streaming pipeline consumes.
package openairt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime"
)

const defaultMaxOutputTokens = 4096

// Config configures the adapter.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Instructions string
	// GuardedTools lists tool names that require a human decision before they
	// run. A guarded function call surfaces as an approval request and pauses
	// the stream.
	GuardedTools []string
}

// Runner runs agent turns against the OpenAI Responses API.
type Runner struct {
	client       openai.Client
	model        string
	instructions string
	guarded      map[string]struct{}
	logger       logging.Logger
}

// NewRunner creates a Runner from the given configuration.
func NewRunner(cfg Config) (*Runner, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("model is required")
	}

	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(cfg.BaseURL)))
	}

	guarded := make(map[string]struct{}, len(cfg.GuardedTools))
	for _, name := range cfg.GuardedTools {
		if name = strings.TrimSpace(name); name != "" {
			guarded[name] = struct{}{}
		}
	}

	return &Runner{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		instructions: cfg.Instructions,
		guarded:      guarded,
		logger:       logging.NewComponentLogger("OpenAIRuntime"),
	}, nil
}

// checkpoint is the serialized resumption state for a paused run.
type checkpoint struct {
	ThreadID   string `json:"thread_id"`
	Model      string `json:"model"`
	ResponseID string `json:"response_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

// Run starts a new turn for the thread.
func (r *Runner) Run(ctx context.Context, threadID, input string) (runtime.Stream, error) {
	params := r.baseParams()
	params.Input = oresponses.ResponseNewParamsInputUnion{OfString: openai.String(input)}

	sse := r.client.Responses.NewStreaming(ctx, params)
	return &apiStream{
		runner: r,
		sse:    sse,
		cp:     checkpoint{ThreadID: threadID, Model: r.model},
	}, nil
}

// Resume continues a paused run, conveying the human decision for the
// invocation that caused the pause.
func (r *Runner) Resume(ctx context.Context, threadID string, state json.RawMessage, decision runtime.ApprovalDecision) (runtime.Stream, error) {
	var cp checkpoint
	if err := json.Unmarshal(state, &cp); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	if cp.ThreadID != "" && cp.ThreadID != threadID {
		return nil, fmt.Errorf("run state belongs to thread %s, not %s", cp.ThreadID, threadID)
	}

	params := r.baseParams()
	if cp.ResponseID != "" {
		params.PreviousResponseID = openai.String(cp.ResponseID)
	}
	params.Input = oresponses.ResponseNewParamsInputUnion{OfString: openai.String(decisionPrompt(cp, decision))}

	sse := r.client.Responses.NewStreaming(ctx, params)
	return &apiStream{
		runner: r,
		sse:    sse,
		cp:     checkpoint{ThreadID: threadID, Model: r.model},
	}, nil
}

func (r *Runner) baseParams() oresponses.ResponseNewParams {
	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(r.model),
		MaxOutputTokens: openai.Int(defaultMaxOutputTokens),
	}
	if r.instructions != "" {
		params.Instructions = openai.String(r.instructions)
	}
	return params
}

// decisionPrompt renders the human decision as the resumed turn's input.
func decisionPrompt(cp checkpoint, decision runtime.ApprovalDecision) string {
	tool := cp.ToolName
	if tool == "" {
		tool = decision.CallID
	}
	if decision.Approved {
		return fmt.Sprintf("The user approved the pending %s call. Proceed.", tool)
	}
	if decision.Reason != "" {
		return fmt.Sprintf("The user rejected the pending %s call: %s. Do not run it.", tool, decision.Reason)
	}
	return fmt.Sprintf("The user rejected the pending %s call. Do not run it.", tool)
}

// apiStream adapts the Responses SSE stream to the runtime contract.
type apiStream struct {
	runner *Runner
	sse    *ssestream.Stream[oresponses.ResponseStreamEventUnion]
	cp     checkpoint
	done   bool
}

// Next advances to the next classified event. Guarded function calls surface
// as approval requests and end the stream; everything unrecognized is
// skipped.
func (s *apiStream) Next(ctx context.Context) (runtime.Event, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.sse.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		event := s.sse.Current()
		switch strings.TrimSpace(event.Type) {
		case "response.output_text.delta":
			delta := event.Delta.OfString
			if delta == "" {
				continue
			}
			return &runtime.TextDelta{Delta: delta}, nil

		case "response.output_item.done":
			item := event.Item
			if strings.TrimSpace(item.Type) != "function_call" {
				continue
			}
			name := strings.TrimSpace(item.Name)
			callID := strings.TrimSpace(item.CallID)
			if callID == "" {
				callID = strings.TrimSpace(item.ID)
			}
			args := strings.TrimSpace(item.Arguments)
			if _, guarded := s.runner.guarded[name]; guarded {
				s.cp.ToolName = name
				s.cp.CallID = callID
				s.cp.Arguments = args
				s.done = true
				return &runtime.ToolApprovalRequested{ToolName: name, CallID: callID, Arguments: args}, nil
			}
			return &runtime.ToolCalled{ToolName: name, CallID: callID, Arguments: args}, nil

		case "response.completed":
			s.cp.ResponseID = event.Response.ID

		default:
			s.runner.logger.Debug("Skipping responses event %s", event.Type)
		}
	}
	if err := s.sse.Err(); err != nil {
		return nil, err
	}
	s.done = true
	return nil, io.EOF
}

// State serializes the resumption checkpoint as of the most recent event.
func (s *apiStream) State() (json.RawMessage, error) {
	return json.Marshal(s.cp)
}
