package app

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/runstate"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/stream"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/thread"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/chatkit/threadstore"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/logging"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/observability"
	"github.com/Timestep-AI/timestep-ai-sub004/internal/runtime"
	id "github.com/Timestep-AI/timestep-ai-sub004/internal/utils/id"
)

const maxTitleLength = 48

// ChatService drives agent runs for chat threads: it owns the write path
// (new user turns, approval decisions) and funnels every run through the
// streaming pipeline.
type ChatService struct {
	threads     threadstore.Store
	states      runstate.Store
	runner      runtime.Runner
	streamer    *stream.Streamer
	processor   *stream.Processor
	broadcaster *EventBroadcaster
	metrics     *observability.MetricsCollector
	pipe        *observability.StreamMetrics
	logger      logging.Logger
}

// ChatServiceOption customizes a ChatService.
type ChatServiceOption func(*ChatService)

// WithBroadcaster mirrors every emitted event onto the broadcaster for
// secondary subscribers.
func WithBroadcaster(b *EventBroadcaster) ChatServiceOption {
	return func(s *ChatService) {
		s.broadcaster = b
	}
}

// WithChatMetrics records stream counters on the collector, threading it
// through to the streamer and processor as well.
func WithChatMetrics(m *observability.MetricsCollector) ChatServiceOption {
	return func(s *ChatService) {
		s.metrics = m
		s.streamer = stream.NewStreamer(s.threads, s.states, stream.WithMetricsCollector(m))
		s.processor = stream.NewProcessor(s.threads, stream.WithProcessorMetrics(m))
	}
}

// WithChatLogger sets the component logger.
func WithChatLogger(logger logging.Logger) ChatServiceOption {
	return func(s *ChatService) {
		s.logger = logging.OrNop(logger)
	}
}

// NewChatService wires the service to its stores and runner.
func NewChatService(threads threadstore.Store, states runstate.Store, runner runtime.Runner, opts ...ChatServiceOption) *ChatService {
	s := &ChatService{
		threads:   threads,
		states:    states,
		runner:    runner,
		streamer:  stream.NewStreamer(threads, states),
		processor: stream.NewProcessor(threads),
		pipe:      observability.NewStreamMetrics(),
		logger:    logging.NewComponentLogger("ChatService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StreamMessage handles one user turn. With an empty threadID a new thread is
// created and announced as the first event; otherwise the thread must exist
// and must not be locked on a pending approval. The user message is persisted
// before the run starts so history survives a failed run.
func (s *ChatService) StreamMessage(ctx context.Context, threadID, message string, emit stream.Emitter) error {
	if message == "" {
		return ValidationError("message is required")
	}

	started := time.Now()

	var created *thread.Thread
	if threadID == "" {
		th, err := s.createThread(ctx, message)
		if err != nil {
			return err
		}
		threadID = th.ID
		created = th
	} else {
		if _, err := s.threads.GetThread(ctx, threadID); err != nil {
			if errors.Is(err, threadstore.ErrThreadNotFound) {
				return NotFoundError(fmt.Sprintf("thread %s", threadID))
			}
			return err
		}
		if _, err := s.states.Load(ctx, threadID); err == nil {
			return fmt.Errorf("thread %s: %w", threadID, ErrThreadLocked)
		} else if !errors.Is(err, runstate.ErrNotFound) {
			return err
		}
	}

	ctx = id.WithThreadID(ctx, threadID)
	emit = s.tapped(threadID, emit)

	if created != nil {
		if err := emit(&thread.ThreadCreated{Thread: created}); err != nil {
			return err
		}
	}

	userMsg := thread.NewUserMessage(threadID, message)
	if err := s.threads.AddItem(ctx, threadID, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}
	if err := emit(&thread.ItemAdded{Item: userMsg}); err != nil {
		return err
	}

	src, err := s.runner.Run(ctx, threadID, message)
	if err != nil {
		return fmt.Errorf("start run for thread %s: %w", threadID, err)
	}

	err = s.runPipeline(ctx, threadID, src, emit)
	s.recordRun(ctx, started, err)
	return err
}

// SubmitApproval applies a human decision to a paused run and streams the
// continuation. The saved checkpoint is cleared once the resumed stream
// completes without error; a failed resume keeps it so the decision can be
// retried.
func (s *ChatService) SubmitApproval(ctx context.Context, threadID string, decision runtime.ApprovalDecision, emit stream.Emitter) error {
	if threadID == "" {
		return ValidationError("thread id is required")
	}
	if decision.CallID == "" {
		return ValidationError("call id is required")
	}

	started := time.Now()
	emit = s.tapped(threadID, emit)
	ctx = id.WithThreadID(ctx, threadID)

	state, err := s.states.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, runstate.ErrNotFound) {
			s.pipe.RecordRunStateLoad("miss")
			return fmt.Errorf("thread %s: %w", threadID, ErrNoPendingApproval)
		}
		return err
	}
	s.pipe.RecordRunStateLoad("hit")

	src, err := s.runner.Resume(ctx, threadID, state, decision)
	if err != nil {
		return fmt.Errorf("resume run for thread %s: %w", threadID, err)
	}

	err = s.runPipeline(ctx, threadID, src, emit)
	if err == nil {
		if clearErr := s.states.Clear(ctx, threadID); clearErr != nil {
			s.logger.Warn("Failed to clear run state for thread %s: %v", threadID, clearErr)
		} else {
			s.pipe.RecordRunStateClear()
		}
		if s.metrics != nil {
			s.metrics.RecordApprovalResume(ctx, decision.Approved)
		}
	}
	s.recordRun(ctx, started, err)
	return err
}

// PendingApproval reports whether the thread is paused on an approval.
func (s *ChatService) PendingApproval(ctx context.Context, threadID string) (bool, error) {
	if _, err := s.states.Load(ctx, threadID); err != nil {
		if errors.Is(err, runstate.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ChatService) createThread(ctx context.Context, firstMessage string) (*thread.Thread, error) {
	th := &thread.Thread{
		ID:        id.NewThreadID(),
		Title:     deriveTitle(firstMessage),
		CreatedAt: time.Now().UTC(),
		Status:    thread.Status{Type: thread.StatusActive},
		Items:     thread.ItemPage{Data: []*thread.Item{}},
	}
	if err := s.threads.CreateThread(ctx, th); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordThreadCreated(ctx)
	}
	s.logger.Info("Created thread %s", th.ID)
	return th, nil
}

func (s *ChatService) runPipeline(ctx context.Context, threadID string, src runtime.Stream, emit stream.Emitter) error {
	if s.metrics != nil {
		s.metrics.IncrementActiveStreams(ctx)
		defer s.metrics.DecrementActiveStreams(ctx)
	}
	run := func(ctx context.Context, emit stream.Emitter) error {
		return s.streamer.Run(ctx, threadID, src, emit)
	}
	return s.processor.ProcessEvents(ctx, threadID, run, emit)
}

// tapped wraps emit so every event also reaches the broadcaster and metrics.
func (s *ChatService) tapped(threadID string, emit stream.Emitter) stream.Emitter {
	if s.broadcaster == nil && s.metrics == nil {
		return emit
	}
	return func(ev thread.Event) error {
		if s.broadcaster != nil && threadID != "" {
			s.broadcaster.Publish(threadID, ev)
		}
		if s.metrics != nil {
			s.metrics.RecordEvent(context.Background(), ev.EventType())
		}
		return emit(ev)
	}
}

func (s *ChatService) recordRun(ctx context.Context, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordStreamRun(ctx, outcome, time.Since(started))
}

// deriveTitle takes the opening words of the first message as the thread
// title.
func deriveTitle(message string) string {
	if len(message) <= maxTitleLength {
		return message
	}
	// Back up to a rune boundary so multi-byte text is never cut mid-rune.
	cut := maxTitleLength
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + "..."
}
