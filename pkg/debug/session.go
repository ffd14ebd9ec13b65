package debug

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

// lockTTL bounds the per-canvas run lock when a distributed locker is
// configured.
const lockTTL = 30 * time.Second

// Session drives one canvas's debug runs: it opens a streaming run against
// the remote engine, folds incoming protocol events into per-node and
// session-level state machines, accumulates streamed answer text, and
// manages interrupt/resume/abort plus the conversation transcript.
//
// Exactly one stream is open per canvas at a time; starting a new run
// cancels the previous stream, and events that arrive after cancellation
// are dropped before dispatch. Events are applied strictly in arrival
// order.
type Session struct {
	store    *graph.Store
	streamer ports.RunStreamer

	transcripts ports.TranscriptStore // optional history persistence
	locker      ports.DistributedLocker
	logger      *slog.Logger
	hooks       domain.LifecycleHooks

	chatID     string
	version    string
	autonomous bool

	mu         sync.Mutex
	status     domain.SessionStatus
	interrupt  *domain.InterruptState
	transcript []domain.TranscriptEntry
	flushed    int
	turnID     string
	activeNode string

	gen    int
	cancel context.CancelFunc
	unlock ports.UnlockFunc
}

// Option configures the Session.
type Option func(*Session)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) { s.hooks = hooks }
}

// WithTranscriptStore persists transcript entries for history replay.
func WithTranscriptStore(store ports.TranscriptStore) Option {
	return func(s *Session) { s.transcripts = store }
}

// WithLocker serializes runs per flow across workspace replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *Session) { s.locker = locker }
}

// WithChatID pins the conversation id sent on run requests.
func WithChatID(chatID string) Option {
	return func(s *Session) { s.chatID = chatID }
}

// WithVersion pins the flow version sent on run requests.
func WithVersion(version string) Option {
	return func(s *Session) { s.version = version }
}

// Autonomous suppresses viewport-focus side effects on interrupts
// (background runs).
func Autonomous() Option {
	return func(s *Session) { s.autonomous = true }
}

// NewSession creates an idle debug session over the given store and
// streamer.
func NewSession(store *graph.Store, streamer ports.RunStreamer, opts ...Option) *Session {
	s := &Session{
		store:    store,
		streamer: streamer,
		logger:   logging.NewNop(),
		status:   domain.SessionIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the session state.
func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Interrupt returns the pause state while the session is interrupted, else
// nil.
func (s *Session) Interrupt() *domain.InterruptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interrupt == nil {
		return nil
	}
	cp := *s.interrupt
	return &cp
}

// TurnID returns the engine-assigned id of the latest turn, or "" before
// the first event arrives.
func (s *Session) TurnID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnID
}

// Transcript returns a copy of the session's ask/answer/divider history.
func (s *Session) Transcript() []domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Start snapshots the graph, clears prior per-node debug results, opens a
// streaming run and begins consuming its events. A run already in flight
// is implicitly terminated first.
func (s *Session) Start(ctx context.Context, inputs map[string]any) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.interrupt = nil
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.resetNodeState()

	// A superseded run's goroutine never reaches end(), so its lock is
	// handed back here; otherwise the new acquisition below would poll
	// against our own key until the TTL expired.
	s.releaseLock(ctx)

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, s.store.FlowID(), lockTTL)
		if err != nil {
			return fmt.Errorf("acquire run lock: %w", err)
		}
		s.mu.Lock()
		s.unlock = unlock
		s.mu.Unlock()
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, err := s.streamer.Run(streamCtx, ports.RunRequest{
		FlowID:         s.store.FlowID(),
		Inputs:         inputs,
		ChatID:         s.chatID,
		Version:        s.version,
		PromptDebugger: true,
	})
	if err != nil {
		cancel()
		s.releaseLock(ctx)
		return fmt.Errorf("open run stream: %w", err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.status = domain.SessionRunning
	s.activeNode = ""
	s.appendEntryLocked(domain.TranscriptEntry{
		Role:   domain.RoleAsk,
		Inputs: inputs,
		At:     time.Now().UTC(),
	})
	s.appendEntryLocked(domain.TranscriptEntry{
		Role: domain.RoleAnswer,
		At:   time.Now().UTC(),
	})
	s.mu.Unlock()

	s.emitSession(ctx, domain.SessionRunning, false)
	go s.consume(streamCtx, gen, events)
	return nil
}

// Resume re-opens a stream against the resume endpoint with the recorded
// interrupt event id and the user's content, appending a fresh ask/answer
// pair and clearing the interrupt state.
func (s *Session) Resume(ctx context.Context, content string) error {
	return s.continueRun(ctx, ports.ResumeReply, content)
}

// Ignore resumes the interrupted run with an explicit "ignored" marker
// instead of user content.
func (s *Session) Ignore(ctx context.Context) error {
	return s.continueRun(ctx, ports.ResumeIgnore, "")
}

func (s *Session) continueRun(ctx context.Context, kind ports.ResumeEventType, content string) error {
	s.mu.Lock()
	if s.status != domain.SessionInterrupted || s.interrupt == nil {
		s.mu.Unlock()
		return domain.ErrNoInterrupt
	}
	eventID := s.interrupt.EventID
	s.interrupt = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, err := s.streamer.Resume(streamCtx, ports.ResumeRequest{
		FlowID:         s.store.FlowID(),
		EventID:        eventID,
		EventType:      kind,
		Content:        content,
		Version:        s.version,
		PromptDebugger: true,
	})
	if err != nil {
		cancel()
		return fmt.Errorf("open resume stream: %w", err)
	}

	askContent := content
	if kind == ports.ResumeIgnore {
		askContent = "(ignored)"
	}

	s.mu.Lock()
	s.cancel = cancel
	s.status = domain.SessionRunning
	s.appendEntryLocked(domain.TranscriptEntry{
		Role:    domain.RoleAsk,
		Content: askContent,
		At:      time.Now().UTC(),
	})
	s.appendEntryLocked(domain.TranscriptEntry{
		Role: domain.RoleAnswer,
		At:   time.Now().UTC(),
	})
	s.mu.Unlock()

	s.emitSession(ctx, domain.SessionRunning, false)
	go s.consume(streamCtx, gen, events)
	return nil
}

// Abort ends the session unconditionally: if interrupted the remote engine
// is told the run was abandoned, a divider entry closes the transcript
// turn, every node still running is marked cancelled, and the interrupt
// state is cleared.
func (s *Session) Abort(ctx context.Context) error {
	s.mu.Lock()
	interrupted := s.status == domain.SessionInterrupted && s.interrupt != nil
	var eventID string
	if interrupted {
		eventID = s.interrupt.EventID
	}
	s.interrupt = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.appendEntryLocked(domain.TranscriptEntry{
		Role: domain.RoleDivider,
		At:   time.Now().UTC(),
	})
	s.mu.Unlock()

	if interrupted {
		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := s.streamer.Resume(abortCtx, ports.ResumeRequest{
			FlowID:    s.store.FlowID(),
			EventID:   eventID,
			EventType: ports.ResumeAbort,
		}); err != nil {
			s.logger.Warn("abort notification failed", "flow", s.store.FlowID(), "err", err)
		}
	}

	s.cancelRunningNodes(ctx)
	s.end(ctx)
	return nil
}

// consume applies stream events in arrival order until the channel closes
// or the stream context is cancelled. A close without a stop signal while
// still running ends the session (transport teardown).
func (s *Session) consume(ctx context.Context, gen int, events <-chan ports.RunEvent) {
	for evt := range events {
		if ctx.Err() != nil {
			return // cancelled; drop the remainder
		}
		if s.stale(gen) {
			return
		}
		s.OnEvent(ctx, evt)
	}

	if s.stale(gen) || ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	running := s.status == domain.SessionRunning
	s.mu.Unlock()
	if running {
		// Stream ended without a stop signal: treat as transport abort.
		s.cancelRunningNodes(ctx)
		s.end(ctx)
	}
}

func (s *Session) stale(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// resetNodeState clears prior per-run debug results from every node.
func (s *Session) resetNodeState() {
	for _, n := range s.store.Nodes() {
		if n.Status != "" || n.Debug != nil {
			_ = s.store.Annotate(n.ID, func(n *domain.Node) {
				n.Status = domain.NodeIdle
				n.Debug = nil
			})
		}
	}
}

// cancelRunningNodes marks every node still running as cancelled.
func (s *Session) cancelRunningNodes(ctx context.Context) {
	for _, n := range s.store.Nodes() {
		if n.Status != domain.NodeRunning {
			continue
		}
		_ = s.store.Annotate(n.ID, func(n *domain.Node) {
			n.Status = domain.NodeCancelled
		})
		s.emitNodeStatus(ctx, n.ID, n.Type, domain.NodeCancelled)
	}
}

// end tears the session down to idle, persisting the transcript entries of
// the finished turn.
func (s *Session) end(ctx context.Context) {
	s.mu.Lock()
	s.status = domain.SessionIdle
	s.interrupt = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	flush := make([]domain.TranscriptEntry, len(s.transcript)-s.flushed)
	copy(flush, s.transcript[s.flushed:])
	s.flushed = len(s.transcript)
	s.mu.Unlock()

	if s.transcripts != nil && len(flush) > 0 {
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.transcripts.Append(persistCtx, s.store.FlowID(), flush...); err != nil {
			s.logger.Warn("transcript persistence failed", "flow", s.store.FlowID(), "err", err)
		}
	}

	s.releaseLock(ctx)
	s.emitSession(ctx, domain.SessionIdle, true)
}

func (s *Session) releaseLock(ctx context.Context) {
	s.mu.Lock()
	unlock := s.unlock
	s.unlock = nil
	s.mu.Unlock()
	if unlock == nil {
		return
	}
	if err := unlock(ctx); err != nil {
		s.logger.Warn("run lock release failed (will expire via TTL)",
			"flow", s.store.FlowID(), "err", err)
	}
}

func (s *Session) emitSession(ctx context.Context, status domain.SessionStatus, ended bool) {
	if s.hooks.OnSession != nil {
		s.hooks.OnSession(ctx, &domain.SessionEvent{
			Timestamp: time.Now(),
			FlowID:    s.store.FlowID(),
			Status:    status,
			Ended:     ended,
		})
	}
}

func (s *Session) emitNodeStatus(ctx context.Context, nodeID, nodeType string, status domain.NodeStatus) {
	if s.hooks.OnNodeStatus != nil {
		s.hooks.OnNodeStatus(ctx, &domain.NodeStatusEvent{
			Timestamp: time.Now(),
			NodeID:    nodeID,
			NodeType:  nodeType,
			Status:    status,
		})
	}
}
