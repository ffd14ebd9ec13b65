package debug_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasflow/canvasflow/pkg/adapters/memory"
	"github.com/canvasflow/canvasflow/pkg/debug"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

const (
	pollTimeout  = 2 * time.Second
	pollInterval = 10 * time.Millisecond
)

func testFlow() *domain.Flow {
	return &domain.Flow{
		ID: "flow-1",
		Nodes: []*domain.Node{
			{ID: "node-start", Type: domain.NodeTypeStart, Title: "Start",
				Outputs: []domain.OutputSlot{{ID: "out-1", Name: domain.KeyUserInput, Type: "string"}}},
			{ID: "node-llm", Type: domain.NodeTypeModel, Title: "Model"},
			{ID: "node-end", Type: domain.NodeTypeEnd, Title: "End"},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "node-start", Target: "node-llm"},
			{ID: "e2", Source: "node-llm", Target: "node-end"},
		},
	}
}

func newTestSession(t *testing.T, streamer ports.RunStreamer, opts ...debug.Option) (*debug.Session, *graph.Store) {
	t.Helper()
	store := graph.NewStore("flow-1")
	store.Load(testFlow())
	return debug.NewSession(store, streamer, opts...), store
}

// nodeStream reports a node still streaming, with optional content attributed
// to it.
func nodeStream(nodeID, content string) ports.RunEvent {
	evt := ports.RunEvent{
		ID:           "run-1",
		WorkflowStep: &ports.WorkflowStep{Node: &ports.NodeStep{ID: nodeID}},
	}
	if content != "" {
		evt.Choices = []ports.Choice{{Delta: ports.Delta{Content: content}}}
	}
	return evt
}

// nodeDone reports a node reaching a terminal state.
func nodeDone(nodeID, reason string, step ports.NodeStep) ports.RunEvent {
	step.ID = nodeID
	step.FinishReason = ports.Finish(reason)
	return ports.RunEvent{
		ID:           "run-1",
		WorkflowStep: &ports.WorkflowStep{Node: &step},
	}
}

// finish is a bare top-level finish signal.
func finish(reason string) ports.RunEvent {
	return ports.RunEvent{
		ID:      "run-1",
		Choices: []ports.Choice{{FinishReason: ports.Finish(reason)}},
	}
}

func interruptTurn(eventID, content string, options ...ports.OptionItem) []ports.RunEvent {
	return []ports.RunEvent{
		nodeStream("node-llm", ""),
		{
			ID:      "run-1",
			Choices: []ports.Choice{{FinishReason: ports.Finish(domain.FinishInterrupt)}},
			EventData: &ports.EventData{
				EventID:   eventID,
				NeedReply: true,
				Value:     &ports.EventValue{Content: content, Option: options},
			},
		},
	}
}

func awaitStatus(t *testing.T, s *debug.Session, want domain.SessionStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Status() == want
	}, pollTimeout, pollInterval, "session never reached %s", want)
}

func TestSessionRunToCompletion(t *testing.T) {
	streamer := memory.NewStreamer([]ports.RunEvent{
		nodeStream("node-llm", "draft "),
		nodeDone("node-llm", ports.NodeFinishSucceeded, ports.NodeStep{
			ExecutedTime: 1.25,
			Usage:        &ports.Usage{TotalTokens: 42},
			Outputs:      map[string]any{"text": "hi there"},
			Ext:          &ports.NodeStepExt{RawOutput: "raw", AnswerMode: "direct"},
		}),
		nodeStream("node-end", "hi "),
		nodeStream("node-end", "there"),
		nodeDone("node-end", ports.NodeFinishSucceeded, ports.NodeStep{}),
		finish(domain.FinishStop),
	})
	s, store := newTestSession(t, streamer)

	inputs := map[string]any{domain.KeyUserInput: "hello"}
	require.NoError(t, s.Start(t.Context(), inputs))
	awaitStatus(t, s, domain.SessionIdle)

	runs := streamer.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "flow-1", runs[0].FlowID)
	assert.Equal(t, inputs, runs[0].Inputs)
	assert.True(t, runs[0].PromptDebugger)

	// Content attributed to the model node never reaches the transcript;
	// content for the end sink does.
	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.RoleAsk, entries[0].Role)
	assert.Equal(t, inputs, entries[0].Inputs)
	assert.Equal(t, domain.RoleAnswer, entries[1].Role)
	assert.Equal(t, "hi there", entries[1].Content)
	assert.Equal(t, "hi there", s.Answer())

	llm := store.Node("node-llm")
	require.NotNil(t, llm.Debug)
	assert.Equal(t, domain.NodeSuccess, llm.Status)
	assert.Equal(t, "draft ", llm.Debug.Answer)
	assert.Equal(t, 1.25, llm.Debug.ElapsedSeconds)
	assert.Equal(t, 42, llm.Debug.TotalTokens)
	assert.Equal(t, map[string]any{"text": "hi there"}, llm.Debug.Outputs)
	assert.Equal(t, "raw", llm.Debug.RawOutput)
	assert.Equal(t, "direct", llm.Debug.AnswerMode)

	for _, n := range store.Nodes() {
		assert.NotEqual(t, domain.NodeRunning, n.Status, "node %s still running", n.ID)
	}
	assert.Equal(t, "run-1", s.TurnID())
}

func TestSessionInterruptAndResume(t *testing.T) {
	streamer := memory.NewStreamer(
		interruptTurn("evt-9", "Which city?",
			ports.OptionItem{ID: "opt-1", Label: "Paris", Value: "paris"}),
		[]ports.RunEvent{
			nodeStream("node-end", "Paris it is"),
			finish(domain.FinishStop),
		},
	)
	s, store := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionInterrupted)

	state := s.Interrupt()
	require.NotNil(t, state)
	assert.Equal(t, "evt-9", state.EventID)
	assert.Equal(t, "node-llm", state.NodeID)
	assert.True(t, state.NeedReply)
	assert.Equal(t, "Which city?", state.Content)
	require.Len(t, state.Options, 1)
	assert.Equal(t, "paris", state.Options[0].Value)

	// The interrupted node stays running until the run concludes.
	assert.Equal(t, domain.NodeRunning, store.Node("node-llm").Status)

	require.NoError(t, s.Resume(t.Context(), "paris"))
	awaitStatus(t, s, domain.SessionIdle)

	resumes := streamer.Resumes()
	require.Len(t, resumes, 1)
	assert.Equal(t, "evt-9", resumes[0].EventID)
	assert.Equal(t, ports.ResumeReply, resumes[0].EventType)
	assert.Equal(t, "paris", resumes[0].Content)

	entries := s.Transcript()
	require.Len(t, entries, 4)
	assert.Equal(t, "paris", entries[2].Content)
	assert.Equal(t, "Paris it is", entries[3].Content)
	assert.Nil(t, s.Interrupt())
}

func TestSessionIgnore(t *testing.T) {
	streamer := memory.NewStreamer(
		interruptTurn("evt-2", "Optional detail?"),
		[]ports.RunEvent{finish(domain.FinishStop)},
	)
	s, _ := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionInterrupted)
	require.NoError(t, s.Ignore(t.Context()))
	awaitStatus(t, s, domain.SessionIdle)

	resumes := streamer.Resumes()
	require.Len(t, resumes, 1)
	assert.Equal(t, ports.ResumeIgnore, resumes[0].EventType)
	assert.Empty(t, resumes[0].Content)

	entries := s.Transcript()
	require.Len(t, entries, 4)
	assert.Equal(t, "(ignored)", entries[2].Content)
}

func TestSessionResumeRequiresInterrupt(t *testing.T) {
	s, _ := newTestSession(t, memory.NewStreamer())
	assert.ErrorIs(t, s.Resume(t.Context(), "nope"), domain.ErrNoInterrupt)
	assert.ErrorIs(t, s.Ignore(t.Context()), domain.ErrNoInterrupt)
}

func TestSessionAbortWhileInterrupted(t *testing.T) {
	streamer := memory.NewStreamer(interruptTurn("evt-5", "Continue?"))
	s, store := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionInterrupted)
	require.NoError(t, s.Abort(t.Context()))

	assert.Equal(t, domain.SessionIdle, s.Status())
	assert.Nil(t, s.Interrupt())

	resumes := streamer.Resumes()
	require.Len(t, resumes, 1)
	assert.Equal(t, ports.ResumeAbort, resumes[0].EventType)
	assert.Equal(t, "evt-5", resumes[0].EventID)

	assert.Equal(t, domain.NodeCancelled, store.Node("node-llm").Status)

	entries := s.Transcript()
	require.NotEmpty(t, entries)
	assert.Equal(t, domain.RoleDivider, entries[len(entries)-1].Role)
}

func TestSessionAbortWhileIdleSendsNoNotification(t *testing.T) {
	streamer := memory.NewStreamer()
	s, _ := newTestSession(t, streamer)
	require.NoError(t, s.Abort(t.Context()))
	assert.Empty(t, streamer.Resumes())
}

func TestSessionContentAuditReplacesAnswer(t *testing.T) {
	streamer := memory.NewStreamer([]ports.RunEvent{
		nodeStream("node-llm", ""),
		nodeStream("node-end", "partial answer "),
		{Code: domain.CodeContentAudit, Message: "content blocked by policy"},
	})
	s, store := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)

	// The moderation message replaces everything already streamed.
	assert.Equal(t, "content blocked by policy", s.Answer())
	assert.Equal(t, domain.NodeCancelled, store.Node("node-llm").Status)
}

func TestSessionFailureKeepsStreamedText(t *testing.T) {
	streamer := memory.NewStreamer([]ports.RunEvent{
		nodeStream("node-end", "so far "),
		{Code: 500, Message: "engine exploded"},
	})
	s, _ := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)
	assert.Equal(t, "so far engine exploded", s.Answer())
}

func TestSessionNodeFailure(t *testing.T) {
	streamer := memory.NewStreamer([]ports.RunEvent{
		nodeStream("node-llm", ""),
		func() ports.RunEvent {
			evt := nodeDone("node-llm", ports.NodeFinishFailed, ports.NodeStep{ExecutedTime: 0.5})
			evt.Message = "prompt too long"
			return evt
		}(),
		finish(domain.FinishStop),
	})
	s, store := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)

	llm := store.Node("node-llm")
	assert.Equal(t, domain.NodeFailed, llm.Status)
	require.NotNil(t, llm.Debug)
	assert.Equal(t, "prompt too long", llm.Debug.FailReason)
}

func TestSessionStreamTeardownEndsRun(t *testing.T) {
	// A stream that closes without a stop signal means the transport died.
	streamer := memory.NewStreamer([]ports.RunEvent{
		nodeStream("node-llm", ""),
	})
	s, store := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)
	assert.Equal(t, domain.NodeCancelled, store.Node("node-llm").Status)
}

func TestSessionStartResetsPriorNodeState(t *testing.T) {
	streamer := memory.NewStreamer(
		[]ports.RunEvent{
			nodeStream("node-llm", ""),
			nodeDone("node-llm", ports.NodeFinishSucceeded, ports.NodeStep{}),
			finish(domain.FinishStop),
		},
		[]ports.RunEvent{finish(domain.FinishStop)},
	)
	s, store := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)
	require.Equal(t, domain.NodeSuccess, store.Node("node-llm").Status)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)
	assert.Equal(t, domain.NodeIdle, store.Node("node-llm").Status)
	assert.Nil(t, store.Node("node-llm").Debug)
}

func TestSessionRestartDropsStaleStream(t *testing.T) {
	streamer := memory.NewStreamer(
		[]ports.RunEvent{
			nodeStream("node-end", "stale"),
			finish(domain.FinishStop),
		},
		[]ports.RunEvent{
			nodeStream("node-end", "fresh"),
			finish(domain.FinishStop),
		},
	)
	streamer.SetDelay(30 * time.Millisecond)
	s, _ := newTestSession(t, streamer)

	require.NoError(t, s.Start(t.Context(), nil))
	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)

	assert.Equal(t, "fresh", s.Answer())
	require.Len(t, streamer.Runs(), 2)
}

func TestSessionTranscriptPersistence(t *testing.T) {
	transcripts := memory.NewTranscriptStore()
	streamer := memory.NewStreamer(
		[]ports.RunEvent{nodeStream("node-end", "first"), finish(domain.FinishStop)},
		[]ports.RunEvent{nodeStream("node-end", "second"), finish(domain.FinishStop)},
	)
	s, _ := newTestSession(t, streamer, debug.WithTranscriptStore(transcripts))

	require.NoError(t, s.Start(t.Context(), map[string]any{domain.KeyUserInput: "q1"}))
	awaitStatus(t, s, domain.SessionIdle)

	persisted, err := transcripts.Load(t.Context(), "flow-1")
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, "first", persisted[1].Content)

	require.NoError(t, s.Start(t.Context(), map[string]any{domain.KeyUserInput: "q2"}))
	awaitStatus(t, s, domain.SessionIdle)

	// Each turn is flushed exactly once.
	persisted, err = transcripts.Load(t.Context(), "flow-1")
	require.NoError(t, err)
	require.Len(t, persisted, 4)
	assert.Equal(t, "second", persisted[3].Content)

	require.NoError(t, s.ClearHistory(t.Context()))
	assert.Empty(t, s.Transcript())
	_, err = transcripts.Load(t.Context(), "flow-1")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestSessionLoadHistory(t *testing.T) {
	transcripts := memory.NewTranscriptStore()
	require.NoError(t, transcripts.Append(t.Context(), "flow-1",
		domain.TranscriptEntry{Role: domain.RoleAsk, Content: "earlier"},
		domain.TranscriptEntry{Role: domain.RoleAnswer, Content: "reply"},
	))

	streamer := memory.NewStreamer(
		[]ports.RunEvent{nodeStream("node-end", "new answer"), finish(domain.FinishStop)},
	)
	s, _ := newTestSession(t, streamer, debug.WithTranscriptStore(transcripts))

	require.NoError(t, s.LoadHistory(t.Context()))
	require.Len(t, s.Transcript(), 2)

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)

	// Seeded history is not re-persisted when the new turn flushes.
	persisted, err := transcripts.Load(t.Context(), "flow-1")
	require.NoError(t, err)
	assert.Len(t, persisted, 4)
	assert.Len(t, s.Transcript(), 4)
}

func TestSessionLoadHistoryWithoutHistory(t *testing.T) {
	s, _ := newTestSession(t, memory.NewStreamer(),
		debug.WithTranscriptStore(memory.NewTranscriptStore()))
	require.NoError(t, s.LoadHistory(t.Context()))
	assert.Empty(t, s.Transcript())
}

func TestSessionHooks(t *testing.T) {
	var mu sync.Mutex
	var nodeStatuses []domain.NodeStatus
	var sessionStatuses []domain.SessionStatus
	var focused []string
	interrupts := 0

	hooks := domain.LifecycleHooks{
		OnNodeStatus: func(_ context.Context, e *domain.NodeStatusEvent) {
			mu.Lock()
			nodeStatuses = append(nodeStatuses, e.Status)
			mu.Unlock()
		},
		OnSession: func(_ context.Context, e *domain.SessionEvent) {
			mu.Lock()
			sessionStatuses = append(sessionStatuses, e.Status)
			mu.Unlock()
		},
		OnInterrupt: func(_ context.Context, e *domain.InterruptEvent) {
			mu.Lock()
			interrupts++
			mu.Unlock()
		},
		OnFocusNode: func(_ context.Context, nodeID string) {
			mu.Lock()
			focused = append(focused, nodeID)
			mu.Unlock()
		},
	}

	streamer := memory.NewStreamer(
		interruptTurn("evt-1", "Go on?"),
		[]ports.RunEvent{
			nodeDone("node-llm", ports.NodeFinishSucceeded, ports.NodeStep{}),
			finish(domain.FinishStop),
		},
	)
	s, _ := newTestSession(t, streamer, debug.WithHooks(hooks))

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionInterrupted)
	require.NoError(t, s.Resume(t.Context(), "yes"))
	awaitStatus(t, s, domain.SessionIdle)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.NodeStatus{domain.NodeRunning, domain.NodeSuccess}, nodeStatuses)
	assert.Equal(t, []domain.SessionStatus{
		domain.SessionRunning,
		domain.SessionInterrupted,
		domain.SessionRunning,
		domain.SessionIdle,
	}, sessionStatuses)
	assert.Equal(t, 1, interrupts)
	assert.Equal(t, []string{"node-llm"}, focused)
}

func TestSessionAutonomousSuppressesFocus(t *testing.T) {
	var mu sync.Mutex
	var focused []string
	hooks := domain.LifecycleHooks{
		OnFocusNode: func(_ context.Context, nodeID string) {
			mu.Lock()
			focused = append(focused, nodeID)
			mu.Unlock()
		},
	}

	streamer := memory.NewStreamer(interruptTurn("evt-1", "Go on?"))
	s, _ := newTestSession(t, streamer, debug.WithHooks(hooks), debug.Autonomous())

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionInterrupted)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, focused)
}

type recordingLocker struct {
	mu       sync.Mutex
	locked   []string
	unlocked int
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.locked = append(l.locked, key)
	l.mu.Unlock()
	return func(context.Context) error {
		l.mu.Lock()
		l.unlocked++
		l.mu.Unlock()
		return nil
	}, nil
}

func TestSessionLockLifecycle(t *testing.T) {
	locker := &recordingLocker{}
	streamer := memory.NewStreamer([]ports.RunEvent{finish(domain.FinishStop)})
	s, _ := newTestSession(t, streamer, debug.WithLocker(locker))

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Equal(t, []string{"flow-1"}, locker.locked)
	assert.Equal(t, 1, locker.unlocked)
}

// exclusiveLocker refuses to hand out a key that is still held, the way a
// real distributed lock does until its TTL expires.
type exclusiveLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	locks   int
	unlocks int
}

func (l *exclusiveLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("lock held: %s", key)
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[key] = true
	l.locks++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.unlocks++
		return nil
	}, nil
}

func TestSessionRestartReleasesSupersededLock(t *testing.T) {
	locker := &exclusiveLocker{}
	streamer := memory.NewStreamer(
		[]ports.RunEvent{nodeStream("node-end", "stale"), finish(domain.FinishStop)},
		[]ports.RunEvent{nodeStream("node-end", "fresh"), finish(domain.FinishStop)},
	)
	streamer.SetDelay(30 * time.Millisecond)
	s, _ := newTestSession(t, streamer, debug.WithLocker(locker))

	require.NoError(t, s.Start(t.Context(), nil))

	// The superseded run never reaches its teardown path, so the restart
	// must hand its lock back itself before reacquiring.
	require.NoError(t, s.Start(t.Context(), nil))
	locker.mu.Lock()
	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 1, locker.unlocks)
	locker.mu.Unlock()

	awaitStatus(t, s, domain.SessionIdle)
	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Equal(t, 2, locker.unlocks)
	assert.Empty(t, locker.held)
}

func TestSessionRunRequestCarriesIdentity(t *testing.T) {
	streamer := memory.NewStreamer([]ports.RunEvent{finish(domain.FinishStop)})
	s, _ := newTestSession(t, streamer,
		debug.WithChatID("chat-7"), debug.WithVersion("v3"))

	require.NoError(t, s.Start(t.Context(), nil))
	awaitStatus(t, s, domain.SessionIdle)

	runs := streamer.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "chat-7", runs[0].ChatID)
	assert.Equal(t, "v3", runs[0].Version)
}
