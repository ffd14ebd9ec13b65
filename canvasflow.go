package canvasflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/adapters/memory"
	"github.com/canvasflow/canvasflow/pkg/debug"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
	"github.com/canvasflow/canvasflow/pkg/persist"
	"github.com/canvasflow/canvasflow/pkg/ports"
	"github.com/canvasflow/canvasflow/pkg/refs"
	"github.com/canvasflow/canvasflow/pkg/validate"
)

// Workspace is the high-level entry point for the canvasflow library. It
// wires the graph store, undo history, reference propagation, validation,
// persistence and the debug session into one editing surface for a single
// flow.
type Workspace struct {
	flowID string
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	diffMu    sync.Mutex
	lastNodes []*domain.Node
	lastEdges []domain.Edge

	store    *graph.Store
	history  *graph.History
	refs     *refs.Engine
	checker  *validate.Checker
	persist  *persist.Coordinator
	session  *debug.Session
	service  ports.FlowService
	streamer ports.RunStreamer
}

// Option defines a functional option for configuring the Workspace.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	service       ports.FlowService
	streamer      ports.RunStreamer
	transcripts   ports.TranscriptStore
	locker        ports.DistributedLocker
	chatID        string
	autonomous    bool
	autosaveDelay time.Duration
	validateDelay time.Duration
}

// WithLogger sets a custom structured logger for the workspace.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) { c.hooks = hooks }
}

// WithFlowService injects the collaborator service used for saves, builds
// and suggestions. Defaults to an in-memory service.
func WithFlowService(service ports.FlowService) Option {
	return func(c *config) { c.service = service }
}

// WithStreamer injects the run streamer used for debug sessions. Defaults
// to an in-memory scripted streamer (offline mode).
func WithStreamer(streamer ports.RunStreamer) Option {
	return func(c *config) { c.streamer = streamer }
}

// WithTranscriptStore persists debug conversation history.
func WithTranscriptStore(store ports.TranscriptStore) Option {
	return func(c *config) { c.transcripts = store }
}

// WithLocker serializes debug runs per flow across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(c *config) { c.locker = locker }
}

// WithChatID pins the conversation id used on run requests.
func WithChatID(chatID string) Option {
	return func(c *config) { c.chatID = chatID }
}

// WithAutosaveDelay overrides the debounce interval between an edit and
// the autosave it schedules.
func WithAutosaveDelay(d time.Duration) Option {
	return func(c *config) { c.autosaveDelay = d }
}

// WithValidationDelay overrides the debounce interval for deferred node
// validation.
func WithValidationDelay(d time.Duration) Option {
	return func(c *config) { c.validateDelay = d }
}

// Autonomous suppresses viewport-focus side effects on interrupts.
func Autonomous() Option {
	return func(c *config) { c.autonomous = true }
}

// New opens a workspace over the given flow.
func New(flow *domain.Flow, opts ...Option) (*Workspace, error) {
	if flow == nil || flow.ID == "" {
		return nil, fmt.Errorf("flow with an id is required")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.service == nil {
		cfg.service = memory.NewFlowService()
	}
	if cfg.streamer == nil {
		cfg.streamer = memory.NewStreamer()
	}

	w := &Workspace{
		flowID:   flow.ID,
		logger:   cfg.logger.With("flow", flow.ID),
		hooks:    cfg.hooks,
		history:  graph.NewHistory(),
		service:  cfg.service,
		streamer: cfg.streamer,
	}

	// The hooks below close over w so the store can notify collaborators
	// built after it.
	w.store = graph.NewStore(flow.ID,
		graph.WithLogger(w.logger),
		graph.WithMutateHook(func() {
			w.persist.MarkUnpublishable()
			w.persist.AutoSave()
			w.emitGraphChange()
		}),
		graph.WithEdgeHooks(
			func(e domain.Edge) { w.refs.UpdateReferences(e.Target) },
			func(e domain.Edge) { w.refs.RemoveReferences(e.Source, e.Target) },
		),
		graph.WithRenameHook(func(nodeID string) { w.refs.RefreshLabels(nodeID) }),
	)
	w.store.Load(flow)
	w.lastNodes, w.lastEdges = w.store.Nodes(), w.store.Edges()

	w.refs = refs.New(w.store, refs.WithLogger(w.logger))

	persistOpts := []persist.Option{
		persist.WithLogger(w.logger),
		persist.WithHooks(w.hooks),
	}
	if cfg.autosaveDelay > 0 {
		persistOpts = append(persistOpts, persist.WithDelay(cfg.autosaveDelay))
	}
	w.persist = persist.New(w.store, w.service, persistOpts...)

	checkerOpts := []validate.Option{
		validate.WithLogger(w.logger),
		validate.WithAfterDelayHook(func() { w.persist.AutoSave() }),
	}
	if cfg.validateDelay > 0 {
		checkerOpts = append(checkerOpts, validate.WithDelay(cfg.validateDelay))
	}
	w.checker = validate.NewChecker(w.store, checkerOpts...)

	sessionOpts := []debug.Option{
		debug.WithLogger(w.logger),
		debug.WithHooks(w.hooks),
	}
	if cfg.transcripts != nil {
		sessionOpts = append(sessionOpts, debug.WithTranscriptStore(cfg.transcripts))
	}
	if cfg.locker != nil {
		sessionOpts = append(sessionOpts, debug.WithLocker(cfg.locker))
	}
	if cfg.chatID != "" {
		sessionOpts = append(sessionOpts, debug.WithChatID(cfg.chatID))
	}
	if flow.Version != "" {
		sessionOpts = append(sessionOpts, debug.WithVersion(flow.Version))
	}
	if cfg.autonomous {
		sessionOpts = append(sessionOpts, debug.Autonomous())
	}
	w.session = debug.NewSession(w.store, w.streamer, sessionOpts...)

	return w, nil
}

// emitGraphChange diffs the current snapshot against the last one handed
// to watchers and reports it through OnGraphChange. Collection snapshots
// are copy-on-write, so holding the previous slices is free.
func (w *Workspace) emitGraphChange() {
	if w.hooks.OnGraphChange == nil {
		return
	}
	nodes, edges := w.store.Nodes(), w.store.Edges()
	w.diffMu.Lock()
	diff := domain.DiffGraphs(w.flowID, w.lastNodes, nodes, w.lastEdges, edges)
	w.lastNodes, w.lastEdges = nodes, edges
	w.diffMu.Unlock()
	if diff.Empty() {
		return
	}
	w.hooks.OnGraphChange(context.Background(), diff)
}

// FlowID returns the id of the flow this workspace edits.
func (w *Workspace) FlowID() string { return w.flowID }

// Flow returns a deep copy of the current graph as a flow document.
func (w *Workspace) Flow() *domain.Flow { return w.store.Flow() }

// Nodes returns the current node collection snapshot.
func (w *Workspace) Nodes() []*domain.Node { return w.store.Nodes() }

// Edges returns the current edge collection snapshot.
func (w *Workspace) Edges() []domain.Edge { return w.store.Edges() }

// Node returns one node by id, or nil.
func (w *Workspace) Node(id string) *domain.Node { return w.store.Node(id) }

// SelectNode marks a node as the editor selection. Empty id clears it.
func (w *Workspace) SelectNode(id string) { w.store.Select(id) }

// Selected returns the selected node id.
func (w *Workspace) Selected() string { return w.store.Selected() }

// AddNode appends a node to the canvas and returns its id. Adding an
// iteration node also mints its synthetic body-entry node and links the
// two.
func (w *Workspace) AddNode(n *domain.Node) string {
	w.history.TakeSnapshot(w.store)

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	var start *domain.Node
	if n.Type == domain.NodeTypeIteration && n.StartID == "" {
		start = &domain.Node{
			ID:       uuid.NewString(),
			Type:     domain.NodeTypeIterationStart,
			Title:    "Start",
			ParentID: n.ID,
		}
		n.StartID = start.ID
	}

	id := w.store.AddNode(n)
	if start != nil {
		w.store.AddNode(start)
		w.refs.SyncIterationStart(id)
	}
	w.checker.DelayCheckNode(id)
	return id
}

// DeleteNode removes a node, cascading to an iteration's body and to every
// touching edge, and repairs references downstream.
func (w *Workspace) DeleteNode(id string) error {
	w.history.TakeSnapshot(w.store)
	return w.store.DeleteNode(id)
}

// Connect adds an edge between two nodes on the same canvas and extends
// the target side's legal reference set.
func (w *Workspace) Connect(e domain.Edge) error {
	w.history.TakeSnapshot(w.store)
	return w.store.Connect(e)
}

// Disconnect removes an edge and clears any reference bindings the target
// side can no longer reach.
func (w *Workspace) Disconnect(edgeID string) error {
	w.history.TakeSnapshot(w.store)
	return w.store.Disconnect(edgeID)
}

// RenameNode retitles a node. Dependent reference labels are refreshed
// without touching the bindings themselves.
func (w *Workspace) RenameNode(id, title string) error {
	w.history.TakeSnapshot(w.store)
	return w.store.Rename(id, title)
}

// UpdateNode applies an edit to one node, then propagates reference
// changes downstream and schedules a deferred validation pass. Editing an
// iteration node also re-mirrors its body-entry outputs.
func (w *Workspace) UpdateNode(id string, edit func(*domain.Node)) error {
	w.history.TakeSnapshot(w.store)
	if err := w.store.SetNode(id, edit); err != nil {
		return err
	}
	if n := w.store.Node(id); n != nil && n.Type == domain.NodeTypeIteration {
		w.refs.SyncIterationStart(id)
	}
	w.refs.UpdateReferences(id)
	w.checker.DelayCheckNode(id)
	return nil
}

// BindInput sets the value source of one input slot.
func (w *Workspace) BindInput(nodeID, inputID string, b domain.Binding) error {
	w.history.TakeSnapshot(w.store)
	var found bool
	err := w.store.SetNode(nodeID, func(n *domain.Node) {
		if in := n.Input(inputID); in != nil {
			in.Binding = b
			found = true
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("bind input %s on %s: no such slot", inputID, nodeID)
	}
	if n := w.store.Node(nodeID); n != nil && n.Type == domain.NodeTypeIteration {
		w.refs.SyncIterationStart(nodeID)
	}
	w.refs.UpdateReferences(nodeID)
	w.checker.DelayCheckNode(nodeID)
	return nil
}

// UpdateOutputs replaces a node's output schema. References to outputs
// that no longer exist are cleared across all dependents.
func (w *Workspace) UpdateOutputs(id string, outputs []domain.OutputSlot) error {
	prev := w.store.Node(id)
	if prev == nil {
		return fmt.Errorf("update outputs on %s: %w", id, domain.ErrNodeNotFound)
	}
	kept := make(map[string]bool, len(outputs))
	for _, o := range outputs {
		kept[o.ID] = true
	}
	var removed []string
	for _, o := range prev.Outputs {
		if !kept[o.ID] {
			removed = append(removed, o.ID)
		}
	}

	w.history.TakeSnapshot(w.store)
	if err := w.store.SetNode(id, func(n *domain.Node) {
		n.Outputs = outputs
	}); err != nil {
		return err
	}
	for _, outID := range removed {
		w.refs.DeleteOutputReference(id, outID)
	}
	w.refs.UpdateReferences(id)
	w.checker.DelayCheckNode(id)
	return nil
}

// LegalReferences lists the upstream outputs a node's inputs may reference.
func (w *Workspace) LegalReferences(nodeID string) []refs.Reference {
	return w.refs.LegalReferences(nodeID)
}

// CopyNode captures a node (with an iteration's whole body) for pasting.
func (w *Workspace) CopyNode(id string) (*graph.Clipboard, error) {
	return w.store.CopyNode(id)
}

// Paste inserts clipboard contents with fresh ids, offset positions and
// cleared reference bindings, and returns the new nodes.
func (w *Workspace) Paste(clip *graph.Clipboard) ([]*domain.Node, error) {
	w.history.TakeSnapshot(w.store)
	pasted, err := w.store.Paste(clip)
	if err != nil {
		return nil, err
	}
	for _, n := range pasted {
		w.checker.DelayCheckNode(n.ID)
	}
	return pasted, nil
}

// Undo restores the graph to the state before the most recent edit.
// Returns domain.ErrNothingToUndo when the history is empty.
func (w *Workspace) Undo() error {
	return w.history.Undo(w.store)
}

// UndoDepth reports how many edits can be undone.
func (w *Workspace) UndoDepth() int { return w.history.Depth() }

// CheckNode synchronously validates one node and annotates its slots.
func (w *Workspace) CheckNode(id string) bool { return w.checker.CheckNode(id) }

// DelayCheckNode schedules a debounced validation pass for one node.
func (w *Workspace) DelayCheckNode(id string) { w.checker.DelayCheckNode(id) }

// CheckAll validates every node and returns an aggregate error naming the
// failures.
func (w *Workspace) CheckAll() error { return w.checker.CheckAll() }

// RegisterCheck installs a custom parameter check for a node type.
func (w *Workspace) RegisterCheck(nodeType string, fn validate.CheckFunc) {
	w.checker.Register(nodeType, fn)
}

// Save flushes any pending autosave immediately.
func (w *Workspace) Save(ctx context.Context) error { return w.persist.Flush(ctx) }

// Publishable reports whether the last build succeeded with no edits since.
func (w *Workspace) Publishable() bool { return w.persist.Publishable() }

// LastSaved returns the server timestamp of the most recent save.
func (w *Workspace) LastSaved() time.Time { return w.persist.LastSaved() }

// Publish validates the whole graph and runs the remote build round trip.
// Only an un-edited successful build makes the flow publishable.
func (w *Workspace) Publish(ctx context.Context) error {
	if err := w.checker.CheckAll(); err != nil {
		return fmt.Errorf("flow not publishable: %w", err)
	}
	if err := w.persist.Flush(ctx); err != nil {
		return err
	}
	return w.persist.Build(ctx)
}

// Run starts a debug run with the given start-node inputs. A run already
// in flight is terminated first.
func (w *Workspace) Run(ctx context.Context, inputs map[string]any) error {
	return w.session.Start(ctx, inputs)
}

// Resume continues an interrupted run with the user's reply.
func (w *Workspace) Resume(ctx context.Context, content string) error {
	return w.session.Resume(ctx, content)
}

// Ignore continues an interrupted run without a reply.
func (w *Workspace) Ignore(ctx context.Context) error {
	return w.session.Ignore(ctx)
}

// Abort abandons the current run.
func (w *Workspace) Abort(ctx context.Context) error {
	return w.session.Abort(ctx)
}

// SessionStatus returns the debug session state.
func (w *Workspace) SessionStatus() domain.SessionStatus { return w.session.Status() }

// Interrupt returns the pause state of an interrupted run, or nil.
func (w *Workspace) Interrupt() *domain.InterruptState { return w.session.Interrupt() }

// Transcript returns the session's conversation history.
func (w *Workspace) Transcript() []domain.TranscriptEntry { return w.session.Transcript() }

// Answer returns the streamed answer text of the current turn.
func (w *Workspace) Answer() string { return w.session.Answer() }

// LoadTranscript seeds the session transcript from persisted history.
func (w *Workspace) LoadTranscript(ctx context.Context) error {
	return w.session.LoadHistory(ctx)
}

// ClearTranscript drops the conversation history, in memory and persisted.
func (w *Workspace) ClearTranscript(ctx context.Context) error {
	return w.session.ClearHistory(ctx)
}

// Suggestions returns follow-up question candidates for the latest answer.
func (w *Workspace) Suggestions(ctx context.Context) ([]string, error) {
	return w.service.Suggestions(ctx, w.flowID, w.session.Answer())
}

// Session exposes the underlying debug session for event-level consumers.
func (w *Workspace) Session() *debug.Session { return w.session }

// Close tears the workspace down: an in-flight run is aborted, pending
// deferred work is cancelled and unsaved edits are flushed.
func (w *Workspace) Close(ctx context.Context) error {
	if w.session.Status() != domain.SessionIdle {
		if err := w.session.Abort(ctx); err != nil {
			w.logger.Warn("abort on close failed", "err", err)
		}
	}
	w.checker.Close()
	err := w.persist.Flush(ctx)
	w.persist.Close()
	return err
}
