package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

const (
	// defaultDelay is the autosave coalescing window.
	defaultDelay = 2 * time.Second
	// saveTimeout bounds one outbound save.
	saveTimeout = 15 * time.Second
)

// Coordinator debounces graph mutations into a single outbound save and
// gates the session-level publishable flag.
//
// The debounce is one cancel-and-reschedule timer, not a queue: only the
// most recent graph state is ever sent. A failed save is not retried; local
// state stays authoritative and the next mutation-triggered save carries
// the same data again.
type Coordinator struct {
	store   *graph.Store
	service ports.FlowService
	logger  *slog.Logger
	hooks   domain.LifecycleHooks

	mu          sync.Mutex
	timer       *time.Timer
	delay       time.Duration
	publishable bool
	buildCancel context.CancelFunc
	lastSaved   time.Time
	closed      bool
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithDelay overrides the autosave coalescing window.
func WithDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.delay = d }
}

// WithHooks registers lifecycle hooks (save outcomes are reported through
// OnSave; failures carry the error).
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Coordinator) { c.hooks = hooks }
}

// New creates a coordinator for the store, saving through the given
// service. A freshly opened flow starts unpublishable until a build passes.
func New(store *graph.Store, service ports.FlowService, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		service: service,
		logger:  logging.NewNop(),
		delay:   defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AutoSave schedules (or reschedules) the debounced save. Repeated calls
// within the window coalesce into exactly one outbound save of whatever
// the graph looks like when the timer fires.
func (c *Coordinator) AutoSave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.delay, func() { _ = c.Flush(context.Background()) })
}

// Flush performs the outbound save immediately with the current graph.
// Used directly on teardown; the debounce path lands here too.
func (c *Coordinator) Flush(ctx context.Context) error {
	flow := c.store.Flow()

	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	updated, err := c.service.SaveFlow(ctx, flow)
	now := time.Now()
	if err != nil {
		c.logger.Warn("flow save failed", "flow", flow.ID, "err", err)
	} else {
		c.mu.Lock()
		c.lastSaved = updated
		c.mu.Unlock()
		c.logger.Debug("flow saved", "flow", flow.ID, "updated_at", updated)
	}
	if c.hooks.OnSave != nil {
		c.hooks.OnSave(ctx, &domain.SaveEvent{Timestamp: now, FlowID: flow.ID, Err: err})
	}
	return err
}

// MarkUnpublishable flips the publishable flag off. Invoked on every
// structural mutation; if a build round trip is in flight it is cancelled,
// forcing a re-validation before publishing.
func (c *Coordinator) MarkUnpublishable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishable = false
	if c.buildCancel != nil {
		c.buildCancel()
		c.buildCancel = nil
	}
}

// Publishable reports whether the graph has passed a build since its last
// edit.
func (c *Coordinator) Publishable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publishable
}

// LastSaved returns the server timestamp of the most recent successful
// save.
func (c *Coordinator) LastSaved() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSaved
}

// Build runs the remote compile/validate round trip. Success is the only
// thing that restores the publishable flag. A mutation during the round
// trip cancels it and the flag stays off.
func (c *Coordinator) Build(ctx context.Context) error {
	buildCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	if c.buildCancel != nil {
		c.buildCancel()
	}
	c.buildCancel = cancel
	c.mu.Unlock()

	err := c.service.BuildFlow(buildCtx, c.store.Flow())

	c.mu.Lock()
	defer c.mu.Unlock()
	// Read the context state before the cleanup cancel below; holding the
	// lock keeps MarkUnpublishable from slipping in between the read and
	// the publishable flip.
	interrupted := buildCtx.Err()
	if interrupted == nil {
		c.buildCancel = nil
	}
	cancel()
	if err != nil {
		return err
	}
	if interrupted != nil {
		// Mutated mid-build; the result no longer describes the graph.
		return interrupted
	}
	c.publishable = true
	return nil
}

// Close cancels any pending debounced save without flushing.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
