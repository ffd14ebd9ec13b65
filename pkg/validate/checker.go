package validate

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
	"github.com/canvasflow/canvasflow/pkg/schema"
)

// defaultDelay coalesces rapid keystrokes into a single validation pass.
const defaultDelay = 500 * time.Millisecond

// CheckFunc is a node-type-specific parameter predicate registered by the
// node's own editor. It returns nil when the parameter bag passes.
type CheckFunc func(n *domain.Node) error

// Checker runs per-node structural checks and writes per-slot error
// messages onto the node's transient fields. Validation annotates, it never
// blocks editing; publish-readiness is gated elsewhere.
type Checker struct {
	store  *graph.Store
	logger *slog.Logger

	mu     sync.Mutex
	checks map[string]CheckFunc
	timers map[string]*time.Timer

	delay      time.Duration
	afterDelay func()
}

// Option configures the Checker.
type Option func(*Checker)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// WithDelay overrides the debounce interval of DelayCheckNode.
func WithDelay(d time.Duration) Option {
	return func(c *Checker) { c.delay = d }
}

// WithAfterDelayHook registers a callback fired after each deferred check
// completes. The workspace uses it to trigger a persistence save.
func WithAfterDelayHook(fn func()) Option {
	return func(c *Checker) { c.afterDelay = fn }
}

// NewChecker creates a checker over the given store with the built-in
// per-type parameter checks registered.
func NewChecker(store *graph.Store, opts ...Option) *Checker {
	c := &Checker{
		store:  store,
		logger: logging.NewNop(),
		checks: make(map[string]CheckFunc),
		timers: make(map[string]*time.Timer),
		delay:  defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	registerBuiltins(c)
	return c
}

// Register installs (or overrides) the parameter check for a node type.
func (c *Checker) Register(nodeType string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[nodeType] = fn
}

// CheckNode synchronously validates one node. It writes per-slot error
// annotations onto the node's transient fields and returns the overall
// pass flag: all required inputs bound and named, all outputs validly
// typed, and the node-type parameter check passing.
func (c *Checker) CheckNode(id string) bool {
	node := c.store.Node(id)
	if node == nil {
		return false
	}

	type slotErr struct {
		name  string
		value string
	}
	inputErrs := make([]slotErr, len(node.Inputs))
	pass := true

	seen := make(map[string]int, len(node.Inputs))
	for i, in := range node.Inputs {
		name := strings.TrimSpace(in.Name)
		switch {
		case name == "":
			inputErrs[i].name = "name required"
			pass = false
		case seen[name] > 0:
			inputErrs[i].name = "duplicate name"
			// annotate the first occurrence too
			inputErrs[seen[name]-1].name = "duplicate name"
			pass = false
		default:
			seen[name] = i + 1
		}

		if in.Required && !bindingSatisfied(in.Binding) {
			inputErrs[i].value = "value required"
			pass = false
		}
	}

	for _, out := range node.Outputs {
		if strings.TrimSpace(out.Name) == "" {
			pass = false
			continue
		}
		if _, err := schema.Parse(string(out.Type)); err != nil {
			pass = false
		}
	}

	c.mu.Lock()
	check := c.checks[node.Type]
	c.mu.Unlock()
	if check != nil {
		if err := check(node); err != nil {
			c.logger.Debug("node params failed check", "node", id, "type", node.Type, "err", err)
			pass = false
		}
	}

	// Transient annotation only; this is UI feedback, not a graph edit.
	_ = c.store.Annotate(id, func(n *domain.Node) {
		for i := range n.Inputs {
			if i < len(inputErrs) {
				n.Inputs[i].NameError = inputErrs[i].name
				n.Inputs[i].ValueError = inputErrs[i].value
			}
		}
	})

	return pass
}

// DelayCheckNode defers CheckNode by the debounce interval, coalescing
// rapid calls for the same node into a single pass. After the deferred
// check runs, the after-delay hook fires (a persistence save).
func (c *Checker) DelayCheckNode(id string) {
	c.mu.Lock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
	}
	c.timers[id] = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		delete(c.timers, id)
		c.mu.Unlock()

		c.CheckNode(id)
		if c.afterDelay != nil {
			c.afterDelay()
		}
	})
	c.mu.Unlock()
}

// CheckAll validates every node and returns an aggregate error naming the
// failures, or nil when the whole graph passes. Used by the validate
// command and pre-publish checks.
func (c *Checker) CheckAll() error {
	var failed []string
	for _, n := range c.store.Nodes() {
		if !c.CheckNode(n.ID) {
			failed = append(failed, n.ID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("found %d invalid nodes:\n- %s", len(failed), strings.Join(failed, "\n- "))
	}
	return nil
}

// Close cancels any pending deferred checks.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// bindingSatisfied reports whether a slot's binding carries a usable value.
func bindingSatisfied(b domain.Binding) bool {
	if b.Kind == domain.BindingReference {
		return b.Bound()
	}
	switch v := b.Literal.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	default:
		return true
	}
}
