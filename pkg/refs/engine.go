package refs

import (
	"log/slog"

	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
)

// Engine derives, for every node, the set of upstream outputs it may
// legally reference, and repairs or clears stale reference bindings as the
// graph topology changes.
//
// The engine itself is pure over the store's node and edge collections.
// Wider side effects of a successful repair (flipping the publishable flag,
// scheduling an autosave) go through the repair hook.
type Engine struct {
	store    *graph.Store
	logger   *slog.Logger
	onRepair func()
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRepairHook registers a callback fired once per pass that repaired or
// cleared at least one binding.
func WithRepairHook(fn func()) Option {
	return func(e *Engine) { e.onRepair = fn }
}

// New creates a propagation engine over the given store.
func New(store *graph.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpdateReferences recomputes the legal reference set for nodeID and every
// node reachable forward from it, repairing each reference binding: targets
// still present and reachable get their cached label/type refreshed, the
// rest are cleared to unbound.
func (e *Engine) UpdateReferences(nodeID string) {
	edges := e.store.Edges()
	affected := e.descendants(nodeID, edges)
	affected = append([]string{nodeID}, affected...)
	e.repair(affected, edges)
}

// RemoveReferences handles a single edge removal: the target node and its
// descendants lose every binding whose referenced node fell out of their
// ancestor set.
func (e *Engine) RemoveReferences(sourceID, targetID string) {
	edges := e.store.Edges()
	affected := append([]string{targetID}, e.descendants(targetID, edges)...)
	e.repair(affected, edges)
	_ = sourceID // reachability is recomputed from the edge list; the source only identifies the removed path
}

// DeleteOutputReference clears, across all dependents, any binding pointing
// at the exact output that was removed from nodeID.
func (e *Engine) DeleteOutputReference(nodeID, outputID string) {
	edges := e.store.Edges()
	repaired := false
	for _, depID := range e.descendants(nodeID, edges) {
		dep := e.store.Node(depID)
		if dep == nil {
			continue
		}
		needs := false
		for i := range dep.Inputs {
			b := dep.Inputs[i].Binding
			if b.Kind == domain.BindingReference && b.NodeID == nodeID && b.OutputID == outputID {
				needs = true
				break
			}
		}
		if !needs {
			continue
		}
		repaired = true
		_ = e.store.SetNode(depID, func(n *domain.Node) {
			for i := range n.Inputs {
				b := &n.Inputs[i].Binding
				if b.Kind == domain.BindingReference && b.NodeID == nodeID && b.OutputID == outputID {
					b.Clear()
				}
			}
		})
	}
	if repaired {
		e.logger.Debug("cleared references to deleted output", "node", nodeID, "output", outputID)
		e.repaired()
	}
}

// RefreshLabels updates the cached display name on every binding that
// references the renamed node, without touching the binding itself.
func (e *Engine) RefreshLabels(renamedID string) {
	node := e.store.Node(renamedID)
	if node == nil {
		return
	}
	flat := flattenOutputs(node)
	edges := e.store.Edges()
	for _, depID := range e.descendants(renamedID, edges) {
		dep := e.store.Node(depID)
		if dep == nil {
			continue
		}
		needs := false
		for i := range dep.Inputs {
			b := dep.Inputs[i].Binding
			if b.Kind == domain.BindingReference && b.NodeID == renamedID {
				if out, ok := flat[b.OutputID]; ok && b.Label != out.label(node) {
					needs = true
					break
				}
			}
		}
		if !needs {
			continue
		}
		_ = e.store.SetNode(depID, func(n *domain.Node) {
			for i := range n.Inputs {
				b := &n.Inputs[i].Binding
				if b.Kind == domain.BindingReference && b.NodeID == renamedID {
					if out, ok := flat[b.OutputID]; ok {
						b.Label = out.label(node)
					}
				}
			}
		})
	}
}

// repair runs one pass over the affected nodes against the current edge
// list, then fires the repair hook if anything changed.
func (e *Engine) repair(affected []string, edges []domain.Edge) {
	anyRepaired := false
	for _, id := range affected {
		node := e.store.Node(id)
		if node == nil {
			continue
		}
		legal := e.legalOutputs(id, edges)

		// Owner nodes are resolved up front: the updater below runs under
		// the store's write lock, where further store reads would block.
		dirty := false
		owners := make(map[string]*domain.Node)
		for i := range node.Inputs {
			b := node.Inputs[i].Binding
			if b.Kind != domain.BindingReference || !b.Bound() {
				continue
			}
			out, ok := legal[refKey{b.NodeID, b.OutputID}]
			if !ok {
				dirty = true
				continue
			}
			owner, seen := owners[b.NodeID]
			if !seen {
				owner = e.store.Node(b.NodeID)
				owners[b.NodeID] = owner
			}
			if b.Label != out.label(owner) || b.Type != out.Type {
				dirty = true
			}
		}
		if !dirty {
			continue
		}

		anyRepaired = true
		_ = e.store.SetNode(id, func(n *domain.Node) {
			for i := range n.Inputs {
				b := &n.Inputs[i].Binding
				if b.Kind != domain.BindingReference || !b.Bound() {
					continue
				}
				out, ok := legal[refKey{b.NodeID, b.OutputID}]
				if !ok {
					b.Clear()
					continue
				}
				b.Label = out.label(owners[b.NodeID])
				b.Type = out.Type
			}
		})
	}
	if anyRepaired {
		e.repaired()
	}
}

func (e *Engine) repaired() {
	if e.onRepair != nil {
		e.onRepair()
	}
}

// legalOutputs flattens the outputs of every ancestor of nodeID into a
// lookup keyed by (owner id, output id).
func (e *Engine) legalOutputs(nodeID string, edges []domain.Edge) map[refKey]flatOutput {
	legal := make(map[refKey]flatOutput)
	for _, ancestorID := range e.ancestors(nodeID, edges) {
		ancestor := e.store.Node(ancestorID)
		if ancestor == nil {
			continue
		}
		for outID, out := range flattenOutputs(ancestor) {
			legal[refKey{ancestorID, outID}] = out
		}
	}
	return legal
}

// descendants returns all nodes reachable forward from id, in BFS order.
func (e *Engine) descendants(id string, edges []domain.Edge) []string {
	return traverse(id, edges, func(edge domain.Edge, at string) (string, bool) {
		if edge.Source == at {
			return edge.Target, true
		}
		return "", false
	})
}

// ancestors returns all nodes that can reach id, in BFS order.
func (e *Engine) ancestors(id string, edges []domain.Edge) []string {
	return traverse(id, edges, func(edge domain.Edge, at string) (string, bool) {
		if edge.Target == at {
			return edge.Source, true
		}
		return "", false
	})
}

func traverse(start string, edges []domain.Edge, step func(domain.Edge, string) (string, bool)) []string {
	visited := map[string]bool{start: true}
	queue := []string{start}
	var order []string
	for len(queue) > 0 {
		at := queue[0]
		queue = queue[1:]
		for _, edge := range edges {
			next, ok := step(edge, at)
			if !ok || visited[next] {
				continue
			}
			visited[next] = true
			order = append(order, next)
			queue = append(queue, next)
		}
	}
	return order
}
