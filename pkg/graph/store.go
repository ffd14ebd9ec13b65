package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/canvasflow/canvasflow/internal/logging"
	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Store owns the authoritative node and edge collections for one flow
// (the root canvas plus any iteration bodies, distinguished by ParentID).
//
// Every mutation swaps the full collection for a fresh slice, so a caller
// that captured Nodes() or Edges() earlier never observes later edits.
// A single mutex serializes writers; there is exactly one Store per flow.
type Store struct {
	mu     sync.RWMutex
	flowID string

	nodes []*domain.Node
	edges []domain.Edge

	selected string
	logger   *slog.Logger

	onMutate      func()
	onEdgeAdded   func(domain.Edge)
	onEdgeRemoved func(domain.Edge)
	onRenamed     func(nodeID string)
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a structured logger for mutation tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMutateHook registers a callback fired after every structural
// mutation. The persistence coordinator uses it to flip the publishable
// flag and schedule an autosave.
func WithMutateHook(fn func()) Option {
	return func(s *Store) { s.onMutate = fn }
}

// WithEdgeHooks registers callbacks fired when an edge is connected or
// removed. The reference propagation engine repairs dependents from these.
func WithEdgeHooks(added, removed func(domain.Edge)) Option {
	return func(s *Store) {
		s.onEdgeAdded = added
		s.onEdgeRemoved = removed
	}
}

// WithRenameHook registers a callback fired after a node is renamed, so
// dependents can relabel cached reference names without losing bindings.
func WithRenameHook(fn func(nodeID string)) Option {
	return func(s *Store) { s.onRenamed = fn }
}

// NewStore creates an empty store for the given flow id.
func NewStore(flowID string, opts ...Option) *Store {
	s := &Store{
		flowID: flowID,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FlowID returns the flow this store belongs to.
func (s *Store) FlowID() string { return s.flowID }

// Load replaces the store contents with the given flow's graph without
// firing mutation hooks. Used when opening a flow.
func (s *Store) Load(flow *domain.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := flow.Clone()
	s.nodes = cp.Nodes
	s.edges = cp.Edges
	s.selected = ""
}

// Nodes returns the current node collection. The returned slice is the
// live snapshot; callers must not mutate it.
func (s *Store) Nodes() []*domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes
}

// Edges returns the current edge collection snapshot.
func (s *Store) Edges() []domain.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edges
}

// NodesIn returns the nodes of one canvas scope, in collection order.
func (s *Store) NodesIn(scope Scope) []*domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Node
	for _, n := range s.nodes {
		if scope.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// Node returns the node with the given id, or nil. The returned pointer is
// part of the current snapshot; mutate through SetNode only.
func (s *Store) Node(id string) *domain.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(id)
}

func (s *Store) lookup(id string) *domain.Node {
	for _, n := range s.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Flow returns a deep copy of the current graph wrapped in a Flow document,
// suitable for persistence or snapshotting.
func (s *Store) Flow() *domain.Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := &domain.Flow{ID: s.flowID, Nodes: s.nodes, Edges: s.edges}
	return f.Clone()
}

// Select marks a node as the current editor selection. Empty id clears it.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
}

// Selected returns the currently selected node id.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SetNodes replaces the node collection through a pure updater. The updater
// receives the current slice and must return a new one; it must not mutate
// its argument.
func (s *Store) SetNodes(updater func([]*domain.Node) []*domain.Node) {
	s.mu.Lock()
	s.nodes = updater(s.nodes)
	s.mu.Unlock()
	s.mutated()
}

// SetEdges replaces the edge collection through a pure updater.
func (s *Store) SetEdges(updater func([]domain.Edge) []domain.Edge) {
	s.mu.Lock()
	s.edges = updater(s.edges)
	s.mu.Unlock()
	s.mutated()
}

// SetNode applies an updater to a clone of one node and swaps it into a
// fresh collection. Returns domain.ErrNodeNotFound for unknown ids.
func (s *Store) SetNode(id string, updater func(*domain.Node)) error {
	s.mu.Lock()
	idx := -1
	for i, n := range s.nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("set node %s: %w", id, domain.ErrNodeNotFound)
	}

	next := make([]*domain.Node, len(s.nodes))
	copy(next, s.nodes)
	cp := s.nodes[idx].Clone()
	updater(cp)
	next[idx] = cp
	s.nodes = next
	s.mu.Unlock()
	s.mutated()
	return nil
}

// Annotate applies an updater to a clone of one node like SetNode, but
// without firing mutation hooks. Used for transient feedback (validation
// errors, debug status) that must not count as a structural edit.
func (s *Store) Annotate(id string, updater func(*domain.Node)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.nodes {
		if n.ID != id {
			continue
		}
		next := make([]*domain.Node, len(s.nodes))
		copy(next, s.nodes)
		cp := n.Clone()
		updater(cp)
		next[i] = cp
		s.nodes = next
		return nil
	}
	return fmt.Errorf("annotate node %s: %w", id, domain.ErrNodeNotFound)
}

// Rename sets a node's title and fires the rename hook so dependents can
// refresh cached reference labels.
func (s *Store) Rename(id, title string) error {
	if err := s.SetNode(id, func(n *domain.Node) { n.Title = title }); err != nil {
		return err
	}
	if s.onRenamed != nil {
		s.onRenamed(id)
	}
	return nil
}

// Connect adds an edge. Both endpoints must exist on the same canvas scope.
// A duplicate connection (same endpoints and ports) is a no-op.
func (s *Store) Connect(e domain.Edge) error {
	s.mu.Lock()
	src := s.lookup(e.Source)
	dst := s.lookup(e.Target)
	if src == nil || dst == nil {
		s.mu.Unlock()
		return fmt.Errorf("connect %s -> %s: %w", e.Source, e.Target, domain.ErrNodeNotFound)
	}
	if src.ParentID != dst.ParentID {
		s.mu.Unlock()
		return fmt.Errorf("connect %s -> %s: endpoints cross canvas scopes", e.Source, e.Target)
	}
	for _, existing := range s.edges {
		if existing.Source == e.Source && existing.SourcePort == e.SourcePort &&
			existing.Target == e.Target && existing.TargetPort == e.TargetPort {
			s.mu.Unlock()
			return nil
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	next := make([]domain.Edge, len(s.edges), len(s.edges)+1)
	copy(next, s.edges)
	s.edges = append(next, e)
	s.mu.Unlock()

	s.logger.Debug("edge connected", "flow", s.flowID, "source", e.Source, "target", e.Target)
	if s.onEdgeAdded != nil {
		s.onEdgeAdded(e)
	}
	s.mutated()
	return nil
}

// Disconnect removes one edge by id and notifies the propagation engine.
func (s *Store) Disconnect(edgeID string) error {
	s.mu.Lock()
	var removed *domain.Edge
	next := make([]domain.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		if e.ID == edgeID {
			cp := e
			removed = &cp
			continue
		}
		next = append(next, e)
	}
	if removed == nil {
		s.mu.Unlock()
		return fmt.Errorf("disconnect %s: edge not found", edgeID)
	}
	s.edges = next
	s.mu.Unlock()

	if s.onEdgeRemoved != nil {
		s.onEdgeRemoved(*removed)
	}
	s.mutated()
	return nil
}

// DeleteNode removes a node. Iteration containers cascade to every node of
// their body. All edges touching a removed node go with it, and the
// propagation engine is notified once per removed edge whose other endpoint
// survives.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	if s.lookup(id) == nil {
		s.mu.Unlock()
		return fmt.Errorf("delete node %s: %w", id, domain.ErrNodeNotFound)
	}

	doomed := map[string]bool{id: true}
	for _, n := range s.nodes {
		if n.ParentID == id {
			doomed[n.ID] = true
		}
	}

	nextNodes := make([]*domain.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if !doomed[n.ID] {
			nextNodes = append(nextNodes, n)
		}
	}

	var removedEdges []domain.Edge
	nextEdges := make([]domain.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		if doomed[e.Source] || doomed[e.Target] {
			removedEdges = append(removedEdges, e)
			continue
		}
		nextEdges = append(nextEdges, e)
	}

	s.nodes = nextNodes
	s.edges = nextEdges
	if doomed[s.selected] {
		s.selected = ""
	}
	s.mu.Unlock()

	s.logger.Debug("node deleted", "flow", s.flowID, "node", id, "cascade", len(doomed)-1)
	if s.onEdgeRemoved != nil {
		for _, e := range removedEdges {
			// Repair only where a surviving node lost an ancestor.
			if !doomed[e.Target] {
				s.onEdgeRemoved(e)
			}
		}
	}
	s.mutated()
	return nil
}

// AddNode appends a node. A missing id is minted.
func (s *Store) AddNode(n *domain.Node) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	s.mu.Lock()
	next := make([]*domain.Node, len(s.nodes), len(s.nodes)+1)
	copy(next, s.nodes)
	s.nodes = append(next, n)
	s.mu.Unlock()
	s.mutated()
	return n.ID
}

func (s *Store) mutated() {
	if s.onMutate != nil {
		s.onMutate()
	}
}
