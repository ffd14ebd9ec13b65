package graph

import (
	"sync"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// defaultHistoryLimit bounds snapshot memory; oldest entries are dropped.
const defaultHistoryLimit = 50

// History is the undo stack for one store: an append-only list of deep
// graph snapshots with pop-on-undo. There is no redo; undoing discards the
// step it restores.
type History struct {
	mu    sync.Mutex
	stack []historySnapshot
	limit int
}

type historySnapshot struct {
	nodes []*domain.Node
	edges []domain.Edge
}

// NewHistory creates an empty history stack.
func NewHistory() *History {
	return &History{limit: defaultHistoryLimit}
}

// TakeSnapshot pushes a deep copy of the store's current graph. Callers
// must snapshot BEFORE mutating so that undo restores pre-edit state, and
// should wrap rapid edit bursts (a drag) in a single snapshot.
func (h *History) TakeSnapshot(s *Store) {
	snap := historySnapshot{}
	flow := s.Flow()
	snap.nodes = flow.Nodes
	snap.edges = flow.Edges

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, snap)
	if len(h.stack) > h.limit {
		h.stack = h.stack[len(h.stack)-h.limit:]
	}
}

// Undo restores the most recent snapshot into the store and discards it.
// Returns domain.ErrNothingToUndo on an empty stack.
func (h *History) Undo(s *Store) error {
	h.mu.Lock()
	if len(h.stack) == 0 {
		h.mu.Unlock()
		return domain.ErrNothingToUndo
	}
	snap := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	h.mu.Unlock()

	s.SetNodes(func([]*domain.Node) []*domain.Node { return snap.nodes })
	s.SetEdges(func([]domain.Edge) []domain.Edge { return snap.edges })
	return nil
}

// Depth returns the number of undoable steps.
func (h *History) Depth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}
