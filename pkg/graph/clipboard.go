package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// Clipboard holds a detached copy of a subgraph: one node, or an iteration
// container with its whole body and internal edges.
type Clipboard struct {
	Nodes []*domain.Node
	Edges []domain.Edge
}

// pasteOffset shifts pasted nodes so copies do not land exactly on their
// originals.
const pasteOffset = 40.0

// CopyNode captures the node (and, for iteration containers, its body and
// the body's internal edges) into a clipboard. The clipboard is fully
// detached: later store mutations do not affect it.
func (s *Store) CopyNode(id string) (*Clipboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root := s.lookup(id)
	if root == nil {
		return nil, fmt.Errorf("copy node %s: %w", id, domain.ErrNodeNotFound)
	}

	clip := &Clipboard{Nodes: []*domain.Node{root.Clone()}}
	if root.Type != domain.NodeTypeIteration {
		return clip, nil
	}

	copied := map[string]bool{id: true}
	for _, n := range s.nodes {
		if n.ParentID == id {
			clip.Nodes = append(clip.Nodes, n.Clone())
			copied[n.ID] = true
		}
	}
	for _, e := range s.edges {
		if copied[e.Source] && copied[e.Target] {
			clip.Edges = append(clip.Edges, e)
		}
	}
	return clip, nil
}

// Paste inserts the clipboard contents, minting a fresh id for every copied
// node and rewriting all internal cross-references (parent pointers,
// iteration-start linkage, edge endpoints) through the remap table.
// Reference bindings on copies are reset to unbound: a copy never keeps
// references into the original's context. Returns the pasted nodes.
func (s *Store) Paste(clip *Clipboard) ([]*domain.Node, error) {
	if clip == nil || len(clip.Nodes) == 0 {
		return nil, fmt.Errorf("paste: empty clipboard")
	}

	remap := make(map[string]string, len(clip.Nodes))
	for _, n := range clip.Nodes {
		remap[n.ID] = uuid.NewString()
	}

	pasted := make([]*domain.Node, 0, len(clip.Nodes))
	for _, src := range clip.Nodes {
		n := src.Clone()
		n.ID = remap[src.ID]
		if mapped, ok := remap[n.ParentID]; ok {
			n.ParentID = mapped
		}
		if mapped, ok := remap[n.StartID]; ok {
			n.StartID = mapped
		}
		n.X += pasteOffset
		n.Y += pasteOffset
		n.Status = ""
		n.Debug = nil
		for i := range n.Inputs {
			n.Inputs[i].Binding.Clear()
		}
		pasted = append(pasted, n)
	}

	edges := make([]domain.Edge, 0, len(clip.Edges))
	for _, e := range clip.Edges {
		e.ID = uuid.NewString()
		e.Source = remap[e.Source]
		e.Target = remap[e.Target]
		edges = append(edges, e)
	}

	s.mu.Lock()
	nextNodes := make([]*domain.Node, len(s.nodes), len(s.nodes)+len(pasted))
	copy(nextNodes, s.nodes)
	s.nodes = append(nextNodes, pasted...)

	nextEdges := make([]domain.Edge, len(s.edges), len(s.edges)+len(edges))
	copy(nextEdges, s.edges)
	s.edges = append(nextEdges, edges...)
	s.mu.Unlock()

	s.logger.Debug("pasted subgraph", "flow", s.flowID, "nodes", len(pasted), "edges", len(edges))
	s.mutated()
	return pasted, nil
}
