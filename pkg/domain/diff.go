package domain

import (
	"reflect"
)

// GraphDiff represents the changes between two graph snapshots.
// It is designed to be serialized to JSON for partial updates on clients
// watching a canvas (added/removed sets plus in-place node changes).
type GraphDiff struct {
	FlowID string `json:"flow_id"`

	AddedNodes   []*Node  `json:"added_nodes,omitempty"`
	ChangedNodes []*Node  `json:"changed_nodes,omitempty"`
	RemovedNodes []string `json:"removed_nodes,omitempty"`

	AddedEdges   []Edge   `json:"added_edges,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
}

// Empty reports whether the diff carries no changes.
func (d *GraphDiff) Empty() bool {
	return d == nil || (len(d.AddedNodes) == 0 && len(d.ChangedNodes) == 0 &&
		len(d.RemovedNodes) == 0 && len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0)
}

// DiffGraphs calculates the difference between two (nodes, edges) snapshots.
// If the old snapshot is nil/empty, the diff represents the entire new graph.
// Node comparison includes transient debug status so watchers see run
// progress as ordinary change events.
func DiffGraphs(flowID string, oldNodes, newNodes []*Node, oldEdges, newEdges []Edge) *GraphDiff {
	diff := &GraphDiff{FlowID: flowID}

	oldByID := make(map[string]*Node, len(oldNodes))
	for _, n := range oldNodes {
		oldByID[n.ID] = n
	}
	seen := make(map[string]bool, len(newNodes))
	for _, n := range newNodes {
		seen[n.ID] = true
		prev, ok := oldByID[n.ID]
		switch {
		case !ok:
			diff.AddedNodes = append(diff.AddedNodes, n)
		case !reflect.DeepEqual(prev, n):
			diff.ChangedNodes = append(diff.ChangedNodes, n)
		}
	}
	for _, n := range oldNodes {
		if !seen[n.ID] {
			diff.RemovedNodes = append(diff.RemovedNodes, n.ID)
		}
	}

	oldEdgeIDs := make(map[string]Edge, len(oldEdges))
	for _, e := range oldEdges {
		oldEdgeIDs[e.ID] = e
	}
	seenEdges := make(map[string]bool, len(newEdges))
	for _, e := range newEdges {
		seenEdges[e.ID] = true
		if _, ok := oldEdgeIDs[e.ID]; !ok {
			diff.AddedEdges = append(diff.AddedEdges, e)
		}
	}
	for _, e := range oldEdges {
		if !seenEdges[e.ID] {
			diff.RemovedEdges = append(diff.RemovedEdges, e.ID)
		}
	}

	return diff
}
