package refs

import (
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/schema"
)

// refKey identifies one referenceable output: the owning node plus the
// output id within it.
type refKey struct {
	nodeID   string
	outputID string
}

// flatOutput is one entry of a node's flattened output schema.
type flatOutput struct {
	Name string
	Type schema.ValueType
}

// label is the display name cached onto bindings: "nodeTitle.outputName",
// falling back to the bare output name for untitled nodes.
func (o flatOutput) label(owner *domain.Node) string {
	if owner == nil || owner.Title == "" {
		return o.Name
	}
	return owner.Title + "." + o.Name
}

// flattenOutputs walks a node's output schema tree and returns every
// addressable output keyed by id. Nested children keep their own ids; their
// names are dotted paths from the top-level output.
func flattenOutputs(n *domain.Node) map[string]flatOutput {
	flat := make(map[string]flatOutput)
	var walk func(prefix string, outs []domain.OutputSlot)
	walk = func(prefix string, outs []domain.OutputSlot) {
		for _, out := range outs {
			name := out.Name
			if prefix != "" {
				name = prefix + "." + out.Name
			}
			flat[out.ID] = flatOutput{Name: name, Type: out.Type}
			if len(out.Children) > 0 {
				walk(name, out.Children)
			}
		}
	}
	walk("", n.Outputs)
	return flat
}

// SyncIterationStart resynchronizes an iteration's synthetic start node:
// the start node's outputs mirror the iteration node's input slots with one
// level of element unwrapping (array<T> becomes T inside the body). Called
// whenever the iteration node's inputs change shape. Downstream body nodes
// are then re-repaired against the new shape.
func (e *Engine) SyncIterationStart(iterationID string) {
	iter := e.store.Node(iterationID)
	if iter == nil || iter.Type != domain.NodeTypeIteration || iter.StartID == "" {
		return
	}

	mirrored := make([]domain.OutputSlot, 0, len(iter.Inputs))
	for _, in := range iter.Inputs {
		mirrored = append(mirrored, domain.OutputSlot{
			ID:   in.ID,
			Name: in.Name,
			Type: in.Type.Elem(),
		})
	}

	startID := iter.StartID
	if err := e.store.SetNode(startID, func(n *domain.Node) {
		n.Outputs = mirrored
	}); err != nil {
		e.logger.Warn("iteration start node missing", "iteration", iterationID, "start", startID, "err", err)
		return
	}

	e.UpdateReferences(startID)
}

// LegalReferences returns, for display in editors, every output the node
// may currently bind to. Edges never cross canvas scopes, so the ancestor
// walk stays within the node's own canvas by construction. Order follows
// ancestor BFS order.
func (e *Engine) LegalReferences(nodeID string) []Reference {
	edges := e.store.Edges()
	var out []Reference
	for _, ancestorID := range e.ancestors(nodeID, edges) {
		ancestor := e.store.Node(ancestorID)
		if ancestor == nil {
			continue
		}
		for outID, flat := range flattenOutputs(ancestor) {
			out = append(out, Reference{
				NodeID:   ancestorID,
				OutputID: outID,
				Label:    flat.label(ancestor),
				Type:     flat.Type,
			})
		}
	}
	return out
}

// Reference is one legally bindable upstream output.
type Reference struct {
	NodeID   string           `json:"node_id"`
	OutputID string           `json:"output_id"`
	Label    string           `json:"label"`
	Type     schema.ValueType `json:"type"`
}
