package domain

// Edge connects a source node's output port to a target node's input port.
// Edges are the single source of truth for reachability: node B depends on
// node A exactly when A can reach B along edges.
type Edge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	// SourcePort distinguishes logical output ports on multi-arm nodes
	// (branch conditions, intent arms, the iteration exception arm).
	// Empty means the default port.
	SourcePort string `json:"source_port,omitempty" yaml:"source_port,omitempty"`
	Target     string `json:"target" yaml:"target"`
	TargetPort string `json:"target_port,omitempty" yaml:"target_port,omitempty"`
}

// Touches reports whether the edge has an endpoint on the given node.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// PortException is the SourcePort used by the engine's exception routing.
// A failed node with an outgoing exception edge continues downstream along
// it like any other branch arm.
const PortException = "exception"
