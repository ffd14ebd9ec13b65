package graph

import "github.com/canvasflow/canvasflow/pkg/domain"

// Scope identifies one canvas: the root flow or one iteration body. The
// propagation and validation engines consume scopes uniformly instead of
// special-casing nesting.
type Scope struct {
	// ParentID is empty for the root canvas, or the owning iteration
	// node's id for a nested canvas.
	ParentID string
}

// Root is the scope of the top-level canvas.
func Root() Scope { return Scope{} }

// Nested is the scope of the iteration body owned by parentID.
func Nested(parentID string) Scope { return Scope{ParentID: parentID} }

// Contains reports whether the node lives on this canvas.
func (s Scope) Contains(n *domain.Node) bool {
	return n != nil && n.ParentID == s.ParentID
}

// Of returns the scope the given node lives on.
func Of(n *domain.Node) Scope {
	return Scope{ParentID: n.ParentID}
}
