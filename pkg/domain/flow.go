package domain

import "time"

// Flow is one persisted canvas document: the node and edge collections plus
// the metadata the save endpoint tracks.
type Flow struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string    `json:"version,omitempty" yaml:"version,omitempty"`
	Nodes       []*Node   `json:"nodes" yaml:"nodes"`
	Edges       []Edge    `json:"edges" yaml:"edges"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Clone returns a deep copy of the flow's graph. Metadata fields are copied
// by value.
func (f *Flow) Clone() *Flow {
	cp := *f
	cp.Nodes = make([]*Node, len(f.Nodes))
	for i, n := range f.Nodes {
		cp.Nodes[i] = n.Clone()
	}
	cp.Edges = make([]Edge, len(f.Edges))
	copy(cp.Edges, f.Edges)
	return &cp
}
