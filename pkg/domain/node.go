package domain

import "github.com/canvasflow/canvasflow/pkg/schema"

// NodeType constants define how a node participates in the flow.
const (
	// NodeTypeStart is the entry point of a canvas. Its outputs mirror the
	// flow's declared input variables.
	NodeTypeStart = "start"
	// NodeTypeEnd is the terminal sink of the root canvas. Streamed content
	// addressed to it becomes the session answer.
	NodeTypeEnd = "end"

	// NodeTypeModel invokes a language model.
	NodeTypeModel = "model"
	// NodeTypeBranch routes execution along one of several condition arms.
	NodeTypeBranch = "branch"
	// NodeTypeIntent routes execution by classified user intent.
	NodeTypeIntent = "intent"
	// NodeTypeDatabase runs a query against a bound datasource.
	NodeTypeDatabase = "database"
	// NodeTypePlugin invokes an external tool/plugin.
	NodeTypePlugin = "plugin"
	// NodeTypeKnowledge retrieves passages from a knowledge base.
	NodeTypeKnowledge = "knowledge"
	// NodeTypeCode executes a user script.
	NodeTypeCode = "code"
	// NodeTypeAgent delegates to an autonomous agent.
	NodeTypeAgent = "agent"

	// NodeTypeMessage emits streamed text mid-run. Like the end node it is a
	// transcript sink.
	NodeTypeMessage = "message"

	// NodeTypeIteration owns a nested canvas executed once per element of its
	// array input.
	NodeTypeIteration = "iteration"
	// NodeTypeIterationStart is the synthetic entry node of an iteration body.
	// Its outputs mirror the iteration node's inputs, element-unwrapped.
	NodeTypeIterationStart = "iteration-start"
)

// NodeStatus is the transient per-run execution state of a node.
type NodeStatus string

const (
	NodeIdle      NodeStatus = "idle"
	NodeRunning   NodeStatus = "running"
	NodeSuccess   NodeStatus = "success"
	NodeFailed    NodeStatus = "failed"
	NodeCancelled NodeStatus = "cancelled"
)

// Terminal reports whether the status is a final one for the current run.
func (s NodeStatus) Terminal() bool {
	return s == NodeSuccess || s == NodeFailed || s == NodeCancelled
}

// Node is one unit of computation on a canvas.
//
// The Status and Debug fields are per-run scratch state written by the debug
// session; they are never persisted.
type Node struct {
	ID    string `json:"id" yaml:"id"`
	Type  string `json:"type" yaml:"type"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Params is the free-form parameter bag interpreted by the node's own
	// editor. Typed access goes through mapstructure decoding in validate.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	Inputs  []InputSlot  `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []OutputSlot `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// ParentID is set when the node lives inside an iteration body. Nodes
	// sharing a ParentID form that iteration's nested canvas.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// StartID links an iteration node to its synthetic iteration-start node.
	StartID string `json:"start_id,omitempty" yaml:"start_id,omitempty"`

	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`

	Status NodeStatus   `json:"-" yaml:"-"`
	Debug  *DebugResult `json:"-" yaml:"-"`
}

// IsSink reports whether streamed content for this node belongs on the
// session transcript.
func (n *Node) IsSink() bool {
	return n.Type == NodeTypeEnd || n.Type == NodeTypeMessage
}

// Input returns the input slot with the given id, or nil.
func (n *Node) Input(id string) *InputSlot {
	for i := range n.Inputs {
		if n.Inputs[i].ID == id {
			return &n.Inputs[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the node. Transient debug state is carried
// over; slot slices and the parameter bag are copied.
func (n *Node) Clone() *Node {
	cp := *n
	if n.Params != nil {
		cp.Params = make(map[string]any, len(n.Params))
		for k, v := range n.Params {
			cp.Params[k] = v
		}
	}
	cp.Inputs = make([]InputSlot, len(n.Inputs))
	copy(cp.Inputs, n.Inputs)
	cp.Outputs = make([]OutputSlot, len(n.Outputs))
	for i := range n.Outputs {
		cp.Outputs[i] = n.Outputs[i].Clone()
	}
	if n.Debug != nil {
		d := *n.Debug
		cp.Debug = &d
	}
	return &cp
}

// BindingKind discriminates how an input slot gets its value.
type BindingKind string

const (
	// BindingLiteral means the slot carries an inline value.
	BindingLiteral BindingKind = "literal"
	// BindingReference means the slot reads an upstream node's output.
	BindingReference BindingKind = "ref"
)

// Binding is the value source of an input slot. For reference bindings the
// Label and Type fields cache the referenced output's display name and type
// so editors can render without resolving the graph; the propagation engine
// keeps them fresh.
type Binding struct {
	Kind    BindingKind `json:"kind" yaml:"kind"`
	Literal any         `json:"literal,omitempty" yaml:"literal,omitempty"`

	NodeID   string           `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	OutputID string           `json:"output_id,omitempty" yaml:"output_id,omitempty"`
	Label    string           `json:"label,omitempty" yaml:"label,omitempty"`
	Type     schema.ValueType `json:"ref_type,omitempty" yaml:"ref_type,omitempty"`
}

// Bound reports whether a reference binding currently points at an output.
// Literal bindings are always considered bound.
func (b Binding) Bound() bool {
	if b.Kind != BindingReference {
		return true
	}
	return b.NodeID != "" && b.OutputID != ""
}

// Clear resets a reference binding to the unbound state, dropping the cached
// label and type. Literal bindings are left untouched.
func (b *Binding) Clear() {
	if b.Kind != BindingReference {
		return
	}
	b.NodeID = ""
	b.OutputID = ""
	b.Label = ""
	b.Type = ""
}

// InputSlot is a named, typed input of a node.
//
// NameError and ValueError are transient validation feedback written by the
// checker. They are UI state, not domain state, and are excluded from
// persistence.
type InputSlot struct {
	ID       string           `json:"id" yaml:"id"`
	Name     string           `json:"name" yaml:"name"`
	Type     schema.ValueType `json:"type" yaml:"type"`
	Required bool             `json:"required,omitempty" yaml:"required,omitempty"`
	Binding  Binding          `json:"binding" yaml:"binding"`

	NameError  string `json:"-" yaml:"-"`
	ValueError string `json:"-" yaml:"-"`
}

// OutputSlot is a named, typed output of a node. Object outputs may declare
// nested children, forming a schema tree.
type OutputSlot struct {
	ID       string           `json:"id" yaml:"id"`
	Name     string           `json:"name" yaml:"name"`
	Type     schema.ValueType `json:"type" yaml:"type"`
	Default  any              `json:"default,omitempty" yaml:"default,omitempty"`
	Children []OutputSlot     `json:"children,omitempty" yaml:"children,omitempty"`
}

// Clone returns a deep copy of the slot and its children.
func (o OutputSlot) Clone() OutputSlot {
	cp := o
	if len(o.Children) > 0 {
		cp.Children = make([]OutputSlot, len(o.Children))
		for i := range o.Children {
			cp.Children[i] = o.Children[i].Clone()
		}
	}
	return cp
}

// DebugResult is the frozen outcome of one node execution within a run.
type DebugResult struct {
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	TotalTokens    int            `json:"total_tokens,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Outputs        map[string]any `json:"outputs,omitempty"`
	ErrorOutputs   map[string]any `json:"error_outputs,omitempty"`
	FailReason     string         `json:"fail_reason,omitempty"`
	RawOutput      string         `json:"raw_output,omitempty"`
	AnswerMode     string         `json:"answer_mode,omitempty"`

	// Answer and Reasoning accumulate streamed partial text while the node
	// is running.
	Answer    string `json:"answer,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}
