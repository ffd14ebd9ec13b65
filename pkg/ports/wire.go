package ports

// Wire shapes exchanged with the remote execution engine. Field names match
// the engine's JSON exactly; everything else in the module speaks domain
// types and converts at this boundary.

// RunRequest opens a streaming run of a flow.
type RunRequest struct {
	FlowID string `json:"flow_id"`
	// Inputs maps start-node variable names to values.
	Inputs map[string]any `json:"inputs"`
	ChatID string         `json:"chatId"`
	// Regen replays the previous turn instead of appending a new one.
	Regen   bool   `json:"regen,omitempty"`
	Version string `json:"version,omitempty"`
	// PromptDebugger requests per-node debug payloads on the stream.
	PromptDebugger bool `json:"promptDebugger,omitempty"`
}

// ResumeEventType selects how an interrupted run continues.
type ResumeEventType string

const (
	ResumeReply  ResumeEventType = "resume"
	ResumeIgnore ResumeEventType = "ignore"
	ResumeAbort  ResumeEventType = "abort"
)

// ResumeRequest continues or abandons an interrupted run.
type ResumeRequest struct {
	FlowID         string          `json:"flow_id"`
	EventID        string          `json:"eventId"`
	EventType      ResumeEventType `json:"eventType"`
	Content        string          `json:"content,omitempty"`
	Version        string          `json:"version,omitempty"`
	PromptDebugger bool            `json:"promptDebugger,omitempty"`
}

// RunEvent is one incoming streamed protocol event.
type RunEvent struct {
	// Code is 0 on success; non-zero codes are failures
	// (domain.CodeContentAudit is session-fatal).
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	// ID is the session/turn id assigned by the engine.
	ID string `json:"id,omitempty"`

	Choices []Choice `json:"choices,omitempty"`

	WorkflowStep *WorkflowStep `json:"workflow_step,omitempty"`
	EventData    *EventData    `json:"event_data,omitempty"`

	ExecutedTime float64 `json:"executedTime,omitempty"`
	Usage        *Usage  `json:"usage,omitempty"`
}

// Choice carries streamed answer text and the top-level finish signal.
type Choice struct {
	Delta Delta `json:"delta"`
	// FinishReason is nil while streaming, "interrupt" to pause,
	// "stop" to end the session.
	FinishReason *string `json:"finish_reason"`
}

// Delta is an incremental content chunk.
type Delta struct {
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// WorkflowStep wraps a per-node progress report.
type WorkflowStep struct {
	Node *NodeStep `json:"node"`
}

// NodeStep is the per-node payload of a workflow_step event.
type NodeStep struct {
	ID string `json:"id"`
	// FinishReason is nil while the node runs, "succeeded" or "failed"
	// once it finishes.
	FinishReason *string        `json:"finish_reason"`
	ExecutedTime float64        `json:"executed_time,omitempty"`
	Usage        *Usage         `json:"usage,omitempty"`
	Inputs       map[string]any `json:"inputs,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	ErrorOutputs map[string]any `json:"error_outputs,omitempty"`
	Ext          *NodeStepExt   `json:"ext,omitempty"`
}

// Node-level finish reasons.
const (
	NodeFinishSucceeded = "succeeded"
	NodeFinishFailed    = "failed"
)

// NodeStepExt carries auxiliary node output attributes.
type NodeStepExt struct {
	RawOutput  string `json:"raw_output,omitempty"`
	AnswerMode string `json:"answer_mode,omitempty"`
}

// EventData describes an interrupt: the id needed to resume and the offered
// reply options.
type EventData struct {
	EventID   string      `json:"event_id"`
	NeedReply bool        `json:"need_reply,omitempty"`
	Value     *EventValue `json:"value,omitempty"`
}

// EventValue is the interrupt prompt payload.
type EventValue struct {
	Content string       `json:"content,omitempty"`
	Type    string       `json:"type,omitempty"`
	Option  []OptionItem `json:"option,omitempty"`
}

// OptionItem is one selectable interrupt reply.
type OptionItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Usage reports token accounting.
type Usage struct {
	TotalTokens int `json:"total_tokens,omitempty"`
}

// Finish returns a pointer to a finish reason, for composing events.
func Finish(reason string) *string { return &reason }

// TopFinish returns the top-level finish_reason of the event, or "" while
// streaming.
func (e *RunEvent) TopFinish() string {
	for _, c := range e.Choices {
		if c.FinishReason != nil {
			return *c.FinishReason
		}
	}
	return ""
}

// ContentDelta concatenates the content chunks of the event's choices.
func (e *RunEvent) ContentDelta() string {
	var s string
	for _, c := range e.Choices {
		s += c.Delta.Content
	}
	return s
}

// ReasoningDelta concatenates the reasoning chunks of the event's choices.
func (e *RunEvent) ReasoningDelta() string {
	var s string
	for _, c := range e.Choices {
		s += c.Delta.ReasoningContent
	}
	return s
}
