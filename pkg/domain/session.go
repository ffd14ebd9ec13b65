package domain

import "time"

// SessionStatus is the lifecycle phase of a debug session.
type SessionStatus string

const (
	// SessionIdle means no run is in flight. Both the initial state and the
	// state after a run ends.
	SessionIdle SessionStatus = "idle"
	// SessionRunning means a stream is open and events are being consumed.
	SessionRunning SessionStatus = "running"
	// SessionInterrupted means the remote run is paused awaiting user input.
	SessionInterrupted SessionStatus = "interrupted"
)

// EntryRole tags a transcript entry.
type EntryRole string

const (
	// RoleAsk is a user turn (the run inputs or an interrupt reply).
	RoleAsk EntryRole = "ask"
	// RoleAnswer is the engine's streamed reply for one turn.
	RoleAnswer EntryRole = "answer"
	// RoleDivider marks an aborted turn boundary.
	RoleDivider EntryRole = "divider"
)

// TranscriptEntry is one ordered item of a debug session's history.
type TranscriptEntry struct {
	Role      EntryRole      `json:"role"`
	Content   string         `json:"content,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	At        time.Time      `json:"at"`
}

// ReplyOption is one pre-baked answer offered by an interrupting node.
type ReplyOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// InterruptState captures a paused run: the event id the resume endpoint
// needs and whatever reply options the interrupting node offered.
type InterruptState struct {
	EventID     string        `json:"event_id"`
	NodeID      string        `json:"node_id,omitempty"`
	NeedReply   bool          `json:"need_reply"`
	Content     string        `json:"content,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Options     []ReplyOption `json:"options,omitempty"`
}
