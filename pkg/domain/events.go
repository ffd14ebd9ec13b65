package domain

import (
	"context"
	"time"
)

// NodeStatusEvent reports a node status transition during a run.
type NodeStatusEvent struct {
	Timestamp time.Time  `json:"timestamp"`
	NodeID    string     `json:"node_id"`
	NodeType  string     `json:"node_type"`
	Status    NodeStatus `json:"status"`
}

// SessionEvent reports a session-level transition.
type SessionEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	FlowID    string        `json:"flow_id"`
	Status    SessionStatus `json:"status"`
	Ended     bool          `json:"ended,omitempty"`
}

// SaveEvent reports an autosave attempt. Err is nil on success.
type SaveEvent struct {
	Timestamp time.Time `json:"timestamp"`
	FlowID    string    `json:"flow_id"`
	Err       error     `json:"-"`
}

// InterruptEvent reports a mid-run pause awaiting user input.
type InterruptEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	FlowID    string          `json:"flow_id"`
	State     *InterruptState `json:"state"`
}

// LifecycleHooks defines callbacks for observing the workspace. All hooks
// are optional and invoked synchronously on the dispatching goroutine, so
// they must be fast and must not call back into the workspace.
type LifecycleHooks struct {
	OnNodeStatus func(context.Context, *NodeStatusEvent)
	OnSession    func(context.Context, *SessionEvent)
	OnSave       func(context.Context, *SaveEvent)
	OnInterrupt  func(context.Context, *InterruptEvent)

	// OnGraphChange reports each structural edit as a diff against the
	// previous snapshot, for clients mirroring the canvas incrementally.
	OnGraphChange func(context.Context, *GraphDiff)

	// OnFocusNode asks the host to recenter its viewport on a node.
	// Suppressed when the session runs in autonomous mode.
	OnFocusNode func(context.Context, string)
}

// MergeHooks combines hook sets so multiple observers (metrics, SSE
// broadcast, tests) can watch one workspace. Hooks fire in argument order.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	merged.OnNodeStatus = func(ctx context.Context, e *NodeStatusEvent) {
		for _, h := range hooks {
			if h.OnNodeStatus != nil {
				h.OnNodeStatus(ctx, e)
			}
		}
	}
	merged.OnSession = func(ctx context.Context, e *SessionEvent) {
		for _, h := range hooks {
			if h.OnSession != nil {
				h.OnSession(ctx, e)
			}
		}
	}
	merged.OnSave = func(ctx context.Context, e *SaveEvent) {
		for _, h := range hooks {
			if h.OnSave != nil {
				h.OnSave(ctx, e)
			}
		}
	}
	merged.OnInterrupt = func(ctx context.Context, e *InterruptEvent) {
		for _, h := range hooks {
			if h.OnInterrupt != nil {
				h.OnInterrupt(ctx, e)
			}
		}
	}
	merged.OnGraphChange = func(ctx context.Context, d *GraphDiff) {
		for _, h := range hooks {
			if h.OnGraphChange != nil {
				h.OnGraphChange(ctx, d)
			}
		}
	}
	merged.OnFocusNode = func(ctx context.Context, nodeID string) {
		for _, h := range hooks {
			if h.OnFocusNode != nil {
				h.OnFocusNode(ctx, nodeID)
			}
		}
	}
	return merged
}
