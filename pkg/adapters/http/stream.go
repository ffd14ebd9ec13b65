package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// StreamManager fans workspace events out to active SSE connections,
// keyed by flow id.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(flowID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[flowID]; !ok {
		sm.subscribers[flowID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[flowID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[flowID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, flowID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(flowID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[flowID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client).
			slog.Warn("SSE client buffer full, dropping message", "flow", flowID)
		}
	}
}

// envelope tags broadcast payloads so clients can route them.
type envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

func (sm *StreamManager) broadcastJSON(flowID, kind string, payload any) {
	data, err := json.Marshal(envelope{Kind: kind, Payload: payload})
	if err != nil {
		slog.Warn("event marshal failed", "kind", kind, "err", err)
		return
	}
	sm.Broadcast(flowID, string(data))
}

// BroadcastHooks returns lifecycle hooks that publish every workspace
// event to the manager's subscribers. Pass the result to the workspace via
// WithLifecycleHooks.
func BroadcastHooks(sm *StreamManager, flowID string) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStatus: func(ctx context.Context, e *domain.NodeStatusEvent) {
			sm.broadcastJSON(flowID, "node_status", e)
		},
		OnSession: func(ctx context.Context, e *domain.SessionEvent) {
			sm.broadcastJSON(flowID, "session", e)
		},
		OnSave: func(ctx context.Context, e *domain.SaveEvent) {
			sm.broadcastJSON(flowID, "save", map[string]any{
				"flow_id": e.FlowID,
				"ok":      e.Err == nil,
			})
		},
		OnInterrupt: func(ctx context.Context, e *domain.InterruptEvent) {
			sm.broadcastJSON(flowID, "interrupt", e)
		},
		OnGraphChange: func(ctx context.Context, d *domain.GraphDiff) {
			sm.broadcastJSON(flowID, "graph", d)
		},
		OnFocusNode: func(ctx context.Context, nodeID string) {
			sm.broadcastJSON(flowID, "focus", map[string]string{"node_id": nodeID})
		},
	}
}
