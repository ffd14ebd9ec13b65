package ports

import (
	"context"
	"time"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// FlowService is the collaborator REST surface the workspace consumes:
// persisting graphs, the publish-gating compile check, and next-question
// suggestions.
type FlowService interface {
	// SaveFlow persists the flow and returns the server-side update
	// timestamp.
	SaveFlow(ctx context.Context, flow *domain.Flow) (time.Time, error)

	// BuildFlow runs the remote compile/validate round trip. A nil error
	// is the only thing that restores the publishable flag.
	BuildFlow(ctx context.Context, flow *domain.Flow) error

	// Suggestions returns follow-up question candidates given the last
	// answer of a conversation.
	Suggestions(ctx context.Context, flowID, lastAnswer string) ([]string, error)
}

// TranscriptStore persists debug conversation history per flow id.
type TranscriptStore interface {
	// Append adds entries to the end of the flow's transcript.
	Append(ctx context.Context, flowID string, entries ...domain.TranscriptEntry) error

	// Load returns the flow's transcript in order.
	// Returns domain.ErrFlowNotFound if no transcript exists.
	Load(ctx context.Context, flowID string) ([]domain.TranscriptEntry, error)

	// Clear removes the flow's transcript.
	Clear(ctx context.Context, flowID string) error
}
