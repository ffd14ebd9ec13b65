package ports

import (
	"context"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

// FlowLoader defines how the workspace retrieves flow definitions.
// This decouples the storage layer (files, memory, remote API) from the
// graph engine.
type FlowLoader interface {
	// LoadFlow retrieves a flow by id.
	// Returns domain.ErrFlowNotFound if it does not exist.
	LoadFlow(ctx context.Context, id string) (*domain.Flow, error)

	// ListFlows returns the ids of all available flows.
	ListFlows(ctx context.Context) ([]string, error)
}
