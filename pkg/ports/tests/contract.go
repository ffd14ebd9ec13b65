package tests

import (
	"context"
	"testing"

	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

// FlowLoaderContractTest is a reusable test suite that verifies an adapter
// complies with ports.FlowLoader.
func FlowLoaderContractTest(t *testing.T, loader ports.FlowLoader, want map[string]*domain.Flow) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadFlow_Success", func(t *testing.T) {
		for id, expected := range want {
			flow, err := loader.LoadFlow(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading flow %s: %v", id, err)
			}
			if flow.ID != expected.ID {
				t.Errorf("flow id mismatch. got %q, want %q", flow.ID, expected.ID)
			}
			if len(flow.Nodes) != len(expected.Nodes) {
				t.Errorf("flow %s: expected %d nodes, got %d", id, len(expected.Nodes), len(flow.Nodes))
			}
			if len(flow.Edges) != len(expected.Edges) {
				t.Errorf("flow %s: expected %d edges, got %d", id, len(expected.Edges), len(flow.Edges))
			}
		}
	})

	t.Run("LoadFlow_NotFound", func(t *testing.T) {
		_, err := loader.LoadFlow(ctx, "non-existent-flow")
		if err == nil {
			t.Error("expected error for non-existent flow, got nil")
		}
	})

	t.Run("ListFlows", func(t *testing.T) {
		ids, err := loader.ListFlows(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing flows: %v", err)
		}

		if len(ids) != len(want) {
			t.Errorf("expected %d flows, got %d", len(want), len(ids))
		}

		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for id := range want {
			if !lookup[id] {
				t.Errorf("flow %s missing from list", id)
			}
		}
	})
}
