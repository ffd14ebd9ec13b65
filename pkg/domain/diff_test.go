package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasflow/canvasflow/pkg/domain"
)

func TestDiffGraphs(t *testing.T) {
	oldNodes := []*domain.Node{
		{ID: "a", Type: domain.NodeTypeStart, Title: "Start"},
		{ID: "b", Type: domain.NodeTypeModel, Title: "Model"},
	}
	oldEdges := []domain.Edge{{ID: "e1", Source: "a", Target: "b"}}

	newNodes := []*domain.Node{
		{ID: "a", Type: domain.NodeTypeStart, Title: "Renamed"},
		{ID: "c", Type: domain.NodeTypeEnd, Title: "End"},
	}
	newEdges := []domain.Edge{{ID: "e2", Source: "a", Target: "c"}}

	diff := domain.DiffGraphs("flow-1", oldNodes, newNodes, oldEdges, newEdges)
	require.False(t, diff.Empty())

	require.Len(t, diff.AddedNodes, 1)
	assert.Equal(t, "c", diff.AddedNodes[0].ID)
	require.Len(t, diff.ChangedNodes, 1)
	assert.Equal(t, "a", diff.ChangedNodes[0].ID)
	assert.Equal(t, []string{"b"}, diff.RemovedNodes)

	require.Len(t, diff.AddedEdges, 1)
	assert.Equal(t, "e2", diff.AddedEdges[0].ID)
	assert.Equal(t, []string{"e1"}, diff.RemovedEdges)
}

func TestDiffGraphsIncludesTransientState(t *testing.T) {
	before := []*domain.Node{{ID: "a", Type: domain.NodeTypeModel}}
	after := []*domain.Node{{ID: "a", Type: domain.NodeTypeModel, Status: domain.NodeRunning}}

	diff := domain.DiffGraphs("flow-1", before, after, nil, nil)
	require.Len(t, diff.ChangedNodes, 1)
}

func TestDiffGraphsEmpty(t *testing.T) {
	nodes := []*domain.Node{{ID: "a", Type: domain.NodeTypeModel}}
	edges := []domain.Edge{{ID: "e1", Source: "a", Target: "a"}}

	assert.True(t, domain.DiffGraphs("flow-1", nodes, nodes, edges, edges).Empty())

	var nilDiff *domain.GraphDiff
	assert.True(t, nilDiff.Empty())

	full := domain.DiffGraphs("flow-1", nil, nodes, nil, edges)
	assert.Len(t, full.AddedNodes, 1)
	assert.Len(t, full.AddedEdges, 1)
}
