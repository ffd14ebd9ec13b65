package persist_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasflow/canvasflow/pkg/adapters/memory"
	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
	"github.com/canvasflow/canvasflow/pkg/persist"
	"github.com/canvasflow/canvasflow/pkg/ports"
)

func newCoordinator(t *testing.T, opts ...persist.Option) (*persist.Coordinator, *memory.FlowService, *graph.Store) {
	t.Helper()
	store := graph.NewStore("flow-1")
	store.Load(&domain.Flow{ID: "flow-1", Nodes: []*domain.Node{
		{ID: "n1", Type: domain.NodeTypeStart},
	}})
	service := memory.NewFlowService()
	c := persist.New(store, service, opts...)
	t.Cleanup(c.Close)
	return c, service, store
}

func TestFlushSavesCurrentGraph(t *testing.T) {
	c, service, store := newCoordinator(t)

	require.NoError(t, store.SetNode("n1", func(n *domain.Node) { n.Title = "Entry" }))
	require.NoError(t, c.Flush(t.Context()))

	saved, err := service.LoadFlow(t.Context(), "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Entry", saved.Nodes[0].Title)
	assert.False(t, c.LastSaved().IsZero())
}

func TestAutoSaveCoalesces(t *testing.T) {
	c, service, _ := newCoordinator(t, persist.WithDelay(30*time.Millisecond))

	for i := 0; i < 5; i++ {
		c.AutoSave()
	}
	require.Eventually(t, func() bool {
		return service.Saves() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// No trailing extra save after the window closes.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, service.Saves())
}

func TestAutoSaveReschedulesWithLatestGraph(t *testing.T) {
	c, service, store := newCoordinator(t, persist.WithDelay(25*time.Millisecond))

	c.AutoSave()
	require.NoError(t, store.SetNode("n1", func(n *domain.Node) { n.Title = "Late edit" }))
	c.AutoSave()

	require.Eventually(t, func() bool {
		return service.Saves() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	saved, err := service.LoadFlow(t.Context(), "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Late edit", saved.Nodes[0].Title)
}

func TestCloseCancelsPendingSave(t *testing.T) {
	c, service, _ := newCoordinator(t, persist.WithDelay(25*time.Millisecond))

	c.AutoSave()
	c.Close()
	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, service.Saves())

	// AutoSave after Close is a no-op.
	c.AutoSave()
	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, service.Saves())
}

func TestPublishableLifecycle(t *testing.T) {
	c, service, _ := newCoordinator(t)

	// A freshly opened flow is unpublishable until a build passes.
	assert.False(t, c.Publishable())

	require.NoError(t, c.Build(t.Context()))
	assert.True(t, c.Publishable())

	c.MarkUnpublishable()
	assert.False(t, c.Publishable())

	service.SetBuildError(assert.AnError)
	assert.ErrorIs(t, c.Build(t.Context()), assert.AnError)
	assert.False(t, c.Publishable())
}

func TestBuildRestoresPublishableAfterEdit(t *testing.T) {
	c, _, store := newCoordinator(t)

	require.NoError(t, c.Build(t.Context()))
	require.True(t, c.Publishable())

	require.NoError(t, store.SetNode("n1", func(n *domain.Node) { n.Title = "edited" }))
	c.MarkUnpublishable()
	require.False(t, c.Publishable())

	// The next clean round trip flips the gate back on.
	require.NoError(t, c.Build(t.Context()))
	assert.True(t, c.Publishable())
}

func TestSaveFailureReportsThroughHook(t *testing.T) {
	var mu sync.Mutex
	var events []*domain.SaveEvent
	hooks := domain.LifecycleHooks{
		OnSave: func(_ context.Context, e *domain.SaveEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		},
	}

	store := graph.NewStore("flow-1")
	store.Load(&domain.Flow{ID: "flow-1"})
	service := &failingService{err: assert.AnError}
	c := persist.New(store, service, persist.WithHooks(hooks))
	t.Cleanup(c.Close)

	require.ErrorIs(t, c.Flush(t.Context()), assert.AnError)
	assert.True(t, c.LastSaved().IsZero())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "flow-1", events[0].FlowID)
	assert.ErrorIs(t, events[0].Err, assert.AnError)
}

// blockingService parks BuildFlow until its context is cancelled, so tests
// can mutate mid-build.
type blockingService struct {
	memory.FlowService
	building chan struct{}
}

func (s *blockingService) BuildFlow(ctx context.Context, flow *domain.Flow) error {
	close(s.building)
	<-ctx.Done()
	return ctx.Err()
}

type failingService struct {
	err error
}

func (s *failingService) SaveFlow(context.Context, *domain.Flow) (time.Time, error) {
	return time.Time{}, s.err
}
func (s *failingService) BuildFlow(context.Context, *domain.Flow) error { return s.err }
func (s *failingService) Suggestions(context.Context, string, string) ([]string, error) {
	return nil, s.err
}

var _ ports.FlowService = (*failingService)(nil)

func TestMutationCancelsInFlightBuild(t *testing.T) {
	store := graph.NewStore("flow-1")
	store.Load(&domain.Flow{ID: "flow-1"})
	service := &blockingService{building: make(chan struct{})}
	c := persist.New(store, service)
	t.Cleanup(c.Close)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Build(context.Background()) }()

	<-service.building
	c.MarkUnpublishable()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("build never returned after cancellation")
	}
	assert.False(t, c.Publishable())
}
