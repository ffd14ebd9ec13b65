package validate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasflow/canvasflow/pkg/domain"
	"github.com/canvasflow/canvasflow/pkg/graph"
	"github.com/canvasflow/canvasflow/pkg/schema"
	"github.com/canvasflow/canvasflow/pkg/validate"
)

func newChecker(t *testing.T, nodes []*domain.Node, opts ...validate.Option) (*validate.Checker, *graph.Store) {
	t.Helper()
	store := graph.NewStore("flow-1")
	store.Load(&domain.Flow{ID: "flow-1", Nodes: nodes})
	c := validate.NewChecker(store, opts...)
	t.Cleanup(c.Close)
	return c, store
}

func modelNode(id string, params map[string]any) *domain.Node {
	if params == nil {
		params = map[string]any{"model": "gpt-4", "prompt": "hi"}
	}
	return &domain.Node{ID: id, Type: domain.NodeTypeModel, Title: id, Params: params}
}

func TestCheckNodeValid(t *testing.T) {
	c, store := newChecker(t, []*domain.Node{modelNode("m1", nil)})
	assert.True(t, c.CheckNode("m1"))
	for _, in := range store.Node("m1").Inputs {
		assert.Empty(t, in.NameError)
		assert.Empty(t, in.ValueError)
	}
}

func TestCheckNodeUnknownID(t *testing.T) {
	c, _ := newChecker(t, nil)
	assert.False(t, c.CheckNode("ghost"))
}

func TestCheckNodeEmptyInputName(t *testing.T) {
	n := modelNode("m1", nil)
	n.Inputs = []domain.InputSlot{{ID: "in-1", Name: "  ", Type: schema.TypeString}}
	c, store := newChecker(t, []*domain.Node{n})

	assert.False(t, c.CheckNode("m1"))
	assert.Equal(t, "name required", store.Node("m1").Inputs[0].NameError)
}

func TestCheckNodeDuplicateInputNames(t *testing.T) {
	n := modelNode("m1", nil)
	n.Inputs = []domain.InputSlot{
		{ID: "in-1", Name: "query", Type: schema.TypeString},
		{ID: "in-2", Name: "query", Type: schema.TypeString},
	}
	c, store := newChecker(t, []*domain.Node{n})

	assert.False(t, c.CheckNode("m1"))
	// Both occurrences are annotated, not just the second.
	got := store.Node("m1")
	assert.Equal(t, "duplicate name", got.Inputs[0].NameError)
	assert.Equal(t, "duplicate name", got.Inputs[1].NameError)
}

func TestCheckNodeRequiredValue(t *testing.T) {
	n := modelNode("m1", nil)
	n.Inputs = []domain.InputSlot{
		{ID: "in-1", Name: "query", Type: schema.TypeString, Required: true,
			Binding: domain.Binding{Kind: domain.BindingReference}},
		{ID: "in-2", Name: "blank", Type: schema.TypeString, Required: true,
			Binding: domain.Binding{Kind: domain.BindingLiteral, Literal: "   "}},
		{ID: "in-3", Name: "filled", Type: schema.TypeString, Required: true,
			Binding: domain.Binding{Kind: domain.BindingLiteral, Literal: "value"}},
		{ID: "in-4", Name: "zero", Type: schema.TypeInteger, Required: true,
			Binding: domain.Binding{Kind: domain.BindingLiteral, Literal: 0}},
	}
	c, store := newChecker(t, []*domain.Node{n})

	assert.False(t, c.CheckNode("m1"))
	got := store.Node("m1")
	assert.Equal(t, "value required", got.Inputs[0].ValueError)
	assert.Equal(t, "value required", got.Inputs[1].ValueError)
	assert.Empty(t, got.Inputs[2].ValueError)
	// A zero literal is still a value.
	assert.Empty(t, got.Inputs[3].ValueError)
}

func TestCheckNodeAnnotationsClearOnRecheck(t *testing.T) {
	n := modelNode("m1", nil)
	n.Inputs = []domain.InputSlot{{ID: "in-1", Name: "", Type: schema.TypeString}}
	c, store := newChecker(t, []*domain.Node{n})

	require.False(t, c.CheckNode("m1"))
	require.NotEmpty(t, store.Node("m1").Inputs[0].NameError)

	require.NoError(t, store.SetNode("m1", func(n *domain.Node) {
		n.Inputs[0].Name = "query"
	}))
	assert.True(t, c.CheckNode("m1"))
	assert.Empty(t, store.Node("m1").Inputs[0].NameError)
}

func TestCheckNodeOutputTypes(t *testing.T) {
	n := modelNode("m1", nil)
	n.Outputs = []domain.OutputSlot{{ID: "out-1", Name: "text", Type: "banana"}}
	c, _ := newChecker(t, []*domain.Node{n})
	assert.False(t, c.CheckNode("m1"))
}

func TestBuiltinParamChecks(t *testing.T) {
	cases := []struct {
		name string
		node *domain.Node
		pass bool
	}{
		{"model ok", modelNode("n", nil), true},
		{"model missing", modelNode("n", map[string]any{"prompt": "hi"}), false},
		{"model temperature", modelNode("n", map[string]any{"model": "m", "temperature": 3.5}), false},
		{"code ok", &domain.Node{ID: "n", Type: domain.NodeTypeCode,
			Params: map[string]any{"language": "python", "script": "print(1)"}}, true},
		{"code empty script", &domain.Node{ID: "n", Type: domain.NodeTypeCode,
			Params: map[string]any{"language": "python"}}, false},
		{"database ok", &domain.Node{ID: "n", Type: domain.NodeTypeDatabase,
			Params: map[string]any{"datasource_id": "ds-1", "query": "select 1"}}, true},
		{"database no source", &domain.Node{ID: "n", Type: domain.NodeTypeDatabase,
			Params: map[string]any{"query": "select 1"}}, false},
		{"knowledge ok", &domain.Node{ID: "n", Type: domain.NodeTypeKnowledge,
			Params: map[string]any{"base_ids": []string{"kb-1"}, "top_k": 3}}, true},
		{"knowledge empty", &domain.Node{ID: "n", Type: domain.NodeTypeKnowledge,
			Params: map[string]any{"base_ids": []string{}}}, false},
		{"plugin ok", &domain.Node{ID: "n", Type: domain.NodeTypePlugin,
			Params: map[string]any{"plugin_id": "p-1", "action": "send"}}, true},
		{"plugin missing", &domain.Node{ID: "n", Type: domain.NodeTypePlugin, Params: map[string]any{}}, false},
		{"untyped node passes", &domain.Node{ID: "n", Type: domain.NodeTypeMessage}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newChecker(t, []*domain.Node{tc.node})
			assert.Equal(t, tc.pass, c.CheckNode("n"))
		})
	}
}

func TestIterationInputsMustBeArrays(t *testing.T) {
	iter := &domain.Node{ID: "iter", Type: domain.NodeTypeIteration,
		Inputs: []domain.InputSlot{{ID: "in-1", Name: "items", Type: schema.TypeString,
			Binding: domain.Binding{Kind: domain.BindingLiteral, Literal: "x"}}}}
	c, _ := newChecker(t, []*domain.Node{iter})
	assert.False(t, c.CheckNode("iter"))

	ok := &domain.Node{ID: "iter2", Type: domain.NodeTypeIteration,
		Inputs: []domain.InputSlot{{ID: "in-1", Name: "items", Type: schema.Array(schema.TypeString),
			Binding: domain.Binding{Kind: domain.BindingLiteral, Literal: []string{"x"}}}}}
	c2, _ := newChecker(t, []*domain.Node{ok})
	assert.True(t, c2.CheckNode("iter2"))
}

func TestRegisterOverridesBuiltin(t *testing.T) {
	c, _ := newChecker(t, []*domain.Node{modelNode("m1", map[string]any{})})
	require.False(t, c.CheckNode("m1"))

	c.Register(domain.NodeTypeModel, func(*domain.Node) error { return nil })
	assert.True(t, c.CheckNode("m1"))
}

func TestDelayCheckNodeDebounces(t *testing.T) {
	done := make(chan struct{}, 8)
	c, _ := newChecker(t,
		[]*domain.Node{modelNode("m1", map[string]any{})},
		validate.WithDelay(25*time.Millisecond),
		validate.WithAfterDelayHook(func() { done <- struct{}{} }),
	)

	// Rapid calls collapse into a single deferred pass.
	for i := 0; i < 5; i++ {
		c.DelayCheckNode("m1")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred check never ran")
	}

	select {
	case <-done:
		t.Fatal("deferred check ran more than once")
	case <-time.After(75 * time.Millisecond):
	}
}

func TestCloseCancelsPendingChecks(t *testing.T) {
	fired := make(chan struct{}, 1)
	c, _ := newChecker(t,
		[]*domain.Node{modelNode("m1", nil)},
		validate.WithDelay(30*time.Millisecond),
		validate.WithAfterDelayHook(func() { fired <- struct{}{} }),
	)

	c.DelayCheckNode("m1")
	c.Close()

	select {
	case <-fired:
		t.Fatal("check ran after Close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCheckAll(t *testing.T) {
	c, _ := newChecker(t, []*domain.Node{
		modelNode("good", nil),
		modelNode("bad-1", map[string]any{}),
		modelNode("bad-2", map[string]any{}),
	})

	err := c.CheckAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 invalid nodes")
	assert.Contains(t, err.Error(), "bad-1")
	assert.Contains(t, err.Error(), "bad-2")
	assert.NotContains(t, err.Error(), "good")

	valid, _ := newChecker(t, []*domain.Node{modelNode("good", nil)})
	assert.NoError(t, valid.CheckAll())
}
