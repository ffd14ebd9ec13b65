package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvasflow/canvasflow/pkg/schema"
)

func TestParse(t *testing.T) {
	for _, s := range []string{"string", "integer", "number", "boolean", "object"} {
		got, err := schema.Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, schema.ValueType(s), got)
	}

	arr, err := schema.Parse("array<string>")
	require.NoError(t, err)
	assert.True(t, arr.IsArray())
	assert.Equal(t, schema.TypeString, arr.Elem())

	nested, err := schema.Parse("array<array<integer>>")
	require.NoError(t, err)
	assert.Equal(t, schema.Array(schema.TypeInteger), nested.Elem())

	_, err = schema.Parse("banana")
	assert.Error(t, err)
	_, err = schema.Parse("array<banana>")
	assert.Error(t, err)
}

func TestElemUnwrapsOneLevel(t *testing.T) {
	assert.Equal(t, schema.TypeString, schema.Array(schema.TypeString).Elem())
	assert.Equal(t, schema.Array(schema.TypeString), schema.Array(schema.Array(schema.TypeString)).Elem())
	// Non-array types pass through untouched.
	assert.Equal(t, schema.TypeObject, schema.TypeObject.Elem())
}

func TestValidateScalars(t *testing.T) {
	cases := []struct {
		typ   schema.ValueType
		value any
		ok    bool
	}{
		{schema.TypeString, "hi", true},
		{schema.TypeString, 1, false},
		{schema.TypeBoolean, true, true},
		{schema.TypeBoolean, "true", false},
		{schema.TypeInteger, 3, true},
		// JSON decoding hands integers over as float64.
		{schema.TypeInteger, float64(3), true},
		{schema.TypeInteger, 3.5, false},
		{schema.TypeNumber, 3.5, true},
		{schema.TypeNumber, 3, true},
		{schema.TypeNumber, "3", false},
		{schema.TypeObject, map[string]any{"a": 1}, true},
		{schema.TypeObject, "not an object", false},
	}
	for _, tc := range cases {
		err := tc.typ.Validate(tc.value)
		if tc.ok {
			assert.NoError(t, err, "%s / %v", tc.typ, tc.value)
		} else {
			assert.Error(t, err, "%s / %v", tc.typ, tc.value)
		}
	}
}

func TestValidateArrays(t *testing.T) {
	typ := schema.Array(schema.TypeString)
	assert.NoError(t, typ.Validate([]any{"a", "b"}))
	assert.NoError(t, typ.Validate([]string{"a"}))
	assert.Error(t, typ.Validate("not a slice"))

	err := typ.Validate([]any{"a", 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")
}

func TestSchemaValidateCollectsAllFailures(t *testing.T) {
	s := schema.Schema{
		"query": schema.TypeString,
		"limit": schema.TypeInteger,
		"tags":  schema.Array(schema.TypeString),
	}

	assert.NoError(t, schema.Validate(s, map[string]any{
		"query": "hello",
		"limit": 10,
		"tags":  []string{"a"},
	}))

	err := schema.Validate(s, map[string]any{
		"limit": "ten",
	})
	require.Error(t, err)
	errs := schema.ValidationErrors(err)
	// Missing query, wrong limit, missing tags.
	assert.Len(t, errs, 3)

	assert.NoError(t, schema.Validate(nil, nil))
	assert.Nil(t, schema.ValidationErrors(assert.AnError))
}
