// Package schema provides the slot type system for flow graphs.
//
// Slot types are plain strings (string, integer, number, boolean, object,
// array<elem>) so node documents round-trip through JSON and YAML without
// custom marshalling. Array types unwrap one level via Elem, which is how
// an iteration body exposes the element type of the iterated input.
//
// Basic usage:
//
//	t := schema.Array(schema.TypeString)
//	t.IsArray()        // true
//	t.Elem()           // schema.TypeString
//	t.Validate([]any{"a", "b"})
//
// Schemas map field names to types for validating parameter bags:
//
//	s := schema.Schema{
//	    "query": schema.TypeString,
//	    "limit": schema.TypeInteger,
//	}
//	err := schema.Validate(s, params)
//
// This package has no dependencies beyond the standard library so it can be
// shared by the domain model, the validation engine, and wire adapters.
package schema
