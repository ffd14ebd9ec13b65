package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// ValueType names the declared type of a slot value. Array types are spelled
// "array<elem>" so the whole type system round-trips through plain strings
// in JSON and YAML documents.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeObject  ValueType = "object"
)

// Array returns the array type with the given element type.
func Array(elem ValueType) ValueType {
	return ValueType("array<" + string(elem) + ">")
}

// IsArray reports whether t is an array type.
func (t ValueType) IsArray() bool {
	return strings.HasPrefix(string(t), "array<") && strings.HasSuffix(string(t), ">")
}

// Elem returns the element type of an array type. For non-array types it
// returns the type unchanged; iteration bodies use this to unwrap exactly
// one level (array<T> becomes T on the iteration-start node).
func (t ValueType) Elem() ValueType {
	if !t.IsArray() {
		return t
	}
	return ValueType(strings.TrimSuffix(strings.TrimPrefix(string(t), "array<"), ">"))
}

// Parse converts a type string into a ValueType, rejecting unknown names.
func Parse(s string) (ValueType, error) {
	t := ValueType(s)
	if t.IsArray() {
		if _, err := Parse(string(t.Elem())); err != nil {
			return "", err
		}
		return t, nil
	}
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported type: %s", s)
	}
}

// Validate checks whether value conforms to the type. Numeric checking is
// lenient the way JSON decoding demands: whole floats pass as integers and
// integers pass as numbers.
func (t ValueType) Validate(value any) error {
	switch {
	case t.IsArray():
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fmt.Errorf("expected %s, got %T", t, value)
		}
		elem := t.Elem()
		for i := 0; i < rv.Len(); i++ {
			if err := elem.Validate(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	case t == TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		return nil
	case t == TypeInteger:
		switch v := value.(type) {
		case int, int8, int16, int32, int64:
			return nil
		case float64:
			if v == float64(int64(v)) {
				return nil
			}
			return fmt.Errorf("expected integer, got float (not a whole number)")
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case t == TypeNumber:
		switch value.(type) {
		case float32, float64, int, int8, int16, int32, int64:
			return nil
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case t == TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
		return nil
	case t == TypeObject:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Map && rv.Kind() != reflect.Struct {
			return fmt.Errorf("expected object, got %T", value)
		}
		return nil
	default:
		return fmt.Errorf("unsupported type: %s", t)
	}
}
