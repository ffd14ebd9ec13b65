package schema

// Schema is a map of field names to their expected types.
// Example: {"query": TypeString, "limit": TypeInteger, "tags": Array(TypeString)}
type Schema map[string]ValueType

// Validate checks if data conforms to the schema, collecting every failure
// rather than stopping at the first.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error
	for field, typ := range schema {
		value, exists := data[field]
		if !exists {
			errs = append(errs, &ValidationError{
				Key:    field,
				Reason: "required",
			})
			continue
		}
		if err := typ.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    field,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
