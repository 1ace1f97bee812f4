package convert

import (
	"fmt"

	"rowcore/internal/schema"
)

// ConversionError reports a value of one field that could not be converted.
// It is row-scoped: callers route it and continue with the next row.
type ConversionError struct {
	Field string
	Value any
	From  schema.Type
	To    schema.Type
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert field %q: %s %v to %s: %v", e.Field, e.From, quoteValue(e.Value), e.To, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func quoteValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
