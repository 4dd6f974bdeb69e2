package scoring

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns absent from the submitted table.
// Missing lists every absent column in RequiredColumns order.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// ParseError reports a cell that could not be coerced to its expected type.
// Row is the zero-based data row index in the submitted table.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: invalid %s %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
