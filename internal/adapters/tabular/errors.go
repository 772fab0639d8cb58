package tabular

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned when a required header column is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrInvalidValue is returned when a cell cannot be parsed.
	ErrInvalidValue = errors.New("invalid value")
)

// RowError locates a failure inside a CSV input. Line is 1-based and counts
// the header.
type RowError struct {
	Path   string
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	where := e.Path
	if where == "" {
		where = "<input>"
	}
	if e.Column != "" {
		return fmt.Sprintf("%s:%d: column %s: %v", where, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s:%d: %v", where, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
