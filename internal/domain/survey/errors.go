package survey

import (
	"errors"
	"fmt"
)

// Sentinel kinds for survey errors.
var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// TimestampError describes a clock value that could not be parsed.
type TimestampError struct {
	Field  string // "start" or "stop", empty when parsed standalone
	Value  string
	Reason string
}

func (e *TimestampError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s %q: %s", ErrMalformedTimestamp, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: %s %q: %s", ErrMalformedTimestamp, e.Field, e.Value, e.Reason)
}

func (e *TimestampError) Unwrap() error { return ErrMalformedTimestamp }
