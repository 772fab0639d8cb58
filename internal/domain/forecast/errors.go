package forecast

import "errors"

var (
	// ErrInvalidPartialDay is returned when a partial day is longer than a
	// full day or holds an unknown category.
	ErrInvalidPartialDay = errors.New("invalid partial day")
	// ErrInvalidCount is returned when the requested number of forecasts is
	// below one or above the allowed maximum.
	ErrInvalidCount = errors.New("invalid forecast count")
)
