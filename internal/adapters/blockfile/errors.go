package blockfile

import (
	"errors"
	"fmt"
)

// Sentinel kinds for block file errors.
var (
	ErrTruncatedFile = errors.New("truncated block file")
	ErrInvalidHeader = errors.New("invalid block file header")
	ErrCorrupt       = errors.New("corrupt block file")
)

// TruncatedError reports a block file that ends before its header says it
// should. Day is -1 when the header itself is short.
type TruncatedError struct {
	Path     string
	Day      int64
	Expected int64
	Actual   int64
}

func (e *TruncatedError) Error() string {
	where := "header"
	if e.Day >= 0 {
		where = fmt.Sprintf("day %d", e.Day)
	}
	path := e.Path
	if path == "" {
		path = "<stream>"
	}
	return fmt.Sprintf("%s: %s: %s: expected %d bytes, got %d", ErrTruncatedFile, path, where, e.Expected, e.Actual)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncatedFile }
