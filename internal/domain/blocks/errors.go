package blocks

import "errors"

// Sentinel kinds for block errors.
var (
	ErrInvalidBlockDuration = errors.New("block duration must divide a day evenly")
	ErrShapeMismatch        = errors.New("block array length does not match layout")
)
