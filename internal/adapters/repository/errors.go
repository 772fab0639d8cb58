package repository

import "errors"

// Sentinel kinds for model store errors.
var (
	ErrNotFound     = errors.New("model not found")
	ErrInvalidModel = errors.New("invalid stored model")
)
