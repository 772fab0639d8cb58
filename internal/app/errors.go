package service

import "errors"

// Sentinel error kinds for the service layer.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrUnknownStrategy = errors.New("unknown forecast strategy")
	ErrBlockOutOfRange = errors.New("block out of range")
	ErrInvalidCategory = errors.New("invalid category")
)
