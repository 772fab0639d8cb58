package repository

import (
	"time"

	"github.com/okian/dayflow/pkg/logger"
)

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}
