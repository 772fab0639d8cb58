// Package repository persists transition models.
package repository

import (
	"context"
	"time"

	"github.com/okian/dayflow/internal/domain/transition"
)

// Summary describes a stored model without its counts.
type Summary struct {
	ID           string
	CreatedAt    time.Time
	BlocksPerDay int
	BlockMinutes int
	DayCount     uint64
}

// Store provides read/write access to built transition models.
type Store interface {
	// Save persists m and returns its new id.
	Save(ctx context.Context, m *transition.Model) (string, error)
	// Load returns the model stored under id, or ErrNotFound.
	Load(ctx context.Context, id string) (*transition.Model, error)
	// Latest returns the most recently saved model, or ErrNotFound.
	Latest(ctx context.Context) (*transition.Model, Summary, error)
	// List returns every stored model, newest first.
	List(ctx context.Context) ([]Summary, error)
}

func summarize(id string, at time.Time, m *transition.Model) Summary {
	return Summary{
		ID:           id,
		CreatedAt:    at,
		BlocksPerDay: m.BlocksPerDay(),
		BlockMinutes: m.Layout.Minutes(),
		DayCount:     m.Counts.Days,
	}
}
