// Package transition builds per-block Markov transition models from block
// arrays and samples next activities from them.
package transition

import (
	"errors"
	"fmt"
	"io"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/pkg/metrics"
)

// Grid counts transitions between categories: Grid[from][to].
type Grid [activity.Count][activity.Count]uint64

// Add records one transition.
func (g *Grid) Add(from, to activity.Category) {
	g[from][to]++
}

// Count returns the number of from -> to transitions.
func (g *Grid) Count(from, to activity.Category) uint64 {
	return g[from][to]
}

// Total returns the number of transitions leaving from.
func (g *Grid) Total(from activity.Category) uint64 {
	var n uint64
	for _, c := range g[from] {
		n += c
	}
	return n
}

// Empty reports whether no transition was recorded.
func (g *Grid) Empty() bool {
	for from := range g {
		for _, c := range g[from] {
			if c != 0 {
				return false
			}
		}
	}
	return true
}

// Counts holds one grid per block position. Grid i counts transitions from
// block i to block i+1, so the last grid is allocated but never populated.
type Counts struct {
	Layout blocks.Layout
	Grids  []Grid
	// Days is the number of block arrays folded in.
	Days uint64
	// Transitions is the number of pairs counted across all grids.
	Transitions uint64
}

// Builder accumulates transition counts one day at a time.
type Builder struct {
	counts Counts
}

// NewBuilder allocates one grid per block of the layout.
func NewBuilder(l blocks.Layout) *Builder {
	return &Builder{counts: Counts{
		Layout: l,
		Grids:  make([]Grid, l.BlocksPerDay()),
	}}
}

// AddDay counts the consecutive-block transitions of one day. Sentinel
// blocks are counted like any other category.
func (b *Builder) AddDay(day blocks.Array) error {
	if len(day) != len(b.counts.Grids) {
		return fmt.Errorf("%w: got %d blocks, want %d", blocks.ErrShapeMismatch, len(day), len(b.counts.Grids))
	}
	for i := 1; i < len(day); i++ {
		if !day[i-1].Valid() || !day[i].Valid() {
			return fmt.Errorf("block %d: invalid category %d -> %d", i, day[i-1], day[i])
		}
		b.counts.Grids[i-1].Add(day[i-1], day[i])
	}
	b.counts.Days++
	if n := len(day) - 1; n > 0 {
		b.counts.Transitions += uint64(n)
		metrics.RecordTransitionsCounted(n)
	}
	return nil
}

// Counts returns the accumulated counts. The builder must not be used after.
func (b *Builder) Counts() *Counts {
	c := b.counts
	return &c
}

// DaySource yields block arrays until io.EOF. *blockfile.Reader satisfies it.
type DaySource interface {
	Next() (blocks.Array, error)
}

// Build drains src into a fresh builder.
func Build(l blocks.Layout, src DaySource) (*Counts, error) {
	b := NewBuilder(l)
	for day := uint64(0); ; day++ {
		arr, err := src.Next()
		if errors.Is(err, io.EOF) {
			return b.Counts(), nil
		}
		if err != nil {
			return nil, err
		}
		if err := b.AddDay(arr); err != nil {
			return nil, fmt.Errorf("day %d: %w", day, err)
		}
	}
}

// SliceSource adapts an in-memory slice of days to DaySource.
type SliceSource struct {
	days []blocks.Array
	next int
}

// NewSliceSource returns a DaySource over days.
func NewSliceSource(days []blocks.Array) *SliceSource {
	return &SliceSource{days: days}
}

// Next implements DaySource.
func (s *SliceSource) Next() (blocks.Array, error) {
	if s.next >= len(s.days) {
		return nil, io.EOF
	}
	s.next++
	return s.days[s.next-1], nil
}
