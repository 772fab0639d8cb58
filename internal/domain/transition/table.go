package transition

import (
	"fmt"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/blocks"
)

// Table holds, for every origin category, the cumulative probability of
// moving to each destination in compact-code order. Each row is
// non-decreasing and ends at 1.
type Table [activity.Count][activity.Count]float64

// Normalize turns a count grid into a cumulative probability table. Rows with
// no outgoing transitions become uniform over every category.
func Normalize(g *Grid) Table {
	var t Table
	for from := range g {
		total := g.Total(activity.Category(from))
		if total == 0 {
			for to := range t[from] {
				t[from][to] = float64(to+1) / float64(activity.Count)
			}
			continue
		}
		var running uint64
		for to, c := range g[from] {
			running += c
			t[from][to] = float64(running) / float64(total)
		}
	}
	return t
}

// Row returns the cumulative row for from.
func (t *Table) Row(from activity.Category) []float64 {
	return t[from][:]
}

// Probability returns the probability of from -> to.
func (t *Table) Probability(from, to activity.Category) float64 {
	if to == 0 {
		return t[from][0]
	}
	return t[from][to] - t[from][to-1]
}

// Model is a full-day transition model: Tables[i] drives the move from block
// i to block i+1.
type Model struct {
	Layout blocks.Layout
	Counts *Counts
	Tables []Table
}

// NewModel normalizes every grid of c.
func NewModel(c *Counts) *Model {
	tables := make([]Table, len(c.Grids))
	for i := range c.Grids {
		tables[i] = Normalize(&c.Grids[i])
	}
	return &Model{Layout: c.Layout, Counts: c, Tables: tables}
}

// Assemble builds a model from counts and tables normalized elsewhere, for
// callers that normalize grids concurrently.
func Assemble(c *Counts, tables []Table) (*Model, error) {
	if len(tables) != len(c.Grids) {
		return nil, fmt.Errorf("%w: %d tables for %d grids", blocks.ErrShapeMismatch, len(tables), len(c.Grids))
	}
	return &Model{Layout: c.Layout, Counts: c, Tables: tables}, nil
}

// BlocksPerDay returns the number of block positions.
func (m *Model) BlocksPerDay() int { return len(m.Tables) }

// Table returns the table for block position i.
func (m *Model) Table(i int) (*Table, error) {
	if i < 0 || i >= len(m.Tables) {
		return nil, fmt.Errorf("block %d out of range [0, %d)", i, len(m.Tables))
	}
	return &m.Tables[i], nil
}
