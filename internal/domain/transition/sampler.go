package transition

import (
	"math/rand"
	"sync"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/pkg/metrics"
)

// Pick returns the first destination whose cumulative probability reaches r,
// skipping destinations with no mass. fallback is true when rounding left the
// row short of r; the sentinel is returned in that case.
func Pick(t *Table, from activity.Category, r float64) (to activity.Category, fallback bool) {
	row := &t[from]
	prev := 0.0
	for j, cum := range row {
		if cum >= r && cum > prev {
			return activity.Category(j), false
		}
		prev = cum
	}
	return activity.Sentinel, true
}

// Sampler draws next categories from tables using one seeded source. It is
// safe for concurrent use; draws are serialized so a fixed seed reproduces
// the same sequence for the same call order.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a sampler seeded with seed.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // reproducible sampling, not security
}

// Float64 draws a uniform value in [0, 1).
func (s *Sampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Intn draws a uniform value in [0, n).
func (s *Sampler) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Sample draws the category that follows from under t.
func (s *Sampler) Sample(t *Table, from activity.Category) activity.Category {
	to, fallback := Pick(t, from, s.Float64())
	metrics.RecordSampleDrawn()
	if fallback {
		metrics.RecordSampleFallback()
	}
	return to
}
