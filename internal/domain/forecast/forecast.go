// Package forecast completes partially observed days.
package forecast

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/internal/domain/transition"
	"github.com/okian/dayflow/pkg/metrics"
)

// Strategy names.
const (
	StrategyMarkov = "markov"
	StrategyRandom = "random"
)

// MaxCount bounds the trajectories drawn by one Forecast call.
const MaxCount = 1 << 20

// Forecast is one completion of a partial day.
type Forecast struct {
	// Initial is the observed prefix.
	Initial []activity.Category
	// Prediction covers the remaining blocks of the day.
	Prediction []activity.Category
	// Confidence is in [0, 1]; the forecasts of one call sum to 1.
	Confidence float64
}

// Day returns the full block sequence.
func (f Forecast) Day() []activity.Category {
	return slices.Concat(f.Initial, f.Prediction)
}

// Forecaster predicts the remainder of a day.
type Forecaster interface {
	Forecast(ctx context.Context, partial []activity.Category, count int) ([]Forecast, error)
}

// Source draws uniform random numbers. *transition.Sampler satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

func validate(partial []activity.Category, blocksPerDay, count int) error {
	if count < 1 || count > MaxCount {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidCount, count, MaxCount)
	}
	if len(partial) > blocksPerDay {
		return fmt.Errorf("%w: %d blocks observed, day has %d", ErrInvalidPartialDay, len(partial), blocksPerDay)
	}
	for i, c := range partial {
		if !c.Valid() {
			return fmt.Errorf("%w: block %d holds code %d", ErrInvalidPartialDay, i, c)
		}
	}
	return nil
}

// selectable draws a uniform non-sentinel category.
func selectable(src Source) activity.Category {
	return activity.Category(src.Intn(activity.Count - 1))
}

// RandomForecaster fills the rest of the day with uniform non-sentinel
// categories. It is the baseline the Markov strategy is compared against.
type RandomForecaster struct {
	blocksPerDay int
	src          Source
}

// NewRandomForecaster returns a random forecaster for days of blocksPerDay.
func NewRandomForecaster(blocksPerDay int, src Source) *RandomForecaster {
	return &RandomForecaster{blocksPerDay: blocksPerDay, src: src}
}

// Forecast implements Forecaster. Each forecast has confidence 1/count.
func (f *RandomForecaster) Forecast(ctx context.Context, partial []activity.Category, count int) ([]Forecast, error) {
	if err := validate(partial, f.blocksPerDay, count); err != nil {
		return nil, err
	}
	out := make([]Forecast, 0, count)
	for range count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred := make([]activity.Category, f.blocksPerDay-len(partial))
		for i := range pred {
			pred[i] = selectable(f.src)
		}
		out = append(out, Forecast{
			Initial:    slices.Clone(partial),
			Prediction: pred,
			Confidence: 1 / float64(count),
		})
	}
	metrics.RecordForecastsProduced(StrategyRandom, len(out))
	return out, nil
}

// MarkovForecaster walks the per-block transition tables of a model from the
// last observed block.
type MarkovForecaster struct {
	model   *transition.Model
	sampler *transition.Sampler
}

// NewMarkovForecaster returns a forecaster over m drawing from s.
func NewMarkovForecaster(m *transition.Model, s *transition.Sampler) *MarkovForecaster {
	return &MarkovForecaster{model: m, sampler: s}
}

// Forecast implements Forecaster. Identical trajectories are merged and
// ranked by how often they were drawn.
func (f *MarkovForecaster) Forecast(ctx context.Context, partial []activity.Category, count int) ([]Forecast, error) {
	n := f.model.BlocksPerDay()
	if err := validate(partial, n, count); err != nil {
		return nil, err
	}

	seen := make(map[string]int, count)
	var out []Forecast
	for range count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred := f.walk(partial, n)
		key := string(blocks.Array(pred).Bytes())
		if i, ok := seen[key]; ok {
			out[i].Confidence++
			continue
		}
		seen[key] = len(out)
		out = append(out, Forecast{Initial: slices.Clone(partial), Prediction: pred, Confidence: 1})
	}
	for i := range out {
		out[i].Confidence /= float64(count)
	}
	slices.SortStableFunc(out, func(a, b Forecast) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	metrics.RecordForecastsProduced(StrategyMarkov, len(out))
	return out, nil
}

func (f *MarkovForecaster) walk(partial []activity.Category, n int) []activity.Category {
	pred := make([]activity.Category, 0, n-len(partial))
	var current activity.Category
	start := len(partial)
	if start == 0 {
		current = selectable(f.sampler)
		pred = append(pred, current)
		start = 1
	} else {
		current = partial[start-1]
	}
	for i := start; i < n; i++ {
		current = f.sampler.Sample(&f.model.Tables[i-1], current)
		pred = append(pred, current)
	}
	return pred
}

