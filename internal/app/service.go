// Package service wires the pipeline stages and serves a built transition
// model to the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/dayflow/internal/adapters/repository"
	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/forecast"
	"github.com/okian/dayflow/internal/domain/transition"
	"github.com/okian/dayflow/pkg/logger"
)

// Service serves forecasts and samples from one transition model.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	model   *transition.Model
	summary repository.Summary
	sampler *transition.Sampler
	markov  *forecast.MarkovForecaster
	random  *forecast.RandomForecaster

	// Configuration
	seed          int64
	strategy      string
	forecastCount int
	maxCount      int
	modelID       string

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the model store the service loads from.
func WithStore(s repository.Store) Option {
	return func(svc *Service) {
		svc.store = s
	}
}

// WithModel serves m directly instead of loading from the store.
func WithModel(m *transition.Model) Option {
	return func(s *Service) {
		s.model = m
	}
}

// WithModelID selects a stored model; the latest is used otherwise.
func WithModelID(id string) Option {
	return func(s *Service) {
		s.modelID = id
	}
}

// WithSeed seeds the sampler.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithStrategy sets the default forecast strategy.
func WithStrategy(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.strategy = name
		}
	}
}

// WithForecastCount sets the default number of trajectories per forecast.
func WithForecastCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.forecastCount = n
		}
	}
}

// WithMaxForecastCount caps the trajectories one Forecast call may request.
// Values outside [1, forecast.MaxCount] are ignored.
func WithMaxForecastCount(n int) Option {
	return func(s *Service) {
		if n > 0 && n <= forecast.MaxCount {
			s.maxCount = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		seed:          1,
		strategy:      forecast.StrategyMarkov,
		forecastCount: 100,
		maxCount:      10000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the model, when none was given, and builds the forecasters.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	switch s.strategy {
	case forecast.StrategyMarkov, forecast.StrategyRandom:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, s.strategy)
	}

	if s.model == nil {
		if s.store == nil {
			return fmt.Errorf("%w: no model and no store", ErrNotStarted)
		}
		if err := s.load(ctx); err != nil {
			return err
		}
	} else {
		s.summary = repository.Summary{
			ID:           s.modelID,
			BlocksPerDay: s.model.BlocksPerDay(),
			BlockMinutes: s.model.Layout.Minutes(),
			DayCount:     s.model.Counts.Days,
		}
	}

	s.sampler = transition.NewSampler(s.seed)
	s.markov = forecast.NewMarkovForecaster(s.model, s.sampler)
	s.random = forecast.NewRandomForecaster(s.model.BlocksPerDay(), s.sampler)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.String("model_id", s.summary.ID),
		logger.Int("blocks_per_day", s.summary.BlocksPerDay),
		logger.Uint64("days", s.summary.DayCount),
		logger.String("strategy", s.strategy),
		logger.Int64("seed", s.seed),
	)
	return nil
}

func (s *Service) load(ctx context.Context) error {
	if s.modelID == "" {
		m, sum, err := s.store.Latest(ctx)
		if err != nil {
			return fmt.Errorf("load latest model: %w", err)
		}
		s.model, s.summary = m, sum
		return nil
	}
	m, err := s.store.Load(ctx, s.modelID)
	if err != nil {
		return fmt.Errorf("load model %s: %w", s.modelID, err)
	}
	s.model = m
	s.summary = repository.Summary{
		ID:           s.modelID,
		BlocksPerDay: m.BlocksPerDay(),
		BlockMinutes: m.Layout.Minutes(),
		DayCount:     m.Counts.Days,
	}
	return nil
}

// Stop marks the service stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "service stopped")
}

// Categories returns the categories a caller may choose from.
func (s *Service) Categories() []activity.Category {
	return slices.Collect(activity.Selectable())
}

// forecaster must be called with s.mu held.
func (s *Service) forecaster(strategy string) (forecast.Forecaster, error) {
	switch strategy {
	case forecast.StrategyMarkov:
		return s.markov, nil
	case forecast.StrategyRandom:
		return s.random, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

// Forecast completes partial with the given strategy. An empty strategy or a
// count below one falls back to the configured defaults.
func (s *Service) Forecast(ctx context.Context, strategy string, partial []activity.Category, count int) ([]forecast.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	if strategy == "" {
		strategy = s.strategy
	}
	if count < 1 {
		count = s.forecastCount
	}
	if count > s.maxCount {
		return nil, fmt.Errorf("%w: %d above limit %d", forecast.ErrInvalidCount, count, s.maxCount)
	}
	f, err := s.forecaster(strategy)
	if err != nil {
		return nil, err
	}
	return f.Forecast(ctx, partial, count)
}

// Sample draws the category following from at block position block.
func (s *Service) Sample(_ context.Context, block int, from activity.Category) (activity.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0, ErrNotStarted
	}
	if !from.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCategory, from)
	}
	t, err := s.model.Table(block)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBlockOutOfRange, err)
	}
	return s.sampler.Sample(t, from), nil
}

// Probabilities returns the next-category distribution at block for from.
func (s *Service) Probabilities(_ context.Context, block int, from activity.Category) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	if !from.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, from)
	}
	t, err := s.model.Table(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlockOutOfRange, err)
	}
	out := make([]float64, activity.Count)
	for _, to := range activity.All() {
		out[to] = t.Probability(from, to)
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"strategy":      s.strategy,
		"forecastCount": s.forecastCount,
		"maxCount":      s.maxCount,
		"seed":          s.seed,
	}
	if s.started {
		stats["modelId"] = s.summary.ID
		stats["blocksPerDay"] = s.summary.BlocksPerDay
		stats["blockMinutes"] = s.summary.BlockMinutes
		stats["days"] = s.summary.DayCount
		stats["transitions"] = s.model.Counts.Transitions
	}
	return stats
}
