// Package config defines process configuration and its loading hooks.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/internal/domain/forecast"
)

// Default file names, resolved under DataDir when no explicit path is set.
const (
	DefaultRawFile      = "raw.csv"
	DefaultRemappedFile = "remapped.csv"
	DefaultDayFile      = "days.csv"
	DefaultBlockFile    = "blocks.ablk"
	DefaultDBFile       = "models.db"
)

// Strategy names accepted by Strategy.
const (
	StrategyMarkov = "markov"
	StrategyRandom = "random"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// BlockDurationMinutes is the block length; it must divide 1440.
	BlockDurationMinutes int `koanf:"block_duration_minutes"`

	// DataDir holds the stage files that have no explicit path.
	DataDir      string `koanf:"data_dir"`
	RawPath      string `koanf:"raw_path"`
	RemappedPath string `koanf:"remapped_path"`
	DayPath      string `koanf:"day_path"`
	BlockPath    string `koanf:"block_path"`
	DBPath       string `koanf:"db_path"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of batch workers.
	WorkerCount int `koanf:"worker_count"`

	// Seed seeds the sampler; the same seed replays the same draws.
	Seed int64 `koanf:"seed"`

	// ForecastCount is the default number of trajectories per forecast.
	ForecastCount int `koanf:"forecast_count"`

	// MaxForecastCount caps the trajectories a single request may ask for.
	MaxForecastCount int `koanf:"max_forecast_count"`

	// Strategy selects the forecaster: markov or random.
	Strategy string `koanf:"strategy"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsRefreshSeconds is the period of the system gauge refresh.
	MetricsRefreshSeconds int `koanf:"metrics_refresh_seconds"`

	// MetricsLabels are constant labels added to every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		BlockDurationMinutes:  15,
		DataDir:               "data",
		Addr:                  ":9080",
		WorkerCount:           runtime.NumCPU(),
		Seed:                  1,
		ForecastCount:         100,
		MaxForecastCount:      10000,
		Strategy:              StrategyMarkov,
		MetricsEnabled:        true,
		MetricsRefreshSeconds: 10,
	}
}

// Layout returns the block layout for BlockDurationMinutes.
func (c *Config) Layout() (blocks.Layout, error) {
	return blocks.NewLayout(c.BlockDurationMinutes)
}

// Validate checks every field before any I/O happens.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.Layout(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.WorkerCount < 0 {
		return fmt.Errorf("%w: worker_count %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.MaxForecastCount < 1 || c.MaxForecastCount > forecast.MaxCount {
		return fmt.Errorf("%w: max_forecast_count %d not in [1, %d]", ErrInvalidConfig, c.MaxForecastCount, forecast.MaxCount)
	}
	if c.ForecastCount < 1 || c.ForecastCount > c.MaxForecastCount {
		return fmt.Errorf("%w: forecast_count %d not in [1, %d]", ErrInvalidConfig, c.ForecastCount, c.MaxForecastCount)
	}
	if c.MetricsRefreshSeconds < 1 {
		return fmt.Errorf("%w: metrics_refresh_seconds %d", ErrInvalidConfig, c.MetricsRefreshSeconds)
	}
	switch c.Strategy {
	case StrategyMarkov, StrategyRandom:
	default:
		return fmt.Errorf("%w: strategy %q", ErrInvalidConfig, c.Strategy)
	}
	return nil
}

func (c *Config) resolve(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(c.DataDir, name)
}

// RawFile returns the raw survey CSV path.
func (c *Config) RawFile() string { return c.resolve(c.RawPath, DefaultRawFile) }

// RemappedFile returns the remapped CSV path.
func (c *Config) RemappedFile() string { return c.resolve(c.RemappedPath, DefaultRemappedFile) }

// DayFile returns the day-tagged CSV path.
func (c *Config) DayFile() string { return c.resolve(c.DayPath, DefaultDayFile) }

// BlockFile returns the block file path.
func (c *Config) BlockFile() string { return c.resolve(c.BlockPath, DefaultBlockFile) }

// DBFile returns the model database path.
func (c *Config) DBFile() string { return c.resolve(c.DBPath, DefaultDBFile) }
