// Command dayflow turns time-use survey extracts into a Markov model of the
// day and serves forecasts from it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/dayflow/internal/adapters/repository"
	"github.com/okian/dayflow/internal/adapters/worker"
	service "github.com/okian/dayflow/internal/app"
	"github.com/okian/dayflow/internal/config"
	"github.com/okian/dayflow/pkg/logger"
	"github.com/okian/dayflow/pkg/metrics"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand once the root pre-run has
// loaded the configuration.
type cli struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "dayflow",
		Short: "Markov models of the daily activity cycle",
		Long: `dayflow remaps time-use survey extracts, discretizes each respondent day
into fixed-length blocks, builds one transition table per block and
forecasts the rest of a partially observed day.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file (overrides DAYFLOW_CONFIG)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("data-dir", "", "directory holding stage files without an explicit path")
	pf.Int("block-minutes", 0, "block duration in minutes; must divide 1440")
	pf.Int("workers", 0, "batch worker count")
	pf.String("db", "", "SQLite model database path")

	root.AddCommand(
		newRemapCmd(c),
		newDayIDCmd(c),
		newBlocksCmd(c),
		newMatrixCmd(c),
		newProcessCmd(c),
		newServeCmd(c),
		newForecastCmd(c),
		newCategoriesCmd(c),
		newModelsCmd(c),
	)
	return root
}

// setup loads config, applies flag overrides and initializes logging.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv(config.EnvFile)
	}
	cfg, err := config.LoadFile(cmd.Context(), path)
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("block-minutes") {
		cfg.BlockDurationMinutes, _ = flags.GetInt("block-minutes")
	}
	if flags.Changed("workers") {
		cfg.WorkerCount, _ = flags.GetInt("workers")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.InitWith(logger.Options{
		Writer: cmd.ErrOrStderr(),
		Format: logger.Format(cfg.LogFormat),
	}); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	c.log = logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		c.log.Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Configure(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(time.Duration(cfg.MetricsRefreshSeconds)*time.Second),
		metrics.WithCustomLabels(cfg.MetricsLabels),
	)
	c.cfg = cfg
	return nil
}

// pipeline builds a Pipeline over the configured layout. The store is
// optional.
func (c *cli) pipeline(store repository.Store) (*service.Pipeline, error) {
	l, err := c.cfg.Layout()
	if err != nil {
		return nil, err
	}
	opts := []service.PipelineOption{
		service.WithPool(worker.NewPool(c.cfg.WorkerCount,
			worker.WithName("pipeline"),
			worker.WithLogger(c.log.Named("worker")),
		)),
		service.WithPipelineLogger(c.log.Named("pipeline")),
	}
	if store != nil {
		opts = append(opts, service.WithPipelineStore(store))
	}
	return service.NewPipeline(l, opts...), nil
}

// openStore opens the configured SQLite model database.
func (c *cli) openStore(ctx context.Context) (*repository.SQLiteStore, error) {
	return repository.NewSQLiteStore(ctx, c.cfg.DBFile(),
		repository.WithLogger(c.log.Named("repository")))
}

// flagOr returns the named string flag when set and def otherwise.
func flagOr(cmd *cobra.Command, name, def string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return def
}
