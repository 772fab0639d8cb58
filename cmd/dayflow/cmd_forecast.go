package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/dayflow/internal/adapters/repository"
	service "github.com/okian/dayflow/internal/app"
	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/forecast"
)

// addServiceFlags registers the flags consumed by (*cli).service.
func addServiceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("model", "", "stored model id (default latest)")
	f.Int64("seed", 0, "sampler seed (default from config)")
	f.Int("count", 0, "trajectories per forecast (default from config)")
	f.String("strategy", "", "forecaster: markov or random (default from config)")
}

// service builds a Service over store using config values overridden by
// the command's service flags.
func (c *cli) service(cmd *cobra.Command, store repository.Store) (*service.Service, error) {
	f := cmd.Flags()
	if f.Changed("seed") {
		c.cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("count") {
		c.cfg.ForecastCount, _ = f.GetInt("count")
	}
	if f.Changed("strategy") {
		c.cfg.Strategy, _ = f.GetString("strategy")
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	modelID, _ := f.GetString("model")
	return service.New(
		service.WithStore(store),
		service.WithModelID(modelID),
		service.WithSeed(c.cfg.Seed),
		service.WithStrategy(c.cfg.Strategy),
		service.WithForecastCount(c.cfg.ForecastCount),
		service.WithMaxForecastCount(c.cfg.MaxForecastCount),
		service.WithLogger(c.log.Named("service")),
	), nil
}

func newForecastCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Complete a partial day from a stored model",
		Example: `  dayflow forecast --partial 0,0,0,0 --count 50
  dayflow forecast --strategy random --count 3 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			raw, _ := cmd.Flags().GetUintSlice("partial")
			partial := make([]activity.Category, len(raw))
			for i, code := range raw {
				if code > uint(activity.MaxCode) {
					return fmt.Errorf("%w: partial[%d] = %d", service.ErrInvalidCategory, i, code)
				}
				partial[i] = activity.Category(code)
			}

			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := c.service(cmd, store)
			if err != nil {
				return err
			}
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			out, err := svc.Forecast(ctx, "", partial, 0)
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(forecastsJSON(out))
			}
			printForecasts(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().UintSlice("partial", nil, "observed category codes from the start of the day")
	cmd.Flags().Bool("json", false, "output as JSON")
	addServiceFlags(cmd)
	return cmd
}

// forecastJSON is the --json shape; categories are emitted as plain codes.
type forecastJSON struct {
	Initial    []int   `json:"initial"`
	Prediction []int   `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

func codes(cs []activity.Category) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = int(c.Code())
	}
	return out
}

func forecastsJSON(fs []forecast.Forecast) []forecastJSON {
	out := make([]forecastJSON, len(fs))
	for i, f := range fs {
		out[i] = forecastJSON{Initial: codes(f.Initial), Prediction: codes(f.Prediction), Confidence: f.Confidence}
	}
	return out
}

func printForecasts(w io.Writer, out []forecast.Forecast) {
	for i, f := range out {
		labels := make([]string, len(f.Prediction))
		for j, cat := range f.Prediction {
			labels[j] = cat.Label()
		}
		fmt.Fprintf(w, "#%d confidence %.3f after %d observed: %s\n",
			i+1, f.Confidence, len(f.Initial), strings.Join(labels, " > "))
	}
}

func newCategoriesCmd(_ *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the selectable activity categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tLABEL")
			for cat := range activity.Selectable() {
				fmt.Fprintf(tw, "%d\t%s\n", cat.Code(), cat.Label())
			}
			return tw.Flush()
		},
	}
}

func newModelsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List stored models, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tBLOCKS\tMINUTES\tDAYS")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n",
					s.ID, s.CreatedAt.Format(time.RFC3339), s.BlocksPerDay, s.BlockMinutes, s.DayCount)
			}
			return tw.Flush()
		},
	}
}
