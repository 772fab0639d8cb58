package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/dayflow/internal/adapters/tabular"
	"github.com/okian/dayflow/pkg/logger"
)

func newRemapCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remap",
		Short: "Remap raw activity codes to compact categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := flagOr(cmd, "in", c.cfg.RawFile())
			out := flagOr(cmd, "out", c.cfg.RemappedFile())
			p, err := c.pipeline(nil)
			if err != nil {
				return err
			}
			stats, err := p.RemapFile(cmd.Context(), in, out)
			if err != nil {
				return err
			}
			c.log.Info(cmd.Context(), "remap complete",
				logger.String("in", in),
				logger.String("out", out),
				logger.Int("read", stats.Read),
				logger.Int("remapped", stats.Remapped),
				logger.Int("dropped", stats.Dropped),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "read %d, remapped %d, dropped %d -> %s\n",
				stats.Read, stats.Remapped, stats.Dropped, out)
			return nil
		},
	}
	cmd.Flags().String("in", "", "raw survey CSV (default <data-dir>/raw.csv)")
	cmd.Flags().String("out", "", "remapped CSV (default <data-dir>/remapped.csv)")
	return cmd
}

func newDayIDCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dayid",
		Short: "Assign a dense day id to every (serial, year) pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := flagOr(cmd, "in", c.cfg.RemappedFile())
			out := flagOr(cmd, "out", c.cfg.DayFile())
			p, err := c.pipeline(nil)
			if err != nil {
				return err
			}
			n, err := p.DayIDFile(cmd.Context(), in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d days -> %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().String("in", "", "remapped CSV (default <data-dir>/remapped.csv)")
	cmd.Flags().String("out", "", "day-tagged CSV (default <data-dir>/days.csv)")
	return cmd
}

func newBlocksCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Discretize day-tagged records into a block file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := flagOr(cmd, "in", c.cfg.DayFile())
			out := flagOr(cmd, "out", c.cfg.BlockFile())
			p, err := c.pipeline(nil)
			if err != nil {
				return err
			}
			n, err := p.BlocksFile(cmd.Context(), in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d days of %d blocks -> %s\n",
				n, p.Layout().BlocksPerDay(), out)
			return nil
		},
	}
	cmd.Flags().String("in", "", "day-tagged CSV (default <data-dir>/days.csv)")
	cmd.Flags().String("out", "", "block file (default <data-dir>/blocks.ablk)")
	return cmd
}

func newMatrixCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Build transition tables from a block file and store them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := flagOr(cmd, "in", c.cfg.BlockFile())
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := c.pipeline(store)
			if err != nil {
				return err
			}
			m, id, err := p.MatrixFile(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model %s: %d days, %d transitions -> %s\n",
				id, m.Counts.Days, m.Counts.Transitions, store.Path())
			return nil
		},
	}
	cmd.Flags().String("in", "", "block file (default <data-dir>/blocks.ablk)")
	return cmd
}

func newProcessCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run raw CSV to block file to stored model in one pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			in := flagOr(cmd, "in", c.cfg.RawFile())
			blockPath := flagOr(cmd, "blocks", c.cfg.BlockFile())

			raws, err := tabular.ReadFile(in, tabular.ReadRaw)
			if err != nil {
				return err
			}
			store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := c.pipeline(store)
			if err != nil {
				return err
			}
			res, err := p.Run(ctx, raws, blockPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows, %d dropped, %d days -> model %s\n",
				res.RunID, res.Stats.Read, res.Stats.Dropped, res.Days, res.ModelID)
			return nil
		},
	}
	cmd.Flags().String("in", "", "raw survey CSV (default <data-dir>/raw.csv)")
	cmd.Flags().String("blocks", "", "block file to write (default <data-dir>/blocks.ablk)")
	return cmd
}
