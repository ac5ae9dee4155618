package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coinassay/coinassay/internal/pipeline"
	"github.com/coinassay/coinassay/internal/store"
)

var (
	batchFilter string
	batchLimit  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Sweep the pipeline across matching projects",
	Long: `Runs the pipeline over every project matching the filter:

  unprocessed   extraction never completed (new, failed, or stuck mid-run)
  stuck         extraction done but no verdict; runs comparison only
  content-down  source previously dead or unreachable; retries the fetch`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		filter, phase, err := sweepPlan(batchFilter)
		if err != nil {
			return err
		}
		if batchLimit > 0 {
			filter.Limit = batchLimit
		} else {
			filter.Limit = cfg.Batch.DefaultLimit
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		orch, err := buildOrchestrator(cfg, st)
		if err != nil {
			return eris.Wrap(err, "build pipeline")
		}

		sweeper := pipeline.NewSweeper(orch, st, pipeline.SweepConfig{
			GroupSize:    cfg.Batch.GroupSize,
			RecordDelay:  time.Duration(cfg.Batch.RecordDelayMS) * time.Millisecond,
			GroupDelay:   time.Duration(cfg.Batch.GroupDelayMS) * time.Millisecond,
			MaxPerMinute: cfg.Batch.MaxPerMinute,
		})

		out, err := sweeper.Sweep(ctx, filter, phase)
		if err != nil {
			return eris.Wrap(err, "sweep")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "swept %d projects: %d succeeded, %d skipped, %d failed\n",
			out.Total, out.Succeeded, out.Skipped, out.Failed)
		zap.L().Info("sweep finished",
			zap.String("filter", batchFilter),
			zap.Int("total", out.Total),
			zap.Int("failed", out.Failed),
		)
		if out.Failed > 0 {
			return eris.Errorf("%d of %d projects failed", out.Failed, out.Total)
		}
		return nil
	},
}

// sweepPlan maps a filter name to the store filter and the phase the sweep
// should run. Stuck records already hold a completed extraction, so they get
// a comparison-only pass.
func sweepPlan(name string) (store.Filter, pipeline.Phase, error) {
	switch name {
	case "unprocessed":
		return store.Filter{Unprocessed: true}, pipeline.PhaseExtraction, nil
	case "stuck":
		return store.Filter{Stuck: true}, pipeline.PhaseComparison, nil
	case "content-down":
		return store.Filter{ContentDown: true}, pipeline.PhaseExtraction, nil
	default:
		return store.Filter{}, "", eris.Errorf("unknown filter %q (want unprocessed, stuck, or content-down)", name)
	}
}

func init() {
	batchCmd.Flags().StringVar(&batchFilter, "filter", "unprocessed", "which projects to sweep: unprocessed, stuck, or content-down")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "cap the number of projects (0 uses batch.default_limit)")
	rootCmd.AddCommand(batchCmd)
}
