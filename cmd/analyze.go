package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coinassay/coinassay/internal/pipeline"
)

var (
	analyzeForce    bool
	analyzeURL      string
	analyzeTextFile string
	analyzePhase    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <symbol|id>",
	Short: "Run the analysis pipeline for one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		rec, err := resolveProject(ctx, st, args[0])
		if err != nil {
			return eris.Wrapf(err, "resolve project %s", args[0])
		}

		orch, err := buildOrchestrator(cfg, st)
		if err != nil {
			return eris.Wrap(err, "build pipeline")
		}

		req := pipeline.Request{
			Phase:     pipeline.Phase(analyzePhase),
			ProjectID: rec.ID,
			SourceURL: analyzeURL,
			Force:     analyzeForce,
		}
		if analyzeTextFile != "" {
			data, err := os.ReadFile(analyzeTextFile)
			if err != nil {
				return eris.Wrapf(err, "read %s", analyzeTextFile)
			}
			req.RawText = string(data)
		}

		out, err := orch.Run(ctx, req)
		if err != nil {
			return eris.Wrapf(err, "analyze %s", rec.Symbol)
		}

		printOutcome(cmd, rec.Symbol, out)
		if !out.Success {
			return eris.Errorf("analysis failed: %s", out.FailureReason)
		}
		zap.L().Info("analysis finished",
			zap.String("project", rec.Symbol),
			zap.Bool("skipped", out.Skipped),
		)
		return nil
	},
}

func printOutcome(cmd *cobra.Command, symbol string, out pipeline.Outcome) {
	w := cmd.OutOrStdout()
	switch {
	case out.Skipped:
		fmt.Fprintf(w, "%s: %s already completed (use --force to re-run)\n", symbol, out.Phase)
	case !out.Success:
		fmt.Fprintf(w, "%s: %s failed: %s\n", symbol, out.Phase, out.FailureReason)
	default:
		fmt.Fprintf(w, "%s: %s completed, %d signals\n", symbol, out.Phase, out.SignalsCount)
	}
	if out.Tier != "" {
		fmt.Fprintf(w, "%s: tier %s, score %.1f\n", symbol, out.Tier, out.Score)
	}
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "re-run a comparison that already completed (extraction always re-runs)")
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "override the project's content source URL")
	analyzeCmd.Flags().StringVar(&analyzeTextFile, "file", "", "analyze a local text file instead of fetching")
	analyzeCmd.Flags().StringVar(&analyzePhase, "phase", string(pipeline.PhaseExtraction), "phase to run: extraction or comparison")
	rootCmd.AddCommand(analyzeCmd)
}
