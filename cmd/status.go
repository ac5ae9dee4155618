package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/coinassay/coinassay/internal/status"
)

var (
	statusDetailed bool
	statusJSON     bool
)

var statusCmd = &cobra.Command{
	Use:   "status <symbol|id>",
	Short: "Show the analysis status of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
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

		w := cmd.OutOrStdout()
		if statusDetailed {
			ds := status.ResolveDetailed(rec)
			if statusJSON {
				return json.NewEncoder(w).Encode(ds)
			}
			fmt.Fprintf(w, "%s: %s (%d%%)\n", rec.Symbol, ds.Message, ds.Progress)
			fmt.Fprintf(w, "  step %d/%d: %s\n", ds.StepIndex, ds.StepCount, ds.Step)
			if ds.HasError {
				fmt.Fprintf(w, "  error: %s\n", ds.ErrorMessage)
			}
			return nil
		}

		s := status.Resolve(rec)
		if statusJSON {
			return json.NewEncoder(w).Encode(s)
		}
		fmt.Fprintf(w, "%s: %s (%d%%)\n", rec.Symbol, s.Message, s.Progress)
		if !s.IsComplete && !s.HasError {
			fmt.Fprintf(w, "  ~%ds remaining\n", s.EstimatedSecondsRemaining)
		}
		if s.HasError {
			fmt.Fprintf(w, "  error: %s\n", s.ErrorMessage)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusDetailed, "detailed", false, "include the sub-step breakdown")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "emit machine-readable JSON")
	rootCmd.AddCommand(statusCmd)
}
