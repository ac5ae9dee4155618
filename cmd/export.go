package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/coinassay/coinassay/internal/report"
	"github.com/coinassay/coinassay/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all projects to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		recs, err := st.ListProjects(ctx, store.Filter{})
		if err != nil {
			return eris.Wrap(err, "list projects")
		}

		if err := report.WriteFile(exportOut, recs); err != nil {
			return eris.Wrap(err, "write workbook")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d projects to %s\n", len(recs), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "coinassay.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
