package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/coinassay/coinassay/internal/model"
)

var (
	addName       string
	addWebsite    string
	addWhitepaper string
)

var addCmd = &cobra.Command{
	Use:   "add <symbol>",
	Short: "Register a project for analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		if addWebsite == "" && addWhitepaper == "" {
			return eris.New("at least one of --website or --whitepaper is required")
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		rec := &model.ProjectRecord{
			ID:            uuid.New().String(),
			Symbol:        strings.ToLower(strings.TrimSpace(args[0])),
			Name:          addName,
			WebsiteURL:    addWebsite,
			WhitepaperURL: addWhitepaper,
		}
		if err := st.CreateProject(ctx, rec); err != nil {
			return eris.Wrapf(err, "create project %s", rec.Symbol)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", rec.Symbol, rec.ID)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "project display name")
	addCmd.Flags().StringVar(&addWebsite, "website", "", "project website URL")
	addCmd.Flags().StringVar(&addWhitepaper, "whitepaper", "", "whitepaper URL")
	rootCmd.AddCommand(addCmd)
}
