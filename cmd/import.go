package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coinassay/coinassay/internal/model"
	"github.com/coinassay/coinassay/internal/store"
	"github.com/coinassay/coinassay/pkg/notion"
)

var importWorkers int

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import queued projects from the Notion intake database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		queue := notion.NewQueue(cfg.Notion.Token, cfg.Notion.QueueDB)

		seeds, err := queue.Pending(ctx)
		if err != nil {
			return eris.Wrap(err, "query intake queue")
		}
		if len(seeds) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "intake queue is empty")
			return nil
		}

		var created, existing atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(importWorkers)
		for _, seed := range seeds {
			g.Go(func() error {
				isNew, err := importSeed(gctx, st, seed)
				if err != nil {
					return eris.Wrapf(err, "import %s", seed.Symbol)
				}
				if isNew {
					created.Add(1)
				} else {
					existing.Add(1)
				}
				return queue.MarkImported(gctx, seed.PageID)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d projects (%d new, %d already known)\n",
			len(seeds), created.Load(), existing.Load())
		zap.L().Info("import finished",
			zap.Int("queued", len(seeds)),
			zap.Int64("created", created.Load()),
		)
		return nil
	},
}

// importSeed creates the project unless the symbol is already registered.
// Re-imports are harmless; the queue page still gets marked either way.
func importSeed(ctx context.Context, st store.Store, seed notion.ProjectSeed) (bool, error) {
	_, err := st.GetProjectBySymbol(ctx, seed.Symbol)
	if err == nil {
		return false, nil
	}
	if !eris.Is(err, store.ErrNotFound) {
		return false, err
	}

	rec := &model.ProjectRecord{
		ID:            uuid.New().String(),
		Symbol:        seed.Symbol,
		Name:          seed.Name,
		WebsiteURL:    seed.WebsiteURL,
		WhitepaperURL: seed.WhitepaperURL,
	}
	if err := st.CreateProject(ctx, rec); err != nil {
		return false, err
	}
	return true, nil
}

func init() {
	importCmd.Flags().IntVar(&importWorkers, "workers", 4, "concurrent import workers")
	rootCmd.AddCommand(importCmd)
}
