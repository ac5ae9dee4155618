package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/coinassay/coinassay/internal/benchmark"
	"github.com/coinassay/coinassay/internal/config"
	"github.com/coinassay/coinassay/internal/fetcher"
	"github.com/coinassay/coinassay/internal/model"
	"github.com/coinassay/coinassay/internal/pipeline"
	"github.com/coinassay/coinassay/internal/resilience"
	"github.com/coinassay/coinassay/internal/store"
	"github.com/coinassay/coinassay/pkg/claude"
)

// openStore connects to the configured backend and applies migrations.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// buildOrchestrator wires the fetch transports, the optional AI analyst, and
// the benchmark set into a pipeline orchestrator.
func buildOrchestrator(cfg *config.Config, st store.Store) (*pipeline.Orchestrator, error) {
	fetch := fetcher.NewRouter(fetcher.Options{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           cfg.Fetch.Timeout(),
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		MaxBodyBytes:      cfg.Fetch.MaxBodyKB * 1024,
		Retry:             resilience.RetryConfig{MaxAttempts: cfg.Fetch.MaxRetries},
	})

	var analyst claude.Analyst
	if cfg.Anthropic.Enabled() {
		analyst = claude.NewAnalyst(claude.NewClient(cfg.Anthropic.Key), claude.AnalystConfig{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Timeout:     time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
			Temperature: cfg.Anthropic.Temperature,
		})
	}

	set, err := benchmark.LoadOrDefaults(cfg.Scoring.BenchmarksPath)
	if err != nil {
		return nil, err
	}

	return pipeline.New(st, fetch, analyst, set, pipeline.Options{
		ChainPhase2:    cfg.Pipeline.ChainPhase2,
		AnnotateWithAI: cfg.Pipeline.AnnotateWithAI,
	}), nil
}

// resolveProject looks a project up by ID or symbol. Symbols are short and
// never contain dashes, so UUID-shaped keys go through the ID lookup first.
func resolveProject(ctx context.Context, st store.Store, key string) (*model.ProjectRecord, error) {
	if strings.Contains(key, "-") {
		if rec, err := st.GetProject(ctx, key); err == nil {
			return rec, nil
		} else if !eris.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return st.GetProjectBySymbol(ctx, strings.ToLower(key))
}
