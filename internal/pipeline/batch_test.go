package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinassay/coinassay/internal/fetcher"
	"github.com/coinassay/coinassay/internal/model"
	"github.com/coinassay/coinassay/internal/store"
)

func TestSweepUnprocessed(t *testing.T) {
	st := newMemStore()
	ff := newFakeFetcher()
	for _, id := range []string{"a", "b", "c"} {
		seedRecord(t, st, id, "https://"+id+".example.org")
		ff.results["https://"+id+".example.org"] = fetcher.Result{Text: credibleText, Status: model.ContentOK}
	}
	// One record already done; the filter excludes it.
	seedRecord(t, st, "done", "https://done.example.org")
	require.NoError(t, st.SaveExtraction(context.Background(), "done", &model.Extraction{}))

	o := newTestOrchestrator(t, st, ff, nil, Options{ChainPhase2: true})
	sw := NewSweeper(o, st, SweepConfig{GroupSize: 2})

	out, err := sw.Sweep(context.Background(), store.Filter{Unprocessed: true}, PhaseExtraction)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 3, out.Succeeded)
	assert.Zero(t, out.Failed)
	assert.Zero(t, out.Skipped)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	st := newMemStore()
	ff := newFakeFetcher()
	seedRecord(t, st, "ok", "https://ok.example.org")
	ff.results["https://ok.example.org"] = fetcher.Result{Text: credibleText, Status: model.ContentOK}
	seedRecord(t, st, "broken", "https://broken.example.org")
	ff.results["https://broken.example.org"] = fetcher.Result{Status: model.ContentFetchError}
	ff.errs["https://broken.example.org"] = errors.New("http: status 500")

	o := newTestOrchestrator(t, st, ff, nil, Options{})
	sw := NewSweeper(o, st, SweepConfig{})

	out, err := sw.Sweep(context.Background(), store.Filter{Unprocessed: true}, PhaseExtraction)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)

	okRec, _ := st.GetProject(context.Background(), "ok")
	assert.Equal(t, model.PhaseCompleted, okRec.ExtractionStatus)
	brokenRec, _ := st.GetProject(context.Background(), "broken")
	assert.Equal(t, model.PhaseFailed, brokenRec.ExtractionStatus)
}

func TestSweepStuckRunsComparisonOnly(t *testing.T) {
	st := newMemStore()
	seedRecord(t, st, "stuck", "https://stuck.example.org")
	ex := extractFrom(credibleText)
	require.NoError(t, st.SaveExtraction(context.Background(), "stuck", &ex))

	ff := newFakeFetcher()
	o := newTestOrchestrator(t, st, ff, nil, Options{})
	sw := NewSweeper(o, st, SweepConfig{})

	out, err := sw.Sweep(context.Background(), store.Filter{Stuck: true}, PhaseComparison)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, 1, out.Succeeded)
	assert.Empty(t, ff.calls, "comparison sweeps must not refetch")

	rec, _ := st.GetProject(context.Background(), "stuck")
	assert.Equal(t, model.PhaseCompleted, rec.ComparisonStatus)
}

func TestSweepContentDownRefetches(t *testing.T) {
	st := newMemStore()
	seedRecord(t, st, "revive", "https://revive.example.org")
	// Previously dead, but extraction had completed from stale content.
	require.NoError(t, st.SaveExtraction(context.Background(), "revive", &model.Extraction{}))
	require.NoError(t, st.SetContentStatus(context.Background(), "revive", model.ContentDead))

	ff := newFakeFetcher()
	ff.results["https://revive.example.org"] = fetcher.Result{Text: credibleText, Status: model.ContentOK}

	o := newTestOrchestrator(t, st, ff, nil, Options{})
	sw := NewSweeper(o, st, SweepConfig{})

	out, err := sw.Sweep(context.Background(), store.Filter{ContentDown: true}, PhaseExtraction)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	assert.Len(t, ff.calls, 1, "revival sweep must refetch despite completed extraction")

	rec, _ := st.GetProject(context.Background(), "revive")
	assert.Equal(t, model.ContentOK, rec.ContentStatus)
}

func TestSweepSkipCounting(t *testing.T) {
	st := newMemStore()
	seedRecord(t, st, "fresh", "https://fresh.example.org")
	// Verdict landed between listing and processing; the comparison pass
	// skips it and reports the stored result.
	ex := extractFrom(credibleText)
	require.NoError(t, st.SaveExtraction(context.Background(), "fresh", &ex))
	require.NoError(t, st.SaveAnalysis(context.Background(), "fresh", model.AnalysisResult{
		Tier: model.TierSolid, Score: 75, Reasoning: "prior run",
	}))

	o := newTestOrchestrator(t, st, newFakeFetcher(), nil, Options{})
	sw := NewSweeper(o, st, SweepConfig{})

	// Unfiltered list still returns the record.
	out, err := sw.Sweep(context.Background(), store.Filter{}, PhaseComparison)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Skipped)
	assert.Zero(t, out.Failed)
}

func TestSweepListFailure(t *testing.T) {
	st := newMemStore()
	st.failOn["ListProjects"] = errors.New("db gone")

	o := newTestOrchestrator(t, st, newFakeFetcher(), nil, Options{})
	sw := NewSweeper(o, st, SweepConfig{})
	_, err := sw.Sweep(context.Background(), store.Filter{Unprocessed: true}, PhaseExtraction)
	assert.Error(t, err)
}

func TestSweepHonorsCancellation(t *testing.T) {
	st := newMemStore()
	for _, id := range []string{"a", "b"} {
		seedRecord(t, st, id, "https://"+id+".example.org")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(t, st, newFakeFetcher(), nil, Options{})
	sw := NewSweeper(o, st, SweepConfig{})
	_, err := sw.Sweep(ctx, store.Filter{Unprocessed: true}, PhaseExtraction)
	assert.Error(t, err)
}
