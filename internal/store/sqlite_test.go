package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinassay/coinassay/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProject(t *testing.T, s *SQLiteStore, symbol string) *model.ProjectRecord {
	t.Helper()
	rec := &model.ProjectRecord{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Name:       symbol + " Protocol",
		WebsiteURL: "https://" + symbol + ".example.org",
	}
	require.NoError(t, s.CreateProject(context.Background(), rec))
	return rec
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	s := newTestSQLite(t)
	rec := seedProject(t, s, "abc")

	got, err := s.GetProject(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Symbol, got.Symbol)
	assert.Equal(t, model.PhaseAbsent, got.ExtractionStatus)
	assert.Equal(t, model.PhaseAbsent, got.ComparisonStatus)
	assert.Nil(t, got.Score)
	assert.Nil(t, got.Extraction)

	bySym, err := s.GetProjectBySymbol(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, bySym.ID)

	_, err = s.GetProject(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_PhaseTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	rec := seedProject(t, s, "xyz")

	require.NoError(t, s.SetExtractionStatus(ctx, rec.ID, model.PhaseProcessing, ""))

	ex := &model.Extraction{
		Signals: []model.Signal{{
			Description: "uses zero-knowledge proof systems",
			Category:    model.CategoryTechnical,
			Strength:    model.StrengthStrong,
			Evidence:    "zk-SNARK verifier on chain",
		}},
		Metrics: []model.Metric{{Name: model.MetricMathDensity, Value: 22.5}},
	}
	require.NoError(t, s.SaveExtraction(ctx, rec.ID, ex))

	got, err := s.GetProject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseCompleted, got.ExtractionStatus)
	assert.Empty(t, got.ExtractionError)
	require.NotNil(t, got.Extraction)
	assert.Equal(t, ex.Signals, got.Extraction.Signals)
	assert.InDelta(t, 22.5, got.Extraction.Metric(model.MetricMathDensity), 0.001)

	require.NoError(t, s.SaveAnalysis(ctx, rec.ID, model.AnalysisResult{
		Tier: model.TierSolid, Score: 78.5, Reasoning: "solid fundamentals",
	}))

	got, err = s.GetProject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseCompleted, got.ComparisonStatus)
	assert.Equal(t, model.TierSolid, got.Tier)
	require.NotNil(t, got.Score)
	assert.InDelta(t, 78.5, *got.Score, 0.001)
	assert.NotNil(t, got.LastAnalyzedAt)
}

func TestSQLiteStore_FailureClearsOnRetry(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	rec := seedProject(t, s, "fail")

	require.NoError(t, s.SetExtractionStatus(ctx, rec.ID, model.PhaseFailed, "timeout: fetch exceeded 30s"))
	got, err := s.GetProject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFailed, got.ExtractionStatus)
	assert.Contains(t, got.ExtractionError, "timeout")

	// A successful retry wipes the stale error.
	require.NoError(t, s.SaveExtraction(ctx, rec.ID, &model.Extraction{}))
	got, err = s.GetProject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseCompleted, got.ExtractionStatus)
	assert.Empty(t, got.ExtractionError)
}

func TestSQLiteStore_UpdateMissingProject(t *testing.T) {
	s := newTestSQLite(t)

	err := s.SetContentStatus(context.Background(), "ghost", model.ContentDead)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListProjectsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	fresh := seedProject(t, s, "fresh")
	stuck := seedProject(t, s, "stuck")
	done := seedProject(t, s, "done")
	dead := seedProject(t, s, "dead")

	require.NoError(t, s.SaveExtraction(ctx, stuck.ID, &model.Extraction{}))
	require.NoError(t, s.SaveExtraction(ctx, done.ID, &model.Extraction{}))
	require.NoError(t, s.SaveAnalysis(ctx, done.ID, model.AnalysisResult{Tier: model.TierBasic, Score: 55}))
	require.NoError(t, s.SetContentStatus(ctx, dead.ID, model.ContentDead))

	unprocessed, err := s.ListProjects(ctx, Filter{Unprocessed: true})
	require.NoError(t, err)
	ids := symbolSet(unprocessed)
	assert.Contains(t, ids, "fresh")
	assert.Contains(t, ids, "dead")
	assert.NotContains(t, ids, "stuck")
	assert.NotContains(t, ids, "done")
	_ = fresh

	stuckList, err := s.ListProjects(ctx, Filter{Stuck: true})
	require.NoError(t, err)
	require.Len(t, stuckList, 1)
	assert.Equal(t, "stuck", stuckList[0].Symbol)

	down, err := s.ListProjects(ctx, Filter{ContentDown: true})
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Equal(t, "dead", down[0].Symbol)

	limited, err := s.ListProjects(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_SaveRawContent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	rec := seedProject(t, s, "raw")

	require.NoError(t, s.SaveRawContent(ctx, rec.ID, "whitepaper body text"))
	got, err := s.GetProject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "whitepaper body text", got.RawContent)
}

func symbolSet(recs []model.ProjectRecord) map[string]bool {
	out := make(map[string]bool, len(recs))
	for _, r := range recs {
		out[r.Symbol] = true
	}
	return out
}
