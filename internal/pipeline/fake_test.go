package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/coinassay/coinassay/internal/fetcher"
	"github.com/coinassay/coinassay/internal/model"
	"github.com/coinassay/coinassay/internal/store"
	"github.com/coinassay/coinassay/pkg/claude"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu       sync.Mutex
	projects map[string]*model.ProjectRecord
	failOn   map[string]error // method name -> error to return
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[string]*model.ProjectRecord),
		failOn:   make(map[string]error),
	}
}

func (m *memStore) get(id string) (*model.ProjectRecord, error) {
	rec, ok := m.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) CreateProject(_ context.Context, rec *model.ProjectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.projects[rec.ID] = &cp
	return nil
}

func (m *memStore) GetProject(_ context.Context, id string) (*model.ProjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["GetProject"]; err != nil {
		return nil, err
	}
	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) GetProjectBySymbol(_ context.Context, symbol string) (*model.ProjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.projects {
		if rec.Symbol == symbol {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListProjects(_ context.Context, f store.Filter) ([]model.ProjectRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["ListProjects"]; err != nil {
		return nil, err
	}
	var out []model.ProjectRecord
	for _, rec := range m.projects {
		if f.Unprocessed && rec.ExtractionStatus == model.PhaseCompleted {
			continue
		}
		if f.Stuck && (rec.ExtractionStatus != model.PhaseCompleted || rec.ComparisonStatus == model.PhaseCompleted) {
			continue
		}
		if f.ContentDown && rec.ContentStatus != model.ContentDead && rec.ContentStatus != model.ContentFetchError {
			continue
		}
		out = append(out, *rec)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) SetExtractionStatus(_ context.Context, id string, st model.PhaseStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["SetExtractionStatus"]; err != nil {
		return err
	}
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	rec.ExtractionStatus = st
	rec.ExtractionError = reason
	return nil
}

func (m *memStore) SaveExtraction(_ context.Context, id string, ex *model.Extraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["SaveExtraction"]; err != nil {
		return err
	}
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	cp := *ex
	rec.Extraction = &cp
	rec.ExtractionStatus = model.PhaseCompleted
	rec.ExtractionError = ""
	return nil
}

func (m *memStore) SetComparisonStatus(_ context.Context, id string, st model.PhaseStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	rec.ComparisonStatus = st
	rec.ComparisonError = reason
	return nil
}

func (m *memStore) SaveAnalysis(_ context.Context, id string, res model.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["SaveAnalysis"]; err != nil {
		return err
	}
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	rec.Tier = res.Tier
	score := res.Score
	rec.Score = &score
	rec.Reasoning = res.Reasoning
	rec.ComparisonStatus = model.PhaseCompleted
	rec.ComparisonError = ""
	now := time.Now().UTC()
	rec.LastAnalyzedAt = &now
	return nil
}

func (m *memStore) SetContentStatus(_ context.Context, id string, cs model.ContentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	rec.ContentStatus = cs
	return nil
}

func (m *memStore) SaveRawContent(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.get(id)
	if err != nil {
		return err
	}
	rec.RawContent = text
	return nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

// fakeFetcher serves canned results keyed by URL.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]fetcher.Result
	errs    map[string]error
	calls   []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		results: make(map[string]fetcher.Result),
		errs:    make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (fetcher.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		res := f.results[rawURL]
		return res, err
	}
	if res, ok := f.results[rawURL]; ok {
		return res, nil
	}
	return fetcher.Result{Status: model.ContentDead}, store.ErrNotFound
}

// fakeAnalyst returns a fixed judgment or error.
type fakeAnalyst struct {
	judgment *claude.Judgment
	err      error
	calls    int
}

func (f *fakeAnalyst) Review(context.Context, string, string) (*claude.Judgment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.judgment, nil
}
