package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinassay/coinassay/internal/benchmark"
	"github.com/coinassay/coinassay/internal/fetcher"
	"github.com/coinassay/coinassay/internal/model"
	"github.com/coinassay/coinassay/internal/pipeline"
	"github.com/coinassay/coinassay/internal/store"
)

type stubFetcher struct {
	text string
}

func (s *stubFetcher) Fetch(_ context.Context, _ string) (fetcher.Result, error) {
	return fetcher.Result{Text: s.text, Status: model.ContentOK}, nil
}

func newTestAPI(t *testing.T) (*apiServer, store.Store, string) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	id := uuid.New().String()
	require.NoError(t, st.CreateProject(context.Background(), &model.ProjectRecord{
		ID:         id,
		Symbol:     "abc",
		Name:       "ABC Protocol",
		WebsiteURL: "https://abc.example.org",
	}))

	text := strings.Repeat("The protocol is open source and audited. ", 20)
	orch := pipeline.New(st, &stubFetcher{text: text}, nil, benchmark.Defaults(), pipeline.Options{ChainPhase2: true})
	return &apiServer{st: st, orch: orch}, st, id
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestAnalyzeQueuesBackgroundRun(t *testing.T) {
	api, st, id := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodPost, "/api/v1/analyze", `{"project":"abc"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, id, resp["id"])
	assert.Equal(t, "queued", resp["state"])

	// The run is detached; wait for both phases to land on the record.
	require.Eventually(t, func() bool {
		rec, err := st.GetProject(context.Background(), id)
		return err == nil &&
			rec.ExtractionStatus == model.PhaseCompleted &&
			rec.ComparisonStatus == model.PhaseCompleted
	}, 3*time.Second, 20*time.Millisecond)

	rec, err := st.GetProject(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec.Score)
	assert.NotEmpty(t, rec.Tier)
}

func TestAnalyzeUnknownProject(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodPost, "/api/v1/analyze", `{"project":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAnalyzeRejectsBadBody(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.router([]string{"*"})

	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, "/api/v1/analyze", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodPost, "/api/v1/analyze", `{}`).Code)
}

func TestStatusEndpoint(t *testing.T) {
	api, _, id := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodGet, "/api/v1/projects/"+id+"/status", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var s map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	assert.NotEmpty(t, s["stage"])
	assert.NotEmpty(t, s["message"])
}

func TestStatusEndpointDetailed(t *testing.T) {
	api, _, id := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodGet, "/api/v1/projects/"+id+"/status?detailed=true", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var s map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	assert.NotEmpty(t, s["step"])
	assert.NotEmpty(t, s["rule_name"])
}

func TestStatusEndpointBySymbol(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodGet, "/api/v1/projects/abc/status", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStatusEndpointNotFound(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodGet, "/api/v1/projects/missing/status", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReprocessValidatesPhase(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.router([]string{"*"})

	rr := doJSON(t, h, http.MethodPost, "/api/v1/reprocess", `{"project":"abc","phase":"enrich"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReprocessQueuesComparison(t *testing.T) {
	api, st, id := newTestAPI(t)
	h := api.router([]string{"*"})

	// Seed a completed extraction so the comparison pass has input.
	require.NoError(t, st.SaveExtraction(context.Background(), id, &model.Extraction{
		Signals: []model.Signal{{Category: model.CategoryTechnical, Strength: model.StrengthStrong}},
	}))

	rr := doJSON(t, h, http.MethodPost, "/api/v1/reprocess", `{"project":"abc"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	require.Eventually(t, func() bool {
		rec, err := st.GetProject(context.Background(), id)
		return err == nil && rec.ComparisonStatus == model.PhaseCompleted
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCORSPreflight(t *testing.T) {
	api, _, _ := newTestAPI(t)
	h := api.router([]string{"https://dashboard.example.org"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	req.Header.Set("Origin", "https://dashboard.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://dashboard.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
}
