// Package store persists project records and their analysis state. It is
// the single source of truth for phase status; the orchestrator re-reads
// through it before every transition.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/coinassay/coinassay/internal/model"
)

// ErrNotFound is returned when no project matches the given id or symbol.
var ErrNotFound = eris.New("store: project not found")

// Filter selects projects for batch sweeps.
type Filter struct {
	// Unprocessed selects records whose extraction has not completed
	// (absent, processing, or failed) — candidates for full reprocessing.
	Unprocessed bool `json:"unprocessed,omitempty"`

	// Stuck selects records with a completed extraction but no completed
	// comparison — candidates for a Phase-2-only recovery run.
	Stuck bool `json:"stuck,omitempty"`

	// ContentDown selects records whose content was previously marked dead
	// or unreachable, for periodic revival checks.
	ContentDown bool `json:"content_down,omitempty"`

	Limit int `json:"limit,omitempty"`
}

// Store defines the persistence operations the pipeline needs. It reads and
// writes only the named analysis fields; everything else about a project is
// owned by the ingestion side.
type Store interface {
	CreateProject(ctx context.Context, rec *model.ProjectRecord) error
	GetProject(ctx context.Context, id string) (*model.ProjectRecord, error)
	GetProjectBySymbol(ctx context.Context, symbol string) (*model.ProjectRecord, error)
	ListProjects(ctx context.Context, f Filter) ([]model.ProjectRecord, error)

	// Phase transitions.
	SetExtractionStatus(ctx context.Context, id string, st model.PhaseStatus, reason string) error
	SaveExtraction(ctx context.Context, id string, ex *model.Extraction) error
	SetComparisonStatus(ctx context.Context, id string, st model.PhaseStatus, reason string) error
	SaveAnalysis(ctx context.Context, id string, res model.AnalysisResult) error

	// Content health and raw text.
	SetContentStatus(ctx context.Context, id string, cs model.ContentStatus) error
	SaveRawContent(ctx context.Context, id, text string) error

	Migrate(ctx context.Context) error
	Close() error
}
