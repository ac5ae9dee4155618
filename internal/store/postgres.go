package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/coinassay/coinassay/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock implements it
// for tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id                TEXT PRIMARY KEY,
	symbol            TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL DEFAULT '',
	website_url       TEXT NOT NULL DEFAULT '',
	whitepaper_url    TEXT NOT NULL DEFAULT '',
	raw_content       TEXT NOT NULL DEFAULT '',
	extraction_status TEXT NOT NULL DEFAULT '',
	comparison_status TEXT NOT NULL DEFAULT '',
	content_status    TEXT NOT NULL DEFAULT '',
	extraction        JSONB,
	tier              TEXT NOT NULL DEFAULT '',
	score             DOUBLE PRECISION,
	reasoning         TEXT NOT NULL DEFAULT '',
	extraction_error  TEXT NOT NULL DEFAULT '',
	comparison_error  TEXT NOT NULL DEFAULT '',
	last_analyzed_at  TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_projects_extraction_status ON projects(extraction_status);
CREATE INDEX IF NOT EXISTS idx_projects_comparison_status ON projects(comparison_status);
CREATE INDEX IF NOT EXISTS idx_projects_content_status ON projects(content_status);
`

// Migrate creates the projects table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const projectColumns = `id, symbol, name, website_url, whitepaper_url, raw_content,
	extraction_status, comparison_status, content_status, extraction,
	tier, score, reasoning, extraction_error, comparison_error,
	last_analyzed_at, created_at, updated_at`

// CreateProject inserts a new record. Phase fields start empty.
func (s *PostgresStore) CreateProject(ctx context.Context, rec *model.ProjectRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, symbol, name, website_url, whitepaper_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Symbol, rec.Name, rec.WebsiteURL, rec.WhitepaperURL, rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: create project %s", rec.Symbol)
}

// GetProject fetches a record by id.
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.ProjectRecord, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns), id)
	return scanProject(row)
}

// GetProjectBySymbol fetches a record by its ticker symbol.
func (s *PostgresStore) GetProjectBySymbol(ctx context.Context, symbol string) (*model.ProjectRecord, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM projects WHERE symbol = $1`, projectColumns), symbol)
	return scanProject(row)
}

// ListProjects returns records matching the filter, oldest first so sweeps
// make progress on long-stuck records before recent ones.
func (s *PostgresStore) ListProjects(ctx context.Context, f Filter) ([]model.ProjectRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE true`, projectColumns)

	if f.Unprocessed {
		query += ` AND extraction_status <> 'completed'`
	}
	if f.Stuck {
		query += ` AND extraction_status = 'completed' AND comparison_status <> 'completed'`
	}
	if f.ContentDown {
		query += ` AND content_status IN ('dead', 'fetch_error')`
	}
	query += ` ORDER BY updated_at ASC`

	var args []any
	if f.Limit > 0 {
		query += ` LIMIT $1`
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list projects")
	}
	defer rows.Close()

	var out []model.ProjectRecord
	for rows.Next() {
		rec, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate projects")
	}
	return out, nil
}

// SetExtractionStatus writes a Phase 1 transition. The failure reason is
// cleared on any non-failed status so stale errors don't outlive a retry.
func (s *PostgresStore) SetExtractionStatus(ctx context.Context, id string, st model.PhaseStatus, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET extraction_status = $1, extraction_error = $2, updated_at = $3
		WHERE id = $4`,
		string(st), reason, time.Now().UTC(), id,
	)
	return checkUpdated(tag, err, "postgres: set extraction status", id)
}

// SaveExtraction persists Phase 1 output and marks extraction completed in
// one write, so a crash cannot leave a completed status without data.
func (s *PostgresStore) SaveExtraction(ctx context.Context, id string, ex *model.Extraction) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal extraction for %s", id)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET extraction = $1, extraction_status = 'completed',
			extraction_error = '', updated_at = $2
		WHERE id = $3`,
		data, time.Now().UTC(), id,
	)
	return checkUpdated(tag, err, "postgres: save extraction", id)
}

// SetComparisonStatus writes a Phase 2 transition.
func (s *PostgresStore) SetComparisonStatus(ctx context.Context, id string, st model.PhaseStatus, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET comparison_status = $1, comparison_error = $2, updated_at = $3
		WHERE id = $4`,
		string(st), reason, time.Now().UTC(), id,
	)
	return checkUpdated(tag, err, "postgres: set comparison status", id)
}

// SaveAnalysis persists the verdict and marks comparison completed in one
// write. A failed Phase 2 never reaches this method, so a previously
// successful tier/score is never clobbered by a failure.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, id string, res model.AnalysisResult) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET tier = $1, score = $2, reasoning = $3,
			comparison_status = 'completed', comparison_error = '',
			last_analyzed_at = $4, updated_at = $4
		WHERE id = $5`,
		string(res.Tier), res.Score, res.Reasoning, now, id,
	)
	return checkUpdated(tag, err, "postgres: save analysis", id)
}

// SetContentStatus records the health of the project's content source.
func (s *PostgresStore) SetContentStatus(ctx context.Context, id string, cs model.ContentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET content_status = $1, updated_at = $2 WHERE id = $3`,
		string(cs), time.Now().UTC(), id,
	)
	return checkUpdated(tag, err, "postgres: set content status", id)
}

// SaveRawContent stores fetched text for later re-extraction.
func (s *PostgresStore) SaveRawContent(ctx context.Context, id, text string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET raw_content = $1, updated_at = $2 WHERE id = $3`,
		text, time.Now().UTC(), id,
	)
	return checkUpdated(tag, err, "postgres: save raw content", id)
}

func checkUpdated(tag pgconn.CommandTag, err error, op, id string) error {
	if err != nil {
		return eris.Wrapf(err, "%s %s", op, id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", op, id)
	}
	return nil
}

func scanProject(row pgx.Row) (*model.ProjectRecord, error) {
	var rec model.ProjectRecord
	var extraction []byte

	err := row.Scan(
		&rec.ID, &rec.Symbol, &rec.Name, &rec.WebsiteURL, &rec.WhitepaperURL, &rec.RawContent,
		(*string)(&rec.ExtractionStatus), (*string)(&rec.ComparisonStatus), (*string)(&rec.ContentStatus),
		&extraction,
		(*string)(&rec.Tier), &rec.Score, &rec.Reasoning, &rec.ExtractionError, &rec.ComparisonError,
		&rec.LastAnalyzedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: scan project")
	}

	if len(extraction) > 0 {
		var ex model.Extraction
		if err := json.Unmarshal(extraction, &ex); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal extraction for %s", rec.ID)
		}
		rec.Extraction = &ex
	}
	return &rec, nil
}
