package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/coinassay/coinassay/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// development runs where a Postgres instance is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	extraction        TEXT,
	tier              TEXT NOT NULL DEFAULT '',
	score             REAL,
	reasoning         TEXT NOT NULL DEFAULT '',
	extraction_error  TEXT NOT NULL DEFAULT '',
	comparison_error  TEXT NOT NULL DEFAULT '',
	last_analyzed_at  DATETIME,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_extraction_status ON projects(extraction_status);
CREATE INDEX IF NOT EXISTS idx_projects_comparison_status ON projects(comparison_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateProject(ctx context.Context, rec *model.ProjectRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, symbol, name, website_url, whitepaper_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Symbol, rec.Name, rec.WebsiteURL, rec.WhitepaperURL, rec.CreatedAt, rec.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: create project %s", rec.Symbol)
}

const sqliteProjectColumns = `id, symbol, name, website_url, whitepaper_url, raw_content,
	extraction_status, comparison_status, content_status, extraction,
	tier, score, reasoning, extraction_error, comparison_error,
	last_analyzed_at, created_at, updated_at`

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.ProjectRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteProjectColumns+` FROM projects WHERE id = ?`, id)
	return scanSQLiteProject(row)
}

func (s *SQLiteStore) GetProjectBySymbol(ctx context.Context, symbol string) (*model.ProjectRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteProjectColumns+` FROM projects WHERE symbol = ?`, symbol)
	return scanSQLiteProject(row)
}

func (s *SQLiteStore) ListProjects(ctx context.Context, f Filter) ([]model.ProjectRecord, error) {
	query := `SELECT ` + sqliteProjectColumns + ` FROM projects WHERE true`
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
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list projects")
	}
	defer rows.Close()

	var out []model.ProjectRecord
	for rows.Next() {
		rec, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate projects")
	}
	return out, nil
}

func (s *SQLiteStore) SetExtractionStatus(ctx context.Context, id string, st model.PhaseStatus, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET extraction_status = ?, extraction_error = ?, updated_at = ? WHERE id = ?`,
		string(st), reason, time.Now().UTC(), id,
	)
	return checkSQLiteUpdated(res, err, "sqlite: set extraction status", id)
}

func (s *SQLiteStore) SaveExtraction(ctx context.Context, id string, ex *model.Extraction) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal extraction for %s", id)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET extraction = ?, extraction_status = 'completed',
			extraction_error = '', updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), id,
	)
	return checkSQLiteUpdated(res, err, "sqlite: save extraction", id)
}

func (s *SQLiteStore) SetComparisonStatus(ctx context.Context, id string, st model.PhaseStatus, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET comparison_status = ?, comparison_error = ?, updated_at = ? WHERE id = ?`,
		string(st), reason, time.Now().UTC(), id,
	)
	return checkSQLiteUpdated(res, err, "sqlite: set comparison status", id)
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, id string, resr model.AnalysisResult) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET tier = ?, score = ?, reasoning = ?,
			comparison_status = 'completed', comparison_error = '',
			last_analyzed_at = ?, updated_at = ? WHERE id = ?`,
		string(resr.Tier), resr.Score, resr.Reasoning, now, now, id,
	)
	return checkSQLiteUpdated(res, err, "sqlite: save analysis", id)
}

func (s *SQLiteStore) SetContentStatus(ctx context.Context, id string, cs model.ContentStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET content_status = ?, updated_at = ? WHERE id = ?`,
		string(cs), time.Now().UTC(), id,
	)
	return checkSQLiteUpdated(res, err, "sqlite: set content status", id)
}

func (s *SQLiteStore) SaveRawContent(ctx context.Context, id, text string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET raw_content = ?, updated_at = ? WHERE id = ?`,
		text, time.Now().UTC(), id,
	)
	return checkSQLiteUpdated(res, err, "sqlite: save raw content", id)
}

func checkSQLiteUpdated(res sql.Result, err error, op, id string) error {
	if err != nil {
		return eris.Wrapf(err, "%s %s", op, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "%s %s", op, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", op, id)
	}
	return nil
}

// scannable lets one scan helper serve both QueryRow and Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteProject(row scannable) (*model.ProjectRecord, error) {
	var rec model.ProjectRecord
	var extraction sql.NullString
	var score sql.NullFloat64
	var lastAnalyzed sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.Symbol, &rec.Name, &rec.WebsiteURL, &rec.WhitepaperURL, &rec.RawContent,
		(*string)(&rec.ExtractionStatus), (*string)(&rec.ComparisonStatus), (*string)(&rec.ContentStatus),
		&extraction,
		(*string)(&rec.Tier), &score, &rec.Reasoning, &rec.ExtractionError, &rec.ComparisonError,
		&lastAnalyzed, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "sqlite: scan project")
	}

	if score.Valid {
		rec.Score = &score.Float64
	}
	if lastAnalyzed.Valid {
		t := lastAnalyzed.Time
		rec.LastAnalyzedAt = &t
	}
	if extraction.Valid && extraction.String != "" {
		var ex model.Extraction
		if err := json.Unmarshal([]byte(extraction.String), &ex); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal extraction for %s", rec.ID)
		}
		rec.Extraction = &ex
	}
	return &rec, nil
}
