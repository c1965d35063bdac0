// Package store keeps a history of revision runs and the corrections they
// applied in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	output         TEXT NOT NULL DEFAULT '',
	mode           TEXT NOT NULL DEFAULT '',
	model          TEXT NOT NULL DEFAULT '',
	content_hash   TEXT NOT NULL DEFAULT '',
	units          INTEGER NOT NULL DEFAULT 0,
	batches        INTEGER NOT NULL DEFAULT 0,
	failed_batches INTEGER NOT NULL DEFAULT 0,
	corrections    INTEGER NOT NULL DEFAULT 0,
	rejected       INTEGER NOT NULL DEFAULT 0,
	protected      INTEGER NOT NULL DEFAULT 0,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(content_hash);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS corrections (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	text_index INTEGER NOT NULL,
	location   TEXT NOT NULL,
	error      TEXT NOT NULL,
	correction TEXT NOT NULL,
	error_type TEXT NOT NULL,
	reverted   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
`

// Run is one revision of one document.
type Run struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Output        string    `json:"output,omitempty"`
	Mode          string    `json:"mode,omitempty"`
	Model         string    `json:"model,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	Units         int       `json:"units"`
	Batches       int       `json:"batches"`
	FailedBatches int       `json:"failed_batches"`
	Corrections   int       `json:"corrections"`
	Rejected      int       `json:"rejected"`
	Protected     int       `json:"protected"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Correction is one applied (or reverted) correction of a run.
type Correction struct {
	TextIndex  int    `json:"text_index"`
	Location   string `json:"location"`
	Error      string `json:"error"`
	Correction string `json:"correction"`
	ErrorType  string `json:"error_type"`
	Reverted   string `json:"reverted,omitempty"`
}

// Store is the SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts run and its corrections in one transaction. An empty
// run ID is filled in.
func (s *Store) RecordRun(ctx context.Context, run *Run, corrections []Correction) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, source, output, mode, model, content_hash, units, batches, failed_batches,
		 corrections, rejected, protected, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Output, run.Mode, run.Model, run.ContentHash,
		run.Units, run.Batches, run.FailedBatches, run.Corrections, run.Rejected, run.Protected,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO corrections
		(run_id, seq, text_index, location, error, correction, error_type, reverted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()
	for i, c := range corrections {
		if _, err := stmt.ExecContext(ctx, run.ID, i, c.TextIndex, c.Location,
			c.Error, c.Correction, c.ErrorType, c.Reverted); err != nil {
			return fmt.Errorf("store: insert correction %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

const runColumns = `id, source, output, mode, model, content_hash, units, batches, failed_batches,
	corrections, rejected, protected, started_at, finished_at`

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns one run, or nil when id is unknown.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestByHash returns the most recent run of a document with the given
// content hash, or nil.
func (s *Store) LatestByHash(ctx context.Context, hash string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE content_hash = ? ORDER BY started_at DESC LIMIT 1`, hash)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Corrections returns a run's corrections in the order they were recorded.
func (s *Store) Corrections(ctx context.Context, runID string) ([]Correction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text_index, location, error, correction, error_type, reverted
		FROM corrections WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query corrections: %w", err)
	}
	defer rows.Close()

	var out []Correction
	for rows.Next() {
		var c Correction
		if err := rows.Scan(&c.TextIndex, &c.Location, &c.Error, &c.Correction, &c.ErrorType, &c.Reverted); err != nil {
			return nil, fmt.Errorf("store: scan correction: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var started, finished string
	err := sc.Scan(&r.ID, &r.Source, &r.Output, &r.Mode, &r.Model, &r.ContentHash,
		&r.Units, &r.Batches, &r.FailedBatches, &r.Corrections, &r.Rejected, &r.Protected,
		&started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("store: scan run: %w", err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
