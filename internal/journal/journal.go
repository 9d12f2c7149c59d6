// Package journal keeps a local sqlite record of import runs and the rows
// that failed in them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"invoicedesk/internal/importer"
	"invoicedesk/internal/logger"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("import run not found")

// Entry kinds stored in import_row_errors.
const (
	KindError   = "error"
	KindWarning = "warning"
)

const schema = `
CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS import_row_errors (
	run_id  TEXT NOT NULL REFERENCES import_runs(id) ON DELETE CASCADE,
	row     INTEGER NOT NULL,
	kind    TEXT NOT NULL DEFAULT 'error',
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_import_row_errors_run ON import_row_errors(run_id);
`

// Run is one recorded import.
type Run struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}

// Entry is one failed or warned row of a run.
type Entry struct {
	Row     int    `json:"row"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// String renders the entry the way the import reports it.
func (e Entry) String() string {
	return importer.RowError{Row: e.Row, Message: e.Message}.String()
}

// Store is the sqlite journal. It implements importer.Recorder.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ importer.Recorder = (*Store)(nil)

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	log := logger.WithComponent("journal")
	log.Debug().Str("path", path).Msg("Journal opened")
	return &Store{db: db, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores the outcome of an import run with its row errors and
// warnings.
func (s *Store) RecordRun(ctx context.Context, r *importer.Report) error {
	const op = "RecordRun"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, started_at, finished_at, total, succeeded, failed, skipped)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Source, formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.Total, r.Succeeded, r.Failed, r.Skipped)
	if err != nil {
		return fmt.Errorf("%s: failed to insert run: %w", op, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO import_row_errors (run_id, row, kind, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%s: failed to prepare row insert: %w", op, err)
	}
	defer stmt.Close()

	insert := func(kind string, rows []importer.RowError) error {
		for _, e := range rows {
			if _, err := stmt.ExecContext(ctx, r.RunID, e.Row, kind, e.Message); err != nil {
				return fmt.Errorf("%s: failed to insert row %d: %w", op, e.Row, err)
			}
		}
		return nil
	}
	if err := insert(KindError, r.Errors); err != nil {
		return err
	}
	if err := insert(KindWarning, r.Warnings); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit: %w", op, err)
	}

	s.log.Debug().
		Str("run_id", r.RunID).
		Int("errors", len(r.Errors)).
		Int("warnings", len(r.Warnings)).
		Msg("Import run recorded")
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, source, started_at, finished_at, total, succeeded, failed, skipped
	          FROM import_runs ORDER BY started_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, started_at, finished_at, total, succeeded, failed, skipped
		 FROM import_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// RowErrors returns the entries of a run in row order, errors before
// warnings on the same row.
func (s *Store) RowErrors(ctx context.Context, runID string) ([]Entry, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT row, kind, message FROM import_row_errors
		 WHERE run_id = ? ORDER BY row, CASE kind WHEN 'error' THEN 0 ELSE 1 END, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list row errors: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Row, &e.Kind, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan row error: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var started, finished string
	err := sc.Scan(&run.ID, &run.Source, &started, &finished, &run.Total, &run.Succeeded, &run.Failed, &run.Skipped)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
