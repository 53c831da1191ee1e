// Package ledger keeps a SQLite history of runs and the artifacts they wrote.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/batch"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded batch run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	State      string
	Format     string
	OutputDir  string
	LogFiles   int
	Templates  int
	Artifacts  int
	Failures   int
}

// Ledger wraps the history database.
type Ledger struct {
	db *sql.DB
}

var _ batch.Recorder = (*Ledger)(nil)

// Open opens (creating if needed) the ledger at path and migrates its
// schema. ":memory:" opens a private in-memory ledger.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginRun inserts a run row. Counts and FinishedAt are filled in by
// FinishRun.
func (l *Ledger) BeginRun(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, state, format, output_dir)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, formatTime(run.StartedAt), run.State, run.Format, run.OutputDir)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

// RecordArtifact implements batch.Recorder.
func (l *Ledger) RecordArtifact(ctx context.Context, runID string, a batch.Artifact) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, log_file, template, path, records, written_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, a.LogFile, a.Template, a.Path, a.Records, formatTime(a.WrittenAt))
	if err != nil {
		return fmt.Errorf("recording artifact %s: %w", a.Path, err)
	}
	return nil
}

// FinishRun stores the final state and counts of a run.
func (l *Ledger) FinishRun(ctx context.Context, result *batch.Result) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, state = ?, log_files = ?, templates = ?, artifacts = ?, failures = ?
		WHERE id = ?
	`, formatTime(result.FinishedAt), string(result.State),
		len(result.LogFiles), result.TemplatesApplied(), len(result.Artifacts), len(result.Failures),
		result.RunID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", result.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing run %s: %w", result.RunID, ErrRunNotFound)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, state, format, output_dir,
		       log_files, templates, artifacts, failures
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.State, &r.Format, &r.OutputDir,
			&r.LogFiles, &r.Templates, &r.Artifacts, &r.Failures); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Artifacts returns the artifacts written by one run, in write order.
func (l *Ledger) Artifacts(ctx context.Context, runID string) ([]batch.Artifact, error) {
	var exists int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up run %s: %w", runID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT log_file, template, path, records, written_at
		FROM artifacts
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []batch.Artifact
	for rows.Next() {
		var a batch.Artifact
		var written string
		if err := rows.Scan(&a.LogFile, &a.Template, &a.Path, &a.Records, &written); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		a.WrittenAt = parseTime(written)
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
