// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of pipeline runs and the failed
// files each run reported. It records runs, not extracted content.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docwalk/pkg/types"
)

// ErrNotFound is returned when no run matches the query.
var ErrNotFound = errors.New("run not found")

// Run is one recorded pipeline run.
type Run struct {
	ID int64 `json:"id" yaml:"id"`
	types.RunSummary
}

// Ledger manages the run history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			root TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			discovered INTEGER NOT NULL,
			candidates INTEGER NOT NULL,
			processed INTEGER NOT NULL,
			cache_hits INTEGER NOT NULL,
			extracted INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			reconcile TEXT NOT NULL,
			removed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS failed_files (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path TEXT NOT NULL,
			PRIMARY KEY (run_id, path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a run summary and its failed paths in one transaction and
// returns the new run ID.
func (l *Ledger) Record(ctx context.Context, s types.RunSummary) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (root, started_at, finished_at, discovered, candidates, processed,
			cache_hits, extracted, failed, skipped, reconcile, removed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Root, formatTime(s.StartedAt), formatTime(s.FinishedAt),
		s.Discovered, s.Candidates, s.Processed,
		s.CacheHits, s.Extracted, s.Failed, s.Skipped,
		string(s.Reconcile), s.Removed,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	if len(s.FailedPaths) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO failed_files (run_id, path) VALUES (?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, p := range s.FailedPaths {
			if _, err := stmt.ExecContext(ctx, id, p); err != nil {
				return 0, fmt.Errorf("inserting failed file %s: %w", p, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

const runColumns = `id, root, started_at, finished_at, discovered, candidates, processed,
	cache_hits, extracted, failed, skipped, reconcile, removed`

// Latest returns the most recent run, optionally restricted to root. An
// empty root matches every run.
func (l *Ledger) Latest(ctx context.Context, root string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if root != "" {
		query += ` WHERE root = ?`
		args = append(args, root)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	run, err := scanRun(l.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if run.FailedPaths, err = l.FailedFiles(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// Get returns the run with the given ID.
func (l *Ledger) Get(ctx context.Context, id int64) (*Run, error) {
	run, err := scanRun(l.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if run.FailedPaths, err = l.FailedFiles(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first, without their failed paths.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FailedFiles returns the failed paths recorded for a run, sorted.
func (l *Ledger) FailedFiles(ctx context.Context, runID int64) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT path FROM failed_files WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying failed files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning failed file: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (l *Ledger) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run               Run
		started, finished string
		reconcile         string
	)
	err := row.Scan(&run.ID, &run.Root, &started, &finished,
		&run.Discovered, &run.Candidates, &run.Processed,
		&run.CacheHits, &run.Extracted, &run.Failed, &run.Skipped,
		&reconcile, &run.Removed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.Reconcile = types.ReconcileMode(reconcile)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
