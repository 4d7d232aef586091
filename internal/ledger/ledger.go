// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists run history in a SQLite database so finished
// runs can be listed and inspected later. Recording failures must never
// fail a transform run; callers degrade ledger errors to warnings.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pageforge/pkg/types"
)

// Store manages the run-history SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path, creating the
// schema if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			total_pages INTEGER,
			range_start INTEGER,
			range_end INTEGER,
			workers INTEGER,
			chain TEXT,
			status TEXT NOT NULL,
			warnings TEXT,
			started TEXT NOT NULL,
			finished TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			run_id TEXT NOT NULL REFERENCES runs(id),
			chunk_id INTEGER NOT NULL,
			range_start INTEGER,
			range_end INTEGER,
			pages INTEGER,
			error TEXT,
			duration_ms INTEGER,
			PRIMARY KEY (run_id, chunk_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun persists a finished run and its per-chunk breakdown.
func (s *Store) RecordRun(ctx context.Context, report *types.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	chainJSON, _ := json.Marshal(report.Chain)
	warningsJSON, _ := json.Marshal(report.Warnings)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, input, output, total_pages, range_start, range_end,
			workers, chain, status, warnings, started, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Input, report.Output, report.TotalPages,
		report.Range.Start, report.Range.End, report.Workers,
		string(chainJSON), string(report.Status), string(warningsJSON),
		report.Started.UTC().Format(time.RFC3339Nano),
		report.Finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (run_id, chunk_id, range_start, range_end, pages, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range report.Chunks {
		_, err := stmt.ExecContext(ctx,
			report.RunID, c.ID, c.Range.Start, c.Range.End, c.Pages, c.Error,
			c.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Recent returns the newest runs, chunk details omitted.
func (s *Store) Recent(ctx context.Context, limit int) ([]types.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, output, total_pages, range_start, range_end,
			workers, chain, status, warnings, started, finished
		 FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var reports []types.RunReport
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// Get returns one run with its chunk breakdown. id may be a unique
// prefix of the run ID.
func (s *Store) Get(ctx context.Context, id string) (*types.RunReport, error) {
	// substr instead of LIKE so %/_ in the prefix match literally.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, output, total_pages, range_start, range_end,
			workers, chain, status, warnings, started, finished
		 FROM runs WHERE substr(id, 1, length(?)) = ? LIMIT 2`, id, id)
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	defer rows.Close()

	var matches []*types.RunReport
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no run matching %q", id)
	case 1:
	default:
		return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
	report := matches[0]

	chunkRows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, range_start, range_end, pages, error, duration_ms
		 FROM chunks WHERE run_id = ? ORDER BY chunk_id`, report.RunID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer chunkRows.Close()

	for chunkRows.Next() {
		var c types.ChunkResult
		var durationMS int64
		if err := chunkRows.Scan(&c.ID, &c.Range.Start, &c.Range.End, &c.Pages, &c.Error, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Duration = time.Duration(durationMS) * time.Millisecond
		report.Chunks = append(report.Chunks, c)
	}
	return report, chunkRows.Err()
}

func scanRun(rows *sql.Rows) (*types.RunReport, error) {
	var r types.RunReport
	var chainJSON, warningsJSON, status, started, finished string
	err := rows.Scan(&r.RunID, &r.Input, &r.Output, &r.TotalPages,
		&r.Range.Start, &r.Range.End, &r.Workers,
		&chainJSON, &status, &warningsJSON, &started, &finished)
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	r.Status = types.RunStatus(status)
	json.Unmarshal([]byte(chainJSON), &r.Chain)
	json.Unmarshal([]byte(warningsJSON), &r.Warnings)
	if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
		r.Started = t
	}
	if t, err := time.Parse(time.RFC3339Nano, finished); err == nil {
		r.Finished = t
	}
	return &r, nil
}
