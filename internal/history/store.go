/*
PURPOSE:
  Local run history. Records every finished run in SQLite so runs can be
  listed and compared across sessions.

REQUIREMENTS:
  User-specified:
  - None.

  Implementation-discovered:
  - Keep the full Result as JSON next to the indexed summary columns.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: modernc.org/sqlite

ERROR HANDLING:
  - Get returns ErrNotFound for unknown IDs.
  - Callers log history failures; they never fail a run.

IMPLEMENTATION RULES:
  - Append only. The schema is created on Open.

USAGE:
  s, err := history.Open(path)
  defer s.Close()
  err = s.Record(ctx, res)

SELF-HEALING INSTRUCTIONS:
  - If the schema changes, add columns with defaults rather than rewriting rows.

RELATED FILES:
  - internal/cli/history.go

MAINTENANCE:
  - Update the schema constant and Entry together.
*/

// Package history keeps an append-only log of benchmark run summaries in a
// local SQLite database so runs can be compared across sessions.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/daryltucker/vllm-bench/internal/model"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	label         TEXT NOT NULL,
	model         TEXT NOT NULL,
	target        TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	concurrency   INTEGER NOT NULL,
	requested     INTEGER NOT NULL,
	success       INTEGER NOT NULL,
	failure       INTEGER NOT NULL,
	pending       INTEGER NOT NULL,
	wall_ns       INTEGER NOT NULL,
	mean_ns       INTEGER NOT NULL,
	median_ns     INTEGER NOT NULL,
	throughput    REAL NOT NULL,
	success_rate  REAL NOT NULL,
	aborted       INTEGER NOT NULL,
	result        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Entry is one row of the run log.
type Entry struct {
	ID          string
	Label       string
	Model       string
	Target      string
	StartedAt   time.Time
	Concurrency int
	Requested   int
	Success     int
	Failure     int
	Pending     int
	WallTime    time.Duration
	MeanLatency time.Duration
	Median      time.Duration
	Throughput  float64
	SuccessRate float64
	Aborted     bool
}

// Store wraps the database handle.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run. Recording the same run twice is an error.
func (s *Store) Record(ctx context.Context, r *model.Result) error {
	if r == nil {
		return errors.New("nil result")
	}
	blob, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	aborted := 0
	if r.Aborted {
		aborted = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, label, model, target, started_at, concurrency, requested,
			success, failure, pending, wall_ns, mean_ns, median_ns, throughput,
			success_rate, aborted, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Label, r.Model, r.Target, r.StartedAt.UnixNano(), r.Concurrency, r.Requested,
		r.SuccessCount, r.FailureCount, r.Pending, int64(r.WallTime), int64(r.Latency.Mean),
		int64(r.Latency.Median), r.Throughput, r.SuccessRate, aborted, string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// List returns the most recent runs first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, label, model, target, started_at, concurrency, requested, success,
		failure, pending, wall_ns, mean_ns, median_ns, throughput, success_rate, aborted
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, wall, mean, median int64
		if err := rows.Scan(&e.ID, &e.Label, &e.Model, &e.Target, &started, &e.Concurrency,
			&e.Requested, &e.Success, &e.Failure, &e.Pending, &wall, &mean, &median,
			&e.Throughput, &e.SuccessRate, &e.Aborted); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		e.StartedAt = time.Unix(0, started)
		e.WallTime = time.Duration(wall)
		e.MeanLatency = time.Duration(mean)
		e.Median = time.Duration(median)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get loads the full stored result for one run.
func (s *Store) Get(ctx context.Context, id string) (*model.Result, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, "SELECT result FROM runs WHERE id = ?", id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	var r model.Result
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &r, nil
}
