// Package journal records build history in a SQLite database: one row per
// engine run and one row per target action within the run. The journal is
// advisory; a build never fails because history could not be written.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Target actions recorded per run.
const (
	ActionBuilt  = "built"
	ActionReused = "reused"
	ActionHashed = "hashed"
)

// Run statuses.
const (
	StatusRunning     = "running"
	StatusSucceeded   = "succeeded"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

type Journal struct {
	db *sql.DB
}

// Run is one recorded engine invocation.
type Run struct {
	ID         string
	Targets    []string
	StartedAt  time.Time
	FinishedAt *time.Time
	Rebuilt    int
	Status     string
	Error      string
}

// Open opens (and creates if needed) the journal database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_log (
  id          TEXT PRIMARY KEY,
  targets     TEXT NOT NULL,
  started_at  TEXT NOT NULL,
  finished_at TEXT,
  rebuilt     INTEGER NOT NULL DEFAULT 0,
  status      TEXT NOT NULL,
  error       TEXT
);`,
		`CREATE TABLE IF NOT EXISTS target_log (
  run_id     TEXT NOT NULL,
  target     TEXT NOT NULL,
  action     TEXT NOT NULL,
  detail     TEXT,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS target_log_run_id_idx ON target_log(run_id);`,
		`CREATE INDEX IF NOT EXISTS run_log_started_at_idx ON run_log(started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap journal: %w", err)
		}
	}
	return nil
}

// BeginRun inserts a new run row and returns its ID.
func (j *Journal) BeginRun(ctx context.Context, targets []string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := j.db.ExecContext(ctx, `
INSERT INTO run_log(id, targets, started_at, status)
VALUES(?, ?, ?, ?);
`, id, strings.Join(targets, " "), now, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordTarget appends a target action to the current run.
func (j *Journal) RecordTarget(ctx context.Context, runID, target, action, detail string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := j.db.ExecContext(ctx, `
INSERT INTO target_log(run_id, target, action, detail, created_at)
VALUES(?, ?, ?, ?, ?);
`, runID, target, action, detail, now)
	if err != nil {
		return fmt.Errorf("record target: %w", err)
	}
	return nil
}

// FinishRun marks the run completed with its final status and rebuild count.
func (j *Journal) FinishRun(ctx context.Context, runID string, rebuilt int, status, errMsg string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := j.db.ExecContext(ctx, `
UPDATE run_log
SET finished_at = ?, rebuilt = ?, status = ?, error = NULLIF(?, '')
WHERE id = ?;
`, now, rebuilt, status, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT id, targets, started_at, finished_at, rebuilt, status, error
FROM run_log
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var targets, startedS string
		var finishedS, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &targets, &startedS, &finishedS, &r.Rebuilt, &r.Status, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if targets != "" {
			r.Targets = strings.Fields(targets)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
			r.StartedAt = t
		}
		if finishedS.Valid {
			if t, err := time.Parse(time.RFC3339Nano, finishedS.String); err == nil {
				r.FinishedAt = &t
			}
		}
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TargetActions returns the target rows for one run in insertion order.
func (j *Journal) TargetActions(ctx context.Context, runID string) ([][3]string, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT target, action, COALESCE(detail, '')
FROM target_log
WHERE run_id = ?
ORDER BY rowid ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query target actions: %w", err)
	}
	defer rows.Close()

	var out [][3]string
	for rows.Next() {
		var target, action, detail string
		if err := rows.Scan(&target, &action, &detail); err != nil {
			return nil, fmt.Errorf("scan target action: %w", err)
		}
		out = append(out, [3]string{target, action, detail})
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
