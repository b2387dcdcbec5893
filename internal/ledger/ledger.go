// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger keeps a SQLite history of acquisition runs: one row per
// run, one row per source attempted for each record, and the documents
// acquired so far. A later run reads the acquired table to resume.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Store is the run ledger. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run summarises one recorded run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress or was interrupted
	Inputs     int
	Succeeded  int
	Failed     int
	Skipped    int
	Cancelled  int
}

// Finished reports whether the run completed and wrote its counts.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// Attempt is one source outcome recorded for a record.
type Attempt struct {
	RunID    string
	RecordID string
	Seq      int
	Source   string
	Status   acquire.Status
	Reason   string
	Blocked  bool
	Attempts int
	Elapsed  time.Duration
}

// Open opens or creates the ledger database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// One writer at a time; batch workers record concurrently.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
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
			started_at TEXT NOT NULL,
			finished_at TEXT,
			inputs INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			cancelled INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			run_id TEXT NOT NULL REFERENCES runs(id),
			record_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			blocked INTEGER NOT NULL DEFAULT 0,
			attempts INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, record_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_record ON attempts(record_id)`,
		`CREATE TABLE IF NOT EXISTS acquired (
			record_id TEXT PRIMARY KEY COLLATE NOCASE,
			run_id TEXT NOT NULL REFERENCES runs(id),
			source TEXT NOT NULL,
			source_url TEXT,
			pdf_path TEXT NOT NULL,
			size INTEGER NOT NULL,
			sha256 TEXT,
			acquired_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BeginRun records the start of a run over inputs records and returns its
// id.
func (s *Store) BeginRun(ctx context.Context, inputs int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, inputs) VALUES (?, ?, ?)`,
		id, formatTime(s.now()), inputs,
	)
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// Record stores the per-source outcomes of res and, when p is non-nil, the
// acquired document. Skipped results write nothing.
func (s *Store) Record(ctx context.Context, runID string, res acquire.FinalResult, p *types.Paper) error {
	if res.Skipped {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, o := range res.Outcomes {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO attempts
				(run_id, record_id, seq, source, status, reason, blocked, attempts, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, res.Record.ID, i, o.Source, string(o.Status), o.Reason,
			boolInt(o.Blocked), o.Attempts, o.Elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("recording attempt for %s: %w", res.Record.ID, err)
		}
	}

	if p != nil {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO acquired
				(record_id, run_id, source, source_url, pdf_path, size, sha256, acquired_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, runID, p.Source, p.SourceURL, p.PDFPath, p.Size, p.SHA256, formatTime(p.AcquiredAt),
		)
		if err != nil {
			return fmt.Errorf("recording acquisition of %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", res.Record.ID, err)
	}
	return nil
}

// FinishRun writes the final counts of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, sum acquire.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, skipped = ?, cancelled = ?
		WHERE id = ?`,
		formatTime(s.now()), sum.Succeeded, sum.Failed, sum.Skipped, sum.Cancelled, runID,
	)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Acquired returns the documents recorded as acquired whose files still
// exist, keyed by lower-cased record id. Entries whose file has been removed are left
// out so the record is fetched again.
func (s *Store) Acquired(ctx context.Context) (map[string]*types.Paper, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, source, source_url, pdf_path, size, sha256, acquired_at FROM acquired`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying acquired: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*types.Paper)
	for rows.Next() {
		var (
			p          types.Paper
			sourceURL  sql.NullString
			sha        sql.NullString
			acquiredAt string
		)
		if err := rows.Scan(&p.ID, &p.Source, &sourceURL, &p.PDFPath, &p.Size, &sha, &acquiredAt); err != nil {
			return nil, fmt.Errorf("scanning acquired row: %w", err)
		}
		if _, err := os.Stat(p.PDFPath); err != nil {
			continue
		}
		p.SourceURL = sourceURL.String
		p.SHA256 = sha.String
		p.AcquiredAt = parseTime(acquiredAt)
		out[strings.ToLower(p.ID)] = &p
	}
	return out, rows.Err()
}

// Runs returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, inputs, succeeded, failed, skipped, cancelled
		FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Inputs,
			&r.Succeeded, &r.Failed, &r.Skipped, &r.Cancelled); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		if finished.Valid {
			r.FinishedAt = parseTime(finished.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Attempts returns the recorded source outcomes of a run in record and
// source order.
func (s *Store) Attempts(ctx context.Context, runID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, record_id, seq, source, status, reason, blocked, attempts, elapsed_ms
		FROM attempts WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a       Attempt
			status  string
			reason  sql.NullString
			blocked int
			elapsed int64
		)
		if err := rows.Scan(&a.RunID, &a.RecordID, &a.Seq, &a.Source, &status, &reason,
			&blocked, &a.Attempts, &elapsed); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Status = acquire.Status(status)
		a.Reason = reason.String
		a.Blocked = blocked != 0
		a.Elapsed = time.Duration(elapsed) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}

// SourceStats counts recorded outcomes per source and status across all
// runs.
func (s *Store) SourceStats(ctx context.Context) (map[string]map[acquire.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, status, count(*) FROM attempts GROUP BY source, status`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying source stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[acquire.Status]int)
	for rows.Next() {
		var (
			source, status string
			n              int
		)
		if err := rows.Scan(&source, &status, &n); err != nil {
			return nil, fmt.Errorf("scanning source stats: %w", err)
		}
		if out[source] == nil {
			out[source] = make(map[acquire.Status]int)
		}
		out[source][acquire.Status(status)] = n
	}
	return out, rows.Err()
}

// timeLayout is fixed width so stored timestamps sort chronologically as
// text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
