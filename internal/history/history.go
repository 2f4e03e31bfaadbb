// Package history keeps a local SQLite ledger of pipeline runs and the
// statements each one executed.
package history

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

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	StepOK    = "ok"
	StepError = "error"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one invocation of a pipeline command.
type Run struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"` // zero while running
}

// Duration is the wall time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Step is one executed statement inside a run.
type Step struct {
	RunID     string        `json:"run_id"`
	Seq       int           `json:"seq"`
	Kind      string        `json:"kind"`
	Table     string        `json:"table"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	StartedAt time.Time     `json:"started_at"`
}

// Recorder is the write side of the ledger used by the pipeline.
type Recorder interface {
	RecordStep(ctx context.Context, step Step) error
}

// Store is the SQLite-backed ledger.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the ledger file if needed and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// One writer; the ledger is local to a single process at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating history: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a new running run.
func (s *Store) StartRun(ctx context.Context, command string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Command:   command,
		Status:    StatusRunning,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Command, run.Status, run.StartedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	return run, nil
}

// RecordStep appends a step to its run.
func (s *Store) RecordStep(ctx context.Context, step Step) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, seq, kind, table_name, status, error, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		step.RunID, step.Seq, step.Kind, step.Table, step.Status, step.Error,
		step.Duration.Milliseconds(), step.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recording step %s %s: %w", step.Kind, step.Table, err)
	}
	return nil
}

// FinishRun marks the run succeeded, or failed with runErr's message.
func (s *Store) FinishRun(ctx context.Context, run *Run, runErr error) error {
	run.Status = StatusSucceeded
	run.Error = ""
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}
	run.FinishedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		run.Status, run.Error, run.FinishedAt.Format(timeLayout), run.ID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, status, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns a single run.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, command, status, error, started_at, finished_at FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	return r, err
}

// Steps returns the steps of a run in execution order.
func (s *Store) Steps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, kind, table_name, status, error, duration_ms, started_at
		 FROM steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			st         Step
			durationMS int64
			startedAt  string
		)
		if err := rows.Scan(&st.RunID, &st.Seq, &st.Kind, &st.Table, &st.Status, &st.Error, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		st.Duration = time.Duration(durationMS) * time.Millisecond
		if st.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing step time: %w", err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r          Run
		startedAt  string
		finishedAt sql.NullString
	)
	if err := sc.Scan(&r.ID, &r.Command, &r.Status, &r.Error, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	var err error
	if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parsing run time: %w", err)
	}
	if finishedAt.Valid {
		if r.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
			return nil, fmt.Errorf("parsing run time: %w", err)
		}
	}
	return &r, nil
}

// Discard is a Recorder that drops every step.
type Discard struct{}

func (Discard) RecordStep(context.Context, Step) error { return nil }
