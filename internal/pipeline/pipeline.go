// Package pipeline loads S3 data into the staging tables and transforms it
// into the star schema.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sparkify/dwh/internal/config"
	"github.com/sparkify/dwh/internal/history"
	"github.com/sparkify/dwh/internal/metrics"
	"github.com/sparkify/dwh/internal/queries"
	"github.com/sparkify/dwh/internal/schema"
	"github.com/sparkify/dwh/internal/validation"
	"github.com/sparkify/dwh/internal/warehouse"
)

// Options controls a full run.
type Options struct {
	// SkipReset keeps existing tables instead of dropping and recreating them.
	SkipReset bool
	// Validate runs the data-quality checks after the inserts.
	Validate bool
}

// Result summarizes a finished run.
type Result struct {
	Steps      int
	Validation *validation.Result
}

// StepEvent is passed to Progress after every statement.
type StepEvent struct {
	Kind     queries.Kind
	Table    string
	Err      error
	Duration time.Duration
}

// Runner executes catalog statements on one session, one statement per
// commit. The caller owns the session and closes it.
type Runner struct {
	Session  warehouse.Session
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  metrics.Backend
	History  history.Recorder
	RunID    string
	Progress func(StepEvent)

	seq int
}

// NewRunner returns a runner with no-op metrics and history.
func NewRunner(sess warehouse.Session, cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		Session: sess,
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.Noop{},
		History: history.Discard{},
	}
}

var _ schema.Executor = (*Runner)(nil)

// Execute runs one statement and records its outcome in the log, metrics
// and run history.
func (r *Runner) Execute(ctx context.Context, stmt queries.Statement) error {
	r.seq++
	start := time.Now()
	r.Logger.Debug("executing", "run_id", r.RunID, "step", stmt.Kind, "table", stmt.Table)

	err := r.Session.Exec(ctx, stmt.SQL)
	r.observe(ctx, string(stmt.Kind), stmt.Table, start, err)
	return err
}

func (r *Runner) observe(ctx context.Context, kind, table string, start time.Time, err error) {
	d := time.Since(start)
	status, errText := history.StepOK, ""
	if err != nil {
		status, errText = history.StepError, err.Error()
		r.Logger.Error("step failed", "run_id", r.RunID, "step", kind, "table", table, "duration", d, "error", err)
	} else {
		r.Logger.Info("step complete", "run_id", r.RunID, "step", kind, "table", table, "duration", d)
	}

	metrics.RecordStep(r.Metrics, kind, status, d)

	if r.RunID != "" {
		herr := r.History.RecordStep(ctx, history.Step{
			RunID:     r.RunID,
			Seq:       r.seq,
			Kind:      kind,
			Table:     table,
			Status:    status,
			Error:     errText,
			Duration:  d,
			StartedAt: start,
		})
		if herr != nil {
			r.Logger.Warn("recording history step", "error", herr)
		}
	}

	if r.Progress != nil {
		r.Progress(StepEvent{Kind: queries.Kind(kind), Table: table, Err: err, Duration: d})
	}
}

// LoadStagingTables bulk-copies the S3 sources into the staging tables.
func (r *Runner) LoadStagingTables(ctx context.Context) error {
	stmts, err := queries.Copy(r.Config)
	if err != nil {
		return err
	}
	return r.runAll(ctx, stmts)
}

// InsertTables populates the fact and dimension tables from staging.
func (r *Runner) InsertTables(ctx context.Context) error {
	return r.runAll(ctx, queries.Insert())
}

// ResetTables drops and recreates every table.
func (r *Runner) ResetTables(ctx context.Context) error {
	return schema.Reset(ctx, r)
}

// Validate runs the data-quality checks, recording each as a check step.
func (r *Runner) Validate(ctx context.Context) (*validation.Result, error) {
	v := &validation.Validator{
		Session: r.Session,
		Callback: func(c validation.CheckResult) {
			var err error
			switch {
			case c.Err != nil:
				err = fmt.Errorf("%s: %w", c.Name, c.Err)
			case !c.Passed:
				err = fmt.Errorf("%s: %s", c.Name, c.Message)
			case c.Warning:
				r.Logger.Warn("check warning", "run_id", r.RunID, "check", c.Name, "table", c.Table, "count", c.Count)
			}
			r.seq++
			r.observe(ctx, string(queries.KindCheck), c.Table, time.Now().Add(-c.Duration), err)
		},
	}
	return v.Validate(ctx)
}

// Run drops and recreates the schema unless opts.SkipReset is set, loads
// staging, runs the inserts and optionally validates. The first failing
// statement aborts the run; committed statements are not rolled back.
func (r *Runner) Run(ctx context.Context, opts Options) (res *Result, err error) {
	res = &Result{}
	defer func() { res.Steps = r.seq }()

	if !opts.SkipReset {
		if err := r.ResetTables(ctx); err != nil {
			return res, err
		}
	}
	if err := r.LoadStagingTables(ctx); err != nil {
		return res, err
	}
	if err := r.InsertTables(ctx); err != nil {
		return res, err
	}

	if opts.Validate {
		res.Validation, err = r.Validate(ctx)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) runAll(ctx context.Context, stmts []queries.Statement) error {
	for _, stmt := range stmts {
		if err := r.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("%s %s: %w", stmt.Kind, stmt.Table, err)
		}
	}
	return nil
}
