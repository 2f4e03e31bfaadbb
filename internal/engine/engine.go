// Package engine wires configuration, the cluster control plane, the
// warehouse session and the run ledger together for the CLI.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sparkify/dwh/internal/aws"
	"github.com/sparkify/dwh/internal/cluster"
	"github.com/sparkify/dwh/internal/config"
	"github.com/sparkify/dwh/internal/history"
	"github.com/sparkify/dwh/internal/metrics"
	"github.com/sparkify/dwh/internal/metrics/datadog"
	"github.com/sparkify/dwh/internal/pipeline"
	"github.com/sparkify/dwh/internal/validation"
	"github.com/sparkify/dwh/internal/warehouse"
)

// ErrNoEndpoint is returned when a command needs the cluster host but the
// config has none yet.
var ErrNoEndpoint = errors.New("cluster endpoint unknown; run 'dwh provision' first")

// ErrPreflightFailed is returned by ETL when a preflight check fails.
var ErrPreflightFailed = errors.New("preflight checks failed")

// ErrValidationFailed is returned when a data-quality check fails.
var ErrValidationFailed = errors.New("data-quality checks failed")

// Engine is the core shared by all commands.
type Engine struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Metrics    metrics.Backend
	History    *history.Store // nil when history is disabled

	// Factories, replaced in tests.
	NewProvisioner func(ctx context.Context) (aws.Provisioner, error)
	NewAWSClient   func(ctx context.Context) (aws.Client, error)
	Connect        func(ctx context.Context, connStr string) (warehouse.Session, error)
}

// New creates an engine for an already loaded config, using the real AWS and
// warehouse clients with no metrics and no history.
func New(cfg *config.Config, cfgPath string, logger *slog.Logger) *Engine {
	e := &Engine{
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
		Metrics:    metrics.Noop{},
	}
	creds := aws.Credentials{
		AccessKeyID:     cfg.AWS.Key,
		SecretAccessKey: cfg.AWS.Secret,
		Profile:         cfg.AWS.Profile,
		Region:          cfg.AWS.Region,
	}
	e.NewProvisioner = func(ctx context.Context) (aws.Provisioner, error) {
		return aws.NewRedshiftProvisioner(ctx, creds)
	}
	e.NewAWSClient = func(ctx context.Context) (aws.Client, error) {
		return aws.NewRealClient(ctx, creds)
	}
	e.Connect = func(ctx context.Context, connStr string) (warehouse.Session, error) {
		return warehouse.Connect(ctx, connStr)
	}
	return e
}

// Open creates an engine for cfg and starts the metrics backend and the run
// ledger it asks for. A ledger that cannot be opened is logged and skipped.
func Open(ctx context.Context, cfg *config.Config, cfgPath string, logger *slog.Logger) *Engine {
	e := New(cfg, cfgPath, logger)

	if cfg.Metrics.Datadog {
		e.Metrics = datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.JobName,
			Tags:       cfg.Metrics.Tags,
			FlushEvery: cfg.Metrics.FlushEvery,
		})
	}
	if !cfg.History.Disabled {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			logger.Warn("run history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			e.History = store
		}
	}
	return e
}

// Close flushes metrics and closes the ledger.
func (e *Engine) Close() error {
	var errs []error
	if e.Metrics != nil {
		if err := e.Metrics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("flushing metrics: %w", err))
		}
	}
	if e.History != nil {
		if err := e.History.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing history: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) clusterManager(ctx context.Context) (*cluster.Manager, error) {
	prov, err := e.NewProvisioner(ctx)
	if err != nil {
		return nil, err
	}
	return cluster.NewManager(prov, e.Config, e.Logger), nil
}

// Provision creates the cluster if needed, waits for it and saves its
// endpoint to the config file.
func (e *Engine) Provision(ctx context.Context, callback cluster.StatusCallback) (*aws.Endpoint, error) {
	var ep *aws.Endpoint
	err := e.track(ctx, "provision", func(string) error {
		var err error
		ep, err = e.ensureEndpoint(ctx, callback)
		return err
	})
	return ep, err
}

func (e *Engine) ensureEndpoint(ctx context.Context, callback cluster.StatusCallback) (*aws.Endpoint, error) {
	mgr, err := e.clusterManager(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ep, err := mgr.EnsureEndpoint(ctx, e.ConfigPath, callback)
	e.Metrics.ObserveHistogram(metrics.ClusterWaitSeconds, time.Since(start).Seconds(), nil)
	return ep, err
}

// CreateTables makes sure the cluster is up, unless skipProvision is set,
// then drops and recreates every table.
func (e *Engine) CreateTables(ctx context.Context, skipProvision bool, callback cluster.StatusCallback, progress func(pipeline.StepEvent)) error {
	return e.track(ctx, "create-tables", func(runID string) error {
		if !skipProvision {
			if _, err := e.ensureEndpoint(ctx, callback); err != nil {
				return err
			}
		}
		return e.withRunner(ctx, runID, progress, func(r *pipeline.Runner) error {
			return r.ResetTables(ctx)
		})
	})
}

// ETLOptions controls the load command.
type ETLOptions struct {
	pipeline.Options
	Preflight bool
}

// ETL runs the staging load and the star-schema inserts.
func (e *Engine) ETL(ctx context.Context, opts ETLOptions, progress func(pipeline.StepEvent)) (*pipeline.Result, error) {
	var res *pipeline.Result
	err := e.track(ctx, "etl", func(runID string) error {
		if opts.Preflight {
			pre, err := e.Preflight(ctx)
			if err != nil {
				return err
			}
			if !pre.OK() {
				return fmt.Errorf("%w: %v", ErrPreflightFailed, pre.Errors())
			}
		}
		return e.withRunner(ctx, runID, progress, func(r *pipeline.Runner) error {
			var err error
			res, err = r.Run(ctx, opts.Options)
			if err != nil {
				return err
			}
			if res.Validation != nil && res.Validation.Status != validation.StatusPassed {
				return ErrValidationFailed
			}
			return nil
		})
	})
	return res, err
}

// Verify runs the data-quality checks against the loaded tables.
func (e *Engine) Verify(ctx context.Context) (*validation.Result, error) {
	var res *validation.Result
	err := e.track(ctx, "verify", func(runID string) error {
		return e.withRunner(ctx, runID, nil, func(r *pipeline.Runner) error {
			var err error
			res, err = r.Validate(ctx)
			if err != nil {
				return err
			}
			if res.Status != validation.StatusPassed {
				return ErrValidationFailed
			}
			return nil
		})
	})
	return res, err
}

// Teardown deletes the cluster without a final snapshot.
func (e *Engine) Teardown(ctx context.Context) error {
	return e.track(ctx, "teardown", func(string) error {
		mgr, err := e.clusterManager(ctx)
		if err != nil {
			return err
		}
		return mgr.Delete(ctx)
	})
}

// Status describes the cluster.
func (e *Engine) Status(ctx context.Context) (*aws.ProvisionStatus, error) {
	mgr, err := e.clusterManager(ctx)
	if err != nil {
		return nil, err
	}
	return mgr.Describe(ctx)
}

// Preflight checks credentials, the role and the S3 sources.
func (e *Engine) Preflight(ctx context.Context) (*aws.PreflightResult, error) {
	client, err := e.NewAWSClient(ctx)
	if err != nil {
		return nil, err
	}
	return aws.RunPreflight(ctx, client, aws.PreflightInput{
		RoleARN:     e.Config.IAMRole.ARN,
		LogData:     e.Config.S3.LogData,
		LogJSONPath: e.Config.S3.LogJSONPath,
		SongData:    e.Config.S3.SongData,
	})
}

// withRunner opens a session, hands a runner to fn and always closes the
// session afterwards.
func (e *Engine) withRunner(ctx context.Context, runID string, progress func(pipeline.StepEvent), fn func(*pipeline.Runner) error) (err error) {
	if !e.Config.HasEndpoint() {
		return ErrNoEndpoint
	}
	sess, err := e.Connect(ctx, e.Config.ConnString())
	if err != nil {
		return err
	}
	defer func() {
		// Close on a fresh context so a cancelled run still releases the connection.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if cerr := sess.Close(closeCtx); cerr != nil {
			e.Logger.Warn("closing warehouse session", "error", cerr)
		}
	}()

	r := pipeline.NewRunner(sess, e.Config, e.Logger)
	r.Metrics = e.Metrics
	r.RunID = runID
	r.Progress = progress
	if e.History != nil {
		r.History = e.History
	}
	return fn(r)
}

// track records fn as a run in the ledger when one is open.
func (e *Engine) track(ctx context.Context, command string, fn func(runID string) error) error {
	if e.History == nil {
		return fn("")
	}

	run, err := e.History.StartRun(ctx, command)
	if err != nil {
		e.Logger.Warn("recording run start", "command", command, "error", err)
		return fn("")
	}
	e.Logger.Info("run started", "run_id", run.ID, "command", command)

	runErr := fn(run.ID)

	if err := e.History.FinishRun(context.WithoutCancel(ctx), run, runErr); err != nil {
		e.Logger.Warn("recording run finish", "run_id", run.ID, "error", err)
	}
	e.Logger.Info("run finished", "run_id", run.ID, "command", command, "status", run.Status)
	return runErr
}
