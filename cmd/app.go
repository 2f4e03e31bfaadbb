package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sparkify/dwh/internal/aws"
	"github.com/sparkify/dwh/internal/config"
	"github.com/sparkify/dwh/internal/engine"
	"github.com/sparkify/dwh/internal/lock"
	"github.com/sparkify/dwh/internal/logging"
	"github.com/sparkify/dwh/internal/pipeline"
	"github.com/sparkify/dwh/internal/ui"
)

// app is what a command runs against: the engine plus the resources it
// must release on exit.
type app struct {
	eng      *engine.Engine
	logger   *slog.Logger
	logFile  io.Closer
	lockPath string
}

// configPath returns the --config value or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.ExpandHome(config.DefaultPath)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// appOptions tunes openApp per command.
type appOptions struct {
	// Exclusive takes the process lock; set by commands that change the warehouse.
	Exclusive bool
	// Console always echoes logs to stdout, even on a terminal.
	Console bool
}

// openApp loads and validates the config, sets up logging and opens the
// engine.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	// The spinner owns the terminal; logs then go to the file only.
	var console io.Writer = os.Stdout
	if ui.IsTerminal() && !opts.Console {
		console = nil
	}
	logger, logFile, err := logging.Setup(level, cfg.Logging.Directory, console)
	if err != nil {
		return nil, err
	}

	a := &app{logger: logger, logFile: logFile}
	if opts.Exclusive {
		a.lockPath = config.ExpandHome(lock.DefaultPath)
		if err := lock.Acquire(a.lockPath); err != nil {
			logFile.Close()
			return nil, err
		}
	}

	a.eng = engine.Open(ctx, cfg, path, logger)
	return a, nil
}

func (a *app) Close() {
	if err := a.eng.Close(); err != nil {
		a.logger.Warn("closing engine", "error", err)
	}
	if a.lockPath != "" {
		if err := lock.Release(a.lockPath); err != nil {
			a.logger.Warn("releasing lock", "path", a.lockPath, "error", err)
		}
	}
	a.logFile.Close()
}

// clusterReporter forwards each observed cluster status to the spinner.
func clusterReporter(report func(string)) func(*aws.ProvisionStatus) {
	return func(st *aws.ProvisionStatus) {
		if st.AvailabilityStatus != "" && st.AvailabilityStatus != st.State {
			report(fmt.Sprintf("%s (%s)", st.State, st.AvailabilityStatus))
			return
		}
		report(st.State)
	}
}

// printStep prints one executed statement.
func printStep(ev pipeline.StepEvent) {
	line := fmt.Sprintf("  %s %-6s %-15s %s", ui.Mark(ev.Err == nil), ev.Kind, ev.Table, ui.Dim(ev.Duration.Round(time.Millisecond).String()))
	if ev.Err != nil {
		line += "  " + ui.Error(ev.Err.Error())
	}
	fmt.Println(line)
}
