package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/config"
	"github.com/sparkify/dwh/internal/engine"
	"github.com/sparkify/dwh/internal/lock"
	"github.com/sparkify/dwh/internal/pipeline"
	"github.com/sparkify/dwh/internal/scheduler"
)

var (
	scheduleCron     string
	scheduleNoReset  bool
	scheduleValidate bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the load on a cron schedule until interrupted",
	Long: `Run the etl pipeline on a cron schedule. A run that is still going when
the next tick fires makes that tick a no-op. Each run takes the process
lock, so a manual command in progress also skips the tick.`,
	Example: `  dwh schedule --cron "0 3 * * *"
  dwh schedule --cron "@every 6h" --no-reset --validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{Console: true})
		if err != nil {
			return err
		}
		defer a.Close()

		lockPath := config.ExpandHome(lock.DefaultPath)
		opts := engine.ETLOptions{
			Options: pipeline.Options{SkipReset: scheduleNoReset, Validate: scheduleValidate},
		}
		job := func(ctx context.Context) error {
			if err := lock.Acquire(lockPath); err != nil {
				return err
			}
			defer lock.Release(lockPath)

			res, err := a.eng.ETL(ctx, opts, nil)
			if err != nil {
				return err
			}
			a.logger.Info("scheduled load complete", "statements", res.Steps)
			return nil
		}

		s, err := scheduler.New(scheduleCron, job, a.logger)
		if err != nil {
			return err
		}
		fmt.Printf("Scheduled load on %q; press Ctrl+C to stop.\n", scheduleCron)
		return s.Run(ctx)
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron schedule (five fields or a descriptor such as @hourly)")
	scheduleCmd.Flags().BoolVar(&scheduleNoReset, "no-reset", false, "keep existing tables between runs")
	scheduleCmd.Flags().BoolVar(&scheduleValidate, "validate", false, "run the data-quality checks after each load")
	_ = scheduleCmd.MarkFlagRequired("cron")
	rootCmd.AddCommand(scheduleCmd)
}
