package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/engine"
	"github.com/sparkify/dwh/internal/pipeline"
	"github.com/sparkify/dwh/internal/ui"
	"github.com/sparkify/dwh/internal/validation"
)

var (
	etlNoReset   bool
	etlValidate  bool
	etlPreflight bool
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Load the staging tables from S3 and fill the star schema",
	Long: `Recreate the tables, COPY the event and song logs into staging, then
insert into songplays, users, songs, artists and time. Each statement
commits on its own; the first failure stops the load.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{Exclusive: true})
		if err != nil {
			return err
		}
		defer a.Close()

		opts := engine.ETLOptions{
			Options:   pipeline.Options{SkipReset: etlNoReset, Validate: etlValidate},
			Preflight: etlPreflight,
		}
		fmt.Println(ui.Title("Loading warehouse"))
		res, err := a.eng.ETL(ctx, opts, printStep)
		if res != nil && res.Validation != nil {
			printValidation(res.Validation)
		}
		if err != nil {
			if errors.Is(err, engine.ErrPreflightFailed) {
				fmt.Println(ui.Error("Preflight failed; run 'dwh preflight' for details."))
			}
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Load complete: %d statements.", res.Steps)))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the data-quality checks against the loaded tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.eng.Verify(ctx)
		if res != nil {
			printValidation(res)
		}
		return err
	},
}

func printValidation(res *validation.Result) {
	fmt.Println(ui.Title("Data-quality checks"))
	for _, c := range res.Checks {
		switch {
		case c.Warning:
			fmt.Printf("  %s %-26s %s\n", ui.Warn("!"), c.Name, ui.Warn(c.Message))
		case !c.Enforced:
			fmt.Printf("  %s %-26s %d rows\n", ui.Dim("-"), c.Name, c.Count)
		case c.Passed:
			fmt.Printf("  %s %s\n", ui.Mark(true), c.Name)
		default:
			fmt.Printf("  %s %-26s %s\n", ui.Mark(false), c.Name, ui.Error(c.Message))
		}
	}
	if res.Status == validation.StatusPassed {
		msg := "All checks passed."
		if n := len(res.Warnings()); n > 0 {
			msg = fmt.Sprintf("All checks passed with %d warning(s).", n)
		}
		fmt.Println(ui.Success(msg))
	} else {
		fmt.Println(ui.Error(fmt.Sprintf("%d check(s) failed.", len(res.Failed()))))
	}
}

func init() {
	etlCmd.Flags().BoolVar(&etlNoReset, "no-reset", false, "keep existing tables instead of dropping and recreating them")
	etlCmd.Flags().BoolVar(&etlValidate, "validate", false, "run the data-quality checks after the load")
	etlCmd.Flags().BoolVar(&etlPreflight, "preflight", false, "check credentials, role and S3 sources before loading")
	rootCmd.AddCommand(etlCmd)
	rootCmd.AddCommand(verifyCmd)
}
