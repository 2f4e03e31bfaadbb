package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/engine"
	"github.com/sparkify/dwh/internal/ui"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check AWS credentials, the IAM role and the S3 sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.eng.Preflight(ctx)
		if err != nil {
			return err
		}

		if res.Identity != nil {
			fmt.Printf("Account: %s\nARN:     %s\n\n", res.Identity.Account, res.Identity.ARN)
		}
		for _, c := range res.Checks {
			line := fmt.Sprintf("  %s %-13s %s", ui.Mark(c.OK), c.Name, ui.Dim(c.Target))
			if !c.OK {
				line += "  " + ui.Error(c.Detail)
			}
			fmt.Println(line)
		}
		if !res.OK() {
			return engine.ErrPreflightFailed
		}
		fmt.Println(ui.Success("All preflight checks passed."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(preflightCmd)
}
