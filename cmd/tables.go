package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/ui"
)

var createTablesSkipProvision bool

var createTablesCmd = &cobra.Command{
	Use:   "create-tables",
	Short: "Drop and recreate the staging and star-schema tables",
	Long: `Make sure the cluster is available (provisioning it when needed), then
drop every table and create it again. Existing data is lost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{Exclusive: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if !createTablesSkipProvision {
			err := ui.RunWithSpinner(ctx, "Waiting for cluster "+a.eng.Config.DWH.ClusterIdentifier, func(ctx context.Context, report func(string)) error {
				_, err := a.eng.Provision(ctx, clusterReporter(report))
				return err
			})
			if err != nil {
				return err
			}
		}

		fmt.Println(ui.Title("Resetting tables"))
		if err := a.eng.CreateTables(ctx, true, nil, printStep); err != nil {
			return err
		}
		fmt.Println(ui.Success("Tables created."))
		return nil
	},
}

func init() {
	createTablesCmd.Flags().BoolVar(&createTablesSkipProvision, "skip-provision", false, "use the endpoint already in the config")
	rootCmd.AddCommand(createTablesCmd)
}
