package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/aws"
	"github.com/sparkify/dwh/internal/cluster"
	"github.com/sparkify/dwh/internal/ui"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the Redshift cluster and record its endpoint",
	Long: `Create the Redshift cluster described in the dwh section of the config,
wait until it is available, and write its host and port back to the
cluster section. An existing cluster with the same identifier is reused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{Exclusive: true})
		if err != nil {
			return err
		}
		defer a.Close()

		var ep *aws.Endpoint
		err = ui.RunWithSpinner(ctx, "Provisioning cluster "+a.eng.Config.DWH.ClusterIdentifier, func(ctx context.Context, report func(string)) error {
			var err error
			ep, err = a.eng.Provision(ctx, clusterReporter(report))
			return err
		})
		if err != nil {
			var se *cluster.StatusError
			if errors.As(err, &se) {
				fmt.Println(ui.Error(fmt.Sprintf("Cluster %s is %s; inspect it in the Redshift console.", se.ClusterID, se.Status)))
			}
			return err
		}

		fmt.Println(ui.Success("Cluster available at " + fmt.Sprintf("%s:%d", ep.Address, ep.Port)))
		fmt.Printf("Endpoint saved to %s\n", a.eng.ConfigPath)
		return nil
	},
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Delete the Redshift cluster without a final snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{Exclusive: true})
		if err != nil {
			return err
		}
		defer a.Close()

		id := a.eng.Config.DWH.ClusterIdentifier
		if err := a.eng.Teardown(ctx); err != nil {
			if errors.Is(err, cluster.ErrClusterNotFound) {
				fmt.Println(ui.Warn("Cluster " + id + " does not exist."))
			}
			return err
		}
		fmt.Println(ui.Success("Deletion of cluster " + id + " started."))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(teardownCmd)
}
