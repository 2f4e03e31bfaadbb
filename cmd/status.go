package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/cluster"
	"github.com/sparkify/dwh/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cluster state and endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := openApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.eng.Status(ctx)
		if errors.Is(err, cluster.ErrClusterNotFound) {
			fmt.Printf("Cluster %s: not found\n", a.eng.Config.DWH.ClusterIdentifier)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println(ui.Title("Cluster " + st.ClusterIdentifier))
		fmt.Printf("  State:        %s\n", st.State)
		if st.AvailabilityStatus != "" {
			fmt.Printf("  Availability: %s\n", st.AvailabilityStatus)
		}
		fmt.Printf("  Nodes:        %d x %s\n", st.NumNodes, st.NodeType)
		if st.Endpoint != nil {
			fmt.Printf("  Endpoint:     %s:%d\n", st.Endpoint.Address, st.Endpoint.Port)
		}
		if st.Message != "" {
			fmt.Printf("  Message:      %s\n", st.Message)
		}
		if cfgHost := a.eng.Config.Cluster.Host; cfgHost != "" && st.Endpoint != nil && cfgHost != st.Endpoint.Address {
			fmt.Println(ui.Warn("  Config host " + cfgHost + " differs from the cluster endpoint; run 'dwh provision' to update it."))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
