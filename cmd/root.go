package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "dwh",
	Short: "dwh provisions a Redshift cluster and loads the song-play warehouse",
	Long: `dwh provisions an Amazon Redshift cluster, creates the staging and
star-schema tables, and loads them from the song and event logs in S3.

Typical session:
  dwh provision        create the cluster and record its endpoint
  dwh create-tables    drop and recreate every table
  dwh etl              copy the logs into staging and fill the star schema
  dwh teardown         delete the cluster`,
	SilenceUsage: true,
}

func Execute() {
	rootCmd.Version = version + " (" + commit + ", " + date + ")"
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.dwh/dwh.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides logging.level")
}
