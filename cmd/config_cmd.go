package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and validate the dwh configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  AWS:\n")
		fmt.Printf("    Region:         %s\n", cfg.AWS.Region)
		if cfg.AWS.Key != "" {
			fmt.Printf("    Key:            %s\n", maskSecret(cfg.AWS.Key))
			fmt.Printf("    Secret:         %s\n", maskSecret(cfg.AWS.Secret))
		} else {
			fmt.Printf("    Profile:        %s\n", orDefault(cfg.AWS.Profile, "(default chain)"))
		}
		fmt.Println()
		fmt.Printf("  Cluster:\n")
		fmt.Printf("    Identifier:     %s\n", cfg.DWH.ClusterIdentifier)
		fmt.Printf("    Type:           %s\n", cfg.DWH.ClusterType)
		fmt.Printf("    Nodes:          %d x %s\n", cfg.DWH.NumNodes, cfg.DWH.NodeType)
		fmt.Printf("    Host:           %s\n", orDefault(cfg.Cluster.Host, "(not provisioned)"))
		fmt.Printf("    Port:           %d\n", cfg.Cluster.Port)
		fmt.Printf("    Database:       %s\n", cfg.Cluster.DBName)
		fmt.Printf("    User:           %s\n", cfg.Cluster.DBUser)
		fmt.Printf("    Password:       %s\n", maskSecret(cfg.Cluster.DBPassword))
		fmt.Printf("    IAM role:       %s\n", cfg.IAMRole.ARN)
		fmt.Println()
		fmt.Printf("  Sources:\n")
		fmt.Printf("    Log data:       %s\n", cfg.S3.LogData)
		fmt.Printf("    Log JSONPaths:  %s\n", orDefault(cfg.S3.LogJSONPath, "auto"))
		fmt.Printf("    Song data:      %s\n", cfg.S3.SongData)
		fmt.Println()
		fmt.Printf("  Wait:             every %s, up to %s\n", cfg.Wait.PollInterval, cfg.Wait.Timeout)
		fmt.Printf("  Logs:             %s (%s)\n", cfg.Logging.Directory, cfg.Logging.Level)
		if cfg.History.Disabled {
			fmt.Printf("  History:          disabled\n")
		} else {
			fmt.Printf("  History:          %s\n", cfg.History.Path)
		}
		if cfg.Metrics.Datadog {
			fmt.Printf("  Metrics:          datadog (job %s, tags %s)\n", cfg.Metrics.JobName, strings.Join(cfg.Metrics.Tags, ","))
		}

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			var verr *config.ValidationError
			if errors.As(err, &verr) {
				fmt.Println("Validation errors:")
				for _, p := range verr.Problems {
					fmt.Printf("  - %s\n", p)
				}
			}
			return err
		}

		fmt.Println("Configuration is valid.")
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
