package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long: `Walk through prompts to create a dwh configuration file at ~/.dwh/dwh.yaml.
Secrets default to ${ENV:...} references so the file holds no credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)
		cfgPath := configPath()

		if _, err := os.Stat(cfgPath); err == nil {
			if answer := prompt(reader, cfgPath+" exists; overwrite? (y/N)", "n"); !strings.EqualFold(answer, "y") {
				fmt.Println("Aborted.")
				return nil
			}
		}

		fmt.Println("dwh Configuration Setup")
		fmt.Println("=======================")
		fmt.Println()

		fmt.Println("AWS")
		fmt.Println("---")
		region := prompt(reader, "Region", config.DefaultRegion)
		key := prompt(reader, "Access key", "${ENV:AWS_ACCESS_KEY_ID}")
		secret := prompt(reader, "Secret key", "${ENV:AWS_SECRET_ACCESS_KEY}")
		fmt.Println()

		fmt.Println("Cluster")
		fmt.Println("-------")
		clusterID := prompt(reader, "Cluster identifier", "dwhCluster")
		clusterType := prompt(reader, "Cluster type (single-node/multi-node)", config.ClusterTypeMultiNode)
		nodeType := prompt(reader, "Node type", "dc2.large")
		numNodesStr := prompt(reader, "Number of nodes", defaultNodes(clusterType))
		numNodes, err := strconv.Atoi(numNodesStr)
		if err != nil {
			return fmt.Errorf("invalid number of nodes: %s", numNodesStr)
		}
		dbName := prompt(reader, "Database name", "dwh")
		dbUser := prompt(reader, "Master user", "dwhuser")
		dbPassword := prompt(reader, "Master password", "${ENV:DWH_DB_PASSWORD}")
		portStr := prompt(reader, "Port", strconv.Itoa(config.DefaultPort))
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid port: %s", portStr)
		}
		roleARN := prompt(reader, "IAM role ARN for S3 reads", "")
		fmt.Println()

		fmt.Println("Sources")
		fmt.Println("-------")
		logData := prompt(reader, "Event logs", "s3://udacity-dend/log_data")
		logJSONPath := prompt(reader, "Event log JSONPaths file (empty for auto)", "s3://udacity-dend/log_json_path.json")
		songData := prompt(reader, "Song data", "s3://udacity-dend/song_data")
		fmt.Println()

		cfg := &config.Config{
			Version: config.CurrentVersion,
			AWS:     config.AWSConfig{Key: key, Secret: secret, Region: region},
			DWH: config.DWHConfig{
				ClusterType:       clusterType,
				NodeType:          nodeType,
				NumNodes:          numNodes,
				ClusterIdentifier: clusterID,
			},
			Cluster: config.ClusterConfig{
				DBName:     dbName,
				DBUser:     dbUser,
				DBPassword: dbPassword,
				Port:       port,
			},
			IAMRole: config.IAMRoleConfig{ARN: roleARN},
			S3: config.S3Config{
				LogData:     logData,
				LogJSONPath: logJSONPath,
				SongData:    songData,
			},
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Config written to %s\n", cfgPath)
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  dwh preflight       check credentials, role and S3 sources")
		fmt.Println("  dwh provision       create the cluster")
		fmt.Println("  dwh create-tables   create the tables")
		fmt.Println("  dwh etl             load the warehouse")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func defaultNodes(clusterType string) string {
	if clusterType == config.ClusterTypeSingleNode {
		return "1"
	}
	return "4"
}
