package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.dwh/dwh.yaml"

	DefaultRegion       = "us-west-2"
	DefaultPort         = 5439
	DefaultPollInterval = 10 * time.Second
	DefaultWaitTimeout  = 30 * time.Minute

	ClusterTypeSingleNode = "single-node"
	ClusterTypeMultiNode  = "multi-node"
)

// Config is the top-level configuration. Sections follow the layout of the
// warehouse settings file: credentials, cluster sizing, database connection,
// access role and storage locations.
type Config struct {
	Version int           `yaml:"version"`
	AWS     AWSConfig     `yaml:"aws"`
	DWH     DWHConfig     `yaml:"dwh"`
	Cluster ClusterConfig `yaml:"cluster"`
	IAMRole IAMRoleConfig `yaml:"iam_role"`
	S3      S3Config      `yaml:"s3"`
	Wait    WaitConfig    `yaml:"wait,omitempty"`
	Logging LogConfig     `yaml:"logging,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
}

// AWSConfig holds control-plane credentials.
type AWSConfig struct {
	Key     string `yaml:"key,omitempty"`
	Secret  string `yaml:"secret,omitempty"`
	Region  string `yaml:"region,omitempty"`
	Profile string `yaml:"profile,omitempty"` // used when key/secret are empty
}

// DWHConfig describes the cluster to provision.
type DWHConfig struct {
	ClusterType       string `yaml:"cluster_type"` // single-node or multi-node
	NodeType          string `yaml:"node_type"`
	NumNodes          int    `yaml:"num_nodes"`
	ClusterIdentifier string `yaml:"cluster_identifier"`
}

// ClusterConfig holds the database connection. Host is written back once the
// cluster becomes available.
type ClusterConfig struct {
	Host       string `yaml:"host"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	Port       int    `yaml:"port"`
	SSLMode    string `yaml:"ssl_mode,omitempty"`
}

// IAMRoleConfig names the role the warehouse assumes to read from S3.
type IAMRoleConfig struct {
	ARN string `yaml:"arn"`
}

// S3Config lists the bulk-ingestion sources.
type S3Config struct {
	LogData     string `yaml:"log_data"`
	LogJSONPath string `yaml:"log_jsonpath,omitempty"`
	SongData    string `yaml:"song_data"`
	Region      string `yaml:"region,omitempty"`
}

// WaitConfig bounds the cluster availability poll.
type WaitConfig struct {
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`     // debug, info, warn, error
	Directory string `yaml:"directory,omitempty"` // default ~/.dwh/logs/
}

// MetricsConfig toggles the Datadog backend.
type MetricsConfig struct {
	Datadog    bool          `yaml:"datadog,omitempty"`
	JobName    string        `yaml:"job_name,omitempty"`
	Tags       []string      `yaml:"tags,omitempty"`
	FlushEvery time.Duration `yaml:"flush_every,omitempty"`
}

// HistoryConfig locates the local run ledger.
type HistoryConfig struct {
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}
	return cfg, nil
}

// Parse decodes config bytes and applies defaults without resolving secrets.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config to path, creating its directory. The file holds
// credentials, so it is written owner-only.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.AWS.Region == "" {
		c.AWS.Region = DefaultRegion
	}
	if c.DWH.ClusterType == "" {
		c.DWH.ClusterType = ClusterTypeMultiNode
	}
	if c.Cluster.Port == 0 {
		c.Cluster.Port = DefaultPort
	}
	if c.Cluster.SSLMode == "" {
		c.Cluster.SSLMode = "prefer"
	}
	if c.Wait.PollInterval <= 0 {
		c.Wait.PollInterval = DefaultPollInterval
	}
	if c.Wait.Timeout <= 0 {
		c.Wait.Timeout = DefaultWaitTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.dwh/logs/")
	}
	if c.Metrics.JobName == "" {
		c.Metrics.JobName = "dwh"
	}
	if c.Metrics.FlushEvery <= 0 {
		c.Metrics.FlushEvery = 60 * time.Second
	}
	if c.History.Path == "" {
		c.History.Path = ExpandHome("~/.dwh/history.db")
	}
}

// Validate reports every missing or inconsistent field at once.
func (c *Config) Validate() error {
	var problems []string

	required := []struct {
		name, value string
	}{
		{"dwh.cluster_identifier", c.DWH.ClusterIdentifier},
		{"dwh.node_type", c.DWH.NodeType},
		{"cluster.db_name", c.Cluster.DBName},
		{"cluster.db_user", c.Cluster.DBUser},
		{"cluster.db_password", c.Cluster.DBPassword},
		{"iam_role.arn", c.IAMRole.ARN},
		{"s3.log_data", c.S3.LogData},
		{"s3.song_data", c.S3.SongData},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.name+" is required")
		}
	}

	switch c.DWH.ClusterType {
	case ClusterTypeSingleNode:
		if c.DWH.NumNodes < 1 {
			problems = append(problems, "dwh.num_nodes must be at least 1")
		} else if c.DWH.NumNodes > 1 {
			problems = append(problems, "dwh.num_nodes must be 1 for a single-node cluster")
		}
	case ClusterTypeMultiNode:
		if c.DWH.NumNodes < 2 {
			problems = append(problems, "dwh.num_nodes must be at least 2 for a multi-node cluster")
		}
	default:
		problems = append(problems, fmt.Sprintf("dwh.cluster_type %q must be %s or %s",
			c.DWH.ClusterType, ClusterTypeSingleNode, ClusterTypeMultiNode))
	}

	for _, loc := range []struct{ name, value string }{
		{"s3.log_data", c.S3.LogData},
		{"s3.log_jsonpath", c.S3.LogJSONPath},
		{"s3.song_data", c.S3.SongData},
	} {
		if loc.value != "" && !strings.HasPrefix(loc.value, "s3://") {
			problems = append(problems, loc.name+" must be an s3:// URI")
		}
	}

	if c.IAMRole.ARN != "" && !strings.HasPrefix(c.IAMRole.ARN, "arn:") {
		problems = append(problems, "iam_role.arn must be an ARN")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// HasEndpoint reports whether the cluster host has been discovered.
func (c *Config) HasEndpoint() bool {
	return c.Cluster.Host != ""
}

// ConnString builds a Postgres-protocol URL for the warehouse.
func (c *Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Cluster.DBUser, c.Cluster.DBPassword),
		Host:   net.JoinHostPort(c.Cluster.Host, strconv.Itoa(c.Cluster.Port)),
		Path:   "/" + c.Cluster.DBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.Cluster.SSLMode)
	q.Set("application_name", "dwh")
	u.RawQuery = q.Encode()
	return u.String()
}

var secretPattern = regexp.MustCompile(`\$\{(ENV|VAULT|AWS_SM):([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.AWS.Key, err = ResolveValue(c.AWS.Key)
	if err != nil {
		return fmt.Errorf("aws key: %w", err)
	}
	c.AWS.Secret, err = ResolveValue(c.AWS.Secret)
	if err != nil {
		return fmt.Errorf("aws secret: %w", err)
	}
	c.Cluster.DBPassword, err = ResolveValue(c.Cluster.DBPassword)
	if err != nil {
		return fmt.Errorf("db password: %w", err)
	}
	return nil
}

// ResolveValue resolves secret references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	provider := matches[1]
	ref := matches[2]

	switch provider {
	case "ENV":
		v := os.Getenv(ref)
		if v == "" {
			return "", fmt.Errorf("environment variable %s not set", ref)
		}
		return v, nil
	case "VAULT":
		return resolveVault(ref)
	case "AWS_SM":
		return resolveAWSSecretsManager(ref)
	default:
		return "", fmt.Errorf("unknown secrets provider: %s", provider)
	}
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
