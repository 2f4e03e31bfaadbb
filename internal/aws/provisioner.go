package aws

import (
	"context"
	"errors"
)

// Provisioner manages warehouse cluster lifecycle.
type Provisioner interface {
	Provision(ctx context.Context, plan ProvisionPlan) (*ProvisionResult, error)
	Status(ctx context.Context, clusterID string) (*ProvisionStatus, error)
	Teardown(ctx context.Context, clusterID string) error
}

var (
	// ErrClusterExists is returned by Provision when the identifier is taken.
	ErrClusterExists = errors.New("cluster already exists")
	// ErrClusterNotFound is returned by Status and Teardown for an unknown identifier.
	ErrClusterNotFound = errors.New("cluster not found")
)

// ProvisionPlan describes the cluster to create.
type ProvisionPlan struct {
	ClusterIdentifier string            `yaml:"cluster_identifier"`
	ClusterType       string            `yaml:"cluster_type"` // "single-node" or "multi-node"
	NodeType          string            `yaml:"node_type"`
	NumNodes          int               `yaml:"num_nodes"`
	DBName            string            `yaml:"db_name"`
	MasterUsername    string            `yaml:"master_username"`
	MasterPassword    string            `yaml:"-"`
	Port              int               `yaml:"port"`
	IAMRoleARNs       []string          `yaml:"iam_role_arns"`
	Tags              map[string]string `yaml:"tags,omitempty"`
}

// ProvisionResult holds the created resource identifiers.
type ProvisionResult struct {
	ClusterIdentifier string `yaml:"cluster_identifier"`
	State             string `yaml:"state"`
}

// Endpoint is the network address of an available cluster.
type Endpoint struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// ProvisionStatus describes the current state of a cluster.
type ProvisionStatus struct {
	ClusterIdentifier  string    `yaml:"cluster_identifier"`
	State              string    `yaml:"state"` // raw provider status, e.g. "creating", "available"
	AvailabilityStatus string    `yaml:"availability_status,omitempty"`
	NodeType           string    `yaml:"node_type,omitempty"`
	NumNodes           int       `yaml:"num_nodes,omitempty"`
	Message            string    `yaml:"message,omitempty"`
	Endpoint           *Endpoint `yaml:"endpoint,omitempty"`
}
