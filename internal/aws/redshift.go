package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/redshift/types"
)

// redshiftAPI is the subset of the Redshift client used by RedshiftProvisioner.
type redshiftAPI interface {
	CreateCluster(ctx context.Context, in *redshift.CreateClusterInput, optFns ...func(*redshift.Options)) (*redshift.CreateClusterOutput, error)
	DescribeClusters(ctx context.Context, in *redshift.DescribeClustersInput, optFns ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
	DeleteCluster(ctx context.Context, in *redshift.DeleteClusterInput, optFns ...func(*redshift.Options)) (*redshift.DeleteClusterOutput, error)
}

// RedshiftProvisioner implements Provisioner using Amazon Redshift.
type RedshiftProvisioner struct {
	client redshiftAPI
}

// NewRedshiftProvisioner creates a new Redshift provisioner.
func NewRedshiftProvisioner(ctx context.Context, creds Credentials) (*RedshiftProvisioner, error) {
	cfg, err := LoadConfig(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &RedshiftProvisioner{client: redshift.NewFromConfig(cfg)}, nil
}

// Provision creates a Redshift cluster. It returns as soon as the request is
// accepted; the cluster is still creating at that point.
func (p *RedshiftProvisioner) Provision(ctx context.Context, plan ProvisionPlan) (*ProvisionResult, error) {
	out, err := p.client.CreateCluster(ctx, buildCreateInput(plan))
	if err != nil {
		return nil, fmt.Errorf("creating cluster %s: %w", plan.ClusterIdentifier, translateError(err))
	}

	result := &ProvisionResult{ClusterIdentifier: plan.ClusterIdentifier}
	if out.Cluster != nil {
		result.State = aws.ToString(out.Cluster.ClusterStatus)
	}
	return result, nil
}

// Status describes a single cluster.
func (p *RedshiftProvisioner) Status(ctx context.Context, clusterID string) (*ProvisionStatus, error) {
	out, err := p.client.DescribeClusters(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(clusterID),
	})
	if err != nil {
		return nil, fmt.Errorf("describing cluster %s: %w", clusterID, translateError(err))
	}
	if len(out.Clusters) == 0 {
		return nil, fmt.Errorf("describing cluster %s: %w", clusterID, ErrClusterNotFound)
	}
	return statusFromCluster(out.Clusters[0]), nil
}

// Teardown deletes the cluster without taking a final snapshot.
func (p *RedshiftProvisioner) Teardown(ctx context.Context, clusterID string) error {
	_, err := p.client.DeleteCluster(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(clusterID),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("deleting cluster %s: %w", clusterID, translateError(err))
	}
	return nil
}

func buildCreateInput(plan ProvisionPlan) *redshift.CreateClusterInput {
	in := &redshift.CreateClusterInput{
		ClusterIdentifier:  aws.String(plan.ClusterIdentifier),
		ClusterType:        aws.String(plan.ClusterType),
		NodeType:           aws.String(plan.NodeType),
		DBName:             aws.String(plan.DBName),
		MasterUsername:     aws.String(plan.MasterUsername),
		MasterUserPassword: aws.String(plan.MasterPassword),
		IamRoles:           plan.IAMRoleARNs,
	}
	// Redshift rejects NumberOfNodes on single-node clusters.
	if plan.ClusterType != "single-node" && plan.NumNodes > 0 {
		in.NumberOfNodes = aws.Int32(int32(plan.NumNodes))
	}
	if plan.Port > 0 {
		in.Port = aws.Int32(int32(plan.Port))
	}

	keys := make([]string, 0, len(plan.Tags))
	for k := range plan.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		in.Tags = append(in.Tags, types.Tag{Key: aws.String(k), Value: aws.String(plan.Tags[k])})
	}
	return in
}

func statusFromCluster(c types.Cluster) *ProvisionStatus {
	st := &ProvisionStatus{
		ClusterIdentifier:  aws.ToString(c.ClusterIdentifier),
		State:              aws.ToString(c.ClusterStatus),
		AvailabilityStatus: aws.ToString(c.ClusterAvailabilityStatus),
		NodeType:           aws.ToString(c.NodeType),
		NumNodes:           int(aws.ToInt32(c.NumberOfNodes)),
	}
	if c.Endpoint != nil && aws.ToString(c.Endpoint.Address) != "" {
		st.Endpoint = &Endpoint{
			Address: aws.ToString(c.Endpoint.Address),
			Port:    int(aws.ToInt32(c.Endpoint.Port)),
		}
	}
	if c.ClusterStatus != nil && c.ClusterAvailabilityStatus != nil {
		st.Message = fmt.Sprintf("%s (%s)", st.State, st.AvailabilityStatus)
	}
	return st
}

// translateError maps Redshift faults onto the package sentinels, keeping the
// provider error in the chain.
func translateError(err error) error {
	var exists *types.ClusterAlreadyExistsFault
	if errors.As(err, &exists) {
		return fmt.Errorf("%w: %w", ErrClusterExists, err)
	}
	var notFound *types.ClusterNotFoundFault
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", ErrClusterNotFound, err)
	}
	return err
}
