package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sparkify/dwh/internal/aws"
	"github.com/sparkify/dwh/internal/config"
)

// StatusAvailable is the provider status of a cluster ready for connections.
const StatusAvailable = "available"

// StatusCallback receives every status observed while waiting.
type StatusCallback func(status *aws.ProvisionStatus)

// Manager drives the cluster described by the dwh and cluster config sections.
type Manager struct {
	prov   aws.Provisioner
	cfg    *config.Config
	logger *slog.Logger

	pollInterval time.Duration
	timeout      time.Duration
}

// NewManager creates a lifecycle manager. Poll interval and timeout come from
// the wait config section.
func NewManager(prov aws.Provisioner, cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		prov:         prov,
		cfg:          cfg,
		logger:       logger,
		pollInterval: cfg.Wait.PollInterval,
		timeout:      cfg.Wait.Timeout,
	}
}

// Plan builds the provisioning request from config.
func (m *Manager) Plan() aws.ProvisionPlan {
	return aws.ProvisionPlan{
		ClusterIdentifier: m.cfg.DWH.ClusterIdentifier,
		ClusterType:       m.cfg.DWH.ClusterType,
		NodeType:          m.cfg.DWH.NodeType,
		NumNodes:          m.cfg.DWH.NumNodes,
		DBName:            m.cfg.Cluster.DBName,
		MasterUsername:    m.cfg.Cluster.DBUser,
		MasterPassword:    m.cfg.Cluster.DBPassword,
		Port:              m.cfg.Cluster.Port,
		IAMRoleARNs:       []string{m.cfg.IAMRole.ARN},
		Tags:              map[string]string{"app": "dwh"},
	}
}

// Create requests the cluster. An existing cluster yields an error matching
// ErrClusterExists.
func (m *Manager) Create(ctx context.Context) error {
	id := m.cfg.DWH.ClusterIdentifier
	m.logger.Info("creating cluster", "cluster", id,
		"node_type", m.cfg.DWH.NodeType, "num_nodes", m.cfg.DWH.NumNodes)

	res, err := m.prov.Provision(ctx, m.Plan())
	if err != nil {
		return err
	}
	m.logger.Info("cluster requested", "cluster", res.ClusterIdentifier, "status", res.State)
	return nil
}

// WaitAvailable polls until the cluster is available and returns its endpoint.
func (m *Manager) WaitAvailable(ctx context.Context, callback StatusCallback) (*aws.Endpoint, error) {
	id := m.cfg.DWH.ClusterIdentifier

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// stopped distinguishes caller cancellation from our own deadline.
	stopped := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("cluster %s after %s: %w", id, m.timeout, ErrWaitTimeout)
	}

	for {
		status, err := m.prov.Status(waitCtx, id)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, stopped()
			}
			return nil, fmt.Errorf("polling status: %w", err)
		}

		if callback != nil {
			callback(status)
		}
		m.logger.Debug("cluster status", "cluster", id, "status", status.State)

		switch {
		case status.State == StatusAvailable:
			if status.Endpoint == nil {
				// Status flips to available a moment before the endpoint is published.
				break
			}
			m.logger.Info("cluster available", "cluster", id, "host", status.Endpoint.Address)
			return status.Endpoint, nil
		case IsFailureStatus(status.State):
			return nil, &StatusError{ClusterID: id, Status: status.State}
		}

		timer := time.NewTimer(m.pollInterval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, stopped()
		case <-timer.C:
		}
	}
}

// EnsureEndpoint creates the cluster if needed, waits for it, then writes the
// endpoint to the config file at cfgPath and to the in-memory config.
func (m *Manager) EnsureEndpoint(ctx context.Context, cfgPath string, callback StatusCallback) (*aws.Endpoint, error) {
	if err := m.Create(ctx); err != nil {
		if !errors.Is(err, ErrClusterExists) {
			return nil, err
		}
		m.logger.Info("cluster already exists", "cluster", m.cfg.DWH.ClusterIdentifier)
	}

	ep, err := m.WaitAvailable(ctx, callback)
	if err != nil {
		return nil, err
	}

	if err := config.PersistEndpoint(cfgPath, ep.Address, ep.Port); err != nil {
		return nil, fmt.Errorf("saving endpoint: %w", err)
	}
	m.cfg.Cluster.Host = ep.Address
	if ep.Port > 0 {
		m.cfg.Cluster.Port = ep.Port
	}
	return ep, nil
}

// Delete removes the cluster without a final snapshot.
func (m *Manager) Delete(ctx context.Context) error {
	id := m.cfg.DWH.ClusterIdentifier
	if err := m.prov.Teardown(ctx, id); err != nil {
		return err
	}
	m.logger.Info("cluster deletion requested", "cluster", id)
	return nil
}

// Describe returns the current provider view of the cluster.
func (m *Manager) Describe(ctx context.Context) (*aws.ProvisionStatus, error) {
	return m.prov.Status(ctx, m.cfg.DWH.ClusterIdentifier)
}
