package cluster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/internal/aws"
	"github.com/sparkify/dwh/internal/config"
	"github.com/sparkify/dwh/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		Version: config.CurrentVersion,
		DWH: config.DWHConfig{
			ClusterType:       config.ClusterTypeMultiNode,
			NodeType:          "dc2.large",
			NumNodes:          4,
			ClusterIdentifier: "dwhCluster",
		},
		Cluster: config.ClusterConfig{
			DBName:     "dwh",
			DBUser:     "dwhuser",
			DBPassword: "Passw0rd",
			Port:       5439,
		},
		IAMRole: config.IAMRoleConfig{ARN: "arn:aws:iam::123456789012:role/dwhRole"},
		Wait: config.WaitConfig{
			PollInterval: time.Millisecond,
			Timeout:      time.Second,
		},
	}
}

func status(state string) *aws.ProvisionStatus {
	return &aws.ProvisionStatus{ClusterIdentifier: "dwhCluster", State: state}
}

func available(host string) *aws.ProvisionStatus {
	st := status(StatusAvailable)
	st.Endpoint = &aws.Endpoint{Address: host, Port: 5439}
	return st
}

func newManager(prov aws.Provisioner, cfg *config.Config) *Manager {
	return NewManager(prov, cfg, logging.Discard())
}

func TestPlan(t *testing.T) {
	m := newManager(&aws.MockProvisioner{}, testConfig())
	plan := m.Plan()

	assert.Equal(t, "dwhCluster", plan.ClusterIdentifier)
	assert.Equal(t, "multi-node", plan.ClusterType)
	assert.Equal(t, 4, plan.NumNodes)
	assert.Equal(t, "dwhuser", plan.MasterUsername)
	assert.Equal(t, []string{"arn:aws:iam::123456789012:role/dwhRole"}, plan.IAMRoleARNs)
}

func TestCreate(t *testing.T) {
	prov := &aws.MockProvisioner{}
	m := newManager(prov, testConfig())

	require.NoError(t, m.Create(context.Background()))
	assert.True(t, prov.ProvisionCalled)
	assert.Equal(t, "dwh", prov.ProvisionedPlan.DBName)
}

func TestCreate_PropagatesExists(t *testing.T) {
	prov := &aws.MockProvisioner{ProvisionErr: fmt.Errorf("creating cluster: %w", aws.ErrClusterExists)}
	m := newManager(prov, testConfig())

	err := m.Create(context.Background())
	assert.ErrorIs(t, err, ErrClusterExists)
}

func TestWaitAvailable_PollsUntilAvailable(t *testing.T) {
	prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{
		status("creating"),
		status("creating"),
		status(StatusAvailable), // endpoint not yet published
		available("dwh.example.com"),
	}}
	m := newManager(prov, testConfig())

	var seen []string
	ep, err := m.WaitAvailable(context.Background(), func(s *aws.ProvisionStatus) {
		seen = append(seen, s.State)
	})
	require.NoError(t, err)
	assert.Equal(t, "dwh.example.com", ep.Address)
	assert.Equal(t, 5439, ep.Port)
	assert.Equal(t, 4, prov.Calls())
	assert.Equal(t, []string{"creating", "creating", "available", "available"}, seen)
}

func TestWaitAvailable_FailureStatus(t *testing.T) {
	for state := range failureStatuses {
		t.Run(state, func(t *testing.T) {
			prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{
				status("creating"),
				status(state),
			}}
			m := newManager(prov, testConfig())

			_, err := m.WaitAvailable(context.Background(), nil)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, state, statusErr.Status)
			assert.Equal(t, "dwhCluster", statusErr.ClusterID)
		})
	}
}

func TestWaitAvailable_UnknownStatusKeepsWaiting(t *testing.T) {
	prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{
		status("modifying"),
		status("rebooting"),
		status("resizing"),
		available("dwh.example.com"),
	}}
	m := newManager(prov, testConfig())

	ep, err := m.WaitAvailable(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "dwh.example.com", ep.Address)
}

func TestWaitAvailable_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.Wait.Timeout = 20 * time.Millisecond
	prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{status("creating")}}
	m := newManager(prov, cfg)

	_, err := m.WaitAvailable(context.Background(), nil)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.Greater(t, prov.Calls(), 1)
}

func TestWaitAvailable_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{status("creating")}}
	m := newManager(prov, testConfig())

	calls := 0
	_, err := m.WaitAvailable(ctx, func(*aws.ProvisionStatus) {
		calls++
		if calls == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrWaitTimeout)
}

func TestWaitAvailable_ClusterDisappears(t *testing.T) {
	prov := &aws.MockProvisioner{StatusErr: fmt.Errorf("describing: %w", aws.ErrClusterNotFound)}
	m := newManager(prov, testConfig())

	_, err := m.WaitAvailable(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func writeConfigFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dwh.yaml")
	data := "version: 1\n# connection\ncluster:\n  host: \"\"\n  db_password: ${ENV:DWH_DB_PASSWORD}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestEnsureEndpoint_CreatesAndPersists(t *testing.T) {
	path := writeConfigFile(t)
	cfg := testConfig()
	prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{
		status("creating"),
		available("dwh.example.com"),
	}}
	m := newManager(prov, cfg)

	ep, err := m.EnsureEndpoint(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "dwh.example.com", ep.Address)
	assert.Equal(t, "dwh.example.com", cfg.Cluster.Host)
	assert.True(t, prov.ProvisionCalled)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "host: dwh.example.com")
	assert.Contains(t, string(data), "${ENV:DWH_DB_PASSWORD}")
}

func TestEnsureEndpoint_ToleratesExistingCluster(t *testing.T) {
	path := writeConfigFile(t)
	prov := &aws.MockProvisioner{
		ProvisionErr:   fmt.Errorf("creating cluster: %w", aws.ErrClusterExists),
		StatusSequence: []*aws.ProvisionStatus{available("dwh.example.com")},
	}
	m := newManager(prov, testConfig())

	ep, err := m.EnsureEndpoint(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "dwh.example.com", ep.Address)
}

func TestEnsureEndpoint_OtherCreateErrorAborts(t *testing.T) {
	path := writeConfigFile(t)
	prov := &aws.MockProvisioner{ProvisionErr: errors.New("access denied")}
	m := newManager(prov, testConfig())

	_, err := m.EnsureEndpoint(context.Background(), path, nil)
	assert.EqualError(t, err, "access denied")
	assert.Zero(t, prov.Calls())
}

func TestEnsureEndpoint_WaitFailureLeavesConfigUntouched(t *testing.T) {
	path := writeConfigFile(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{status("incompatible-network")}}
	m := newManager(prov, testConfig())

	_, err = m.EnsureEndpoint(context.Background(), path, nil)
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestDelete(t *testing.T) {
	prov := &aws.MockProvisioner{}
	m := newManager(prov, testConfig())

	require.NoError(t, m.Delete(context.Background()))
	assert.True(t, prov.TeardownCalled)
	assert.Equal(t, "dwhCluster", prov.TeardownResource)
}

func TestDelete_NotFound(t *testing.T) {
	prov := &aws.MockProvisioner{TeardownErr: fmt.Errorf("deleting: %w", aws.ErrClusterNotFound)}
	m := newManager(prov, testConfig())

	assert.ErrorIs(t, m.Delete(context.Background()), ErrClusterNotFound)
}

func TestDescribe(t *testing.T) {
	prov := &aws.MockProvisioner{StatusSequence: []*aws.ProvisionStatus{status("creating")}}
	m := newManager(prov, testConfig())

	st, err := m.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "creating", st.State)
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{ClusterID: "dwhCluster", Status: "storage-full"}
	assert.Equal(t, `cluster dwhCluster entered status "storage-full"`, err.Error())
}
