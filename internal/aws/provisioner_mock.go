package aws

import (
	"context"
	"sync"
)

// MockProvisioner is a test double for the Provisioner interface. Status
// returns the entries of StatusSequence in order and then repeats the last one.
type MockProvisioner struct {
	ProvisionResult *ProvisionResult
	ProvisionErr    error
	StatusSequence  []*ProvisionStatus
	StatusErr       error
	TeardownErr     error

	mu               sync.Mutex
	ProvisionCalled  bool
	ProvisionedPlan  *ProvisionPlan
	StatusCalls      int
	TeardownCalled   bool
	TeardownResource string
}

func (m *MockProvisioner) Provision(_ context.Context, plan ProvisionPlan) (*ProvisionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProvisionCalled = true
	m.ProvisionedPlan = &plan
	if m.ProvisionErr != nil {
		return nil, m.ProvisionErr
	}
	if m.ProvisionResult != nil {
		return m.ProvisionResult, nil
	}
	return &ProvisionResult{ClusterIdentifier: plan.ClusterIdentifier, State: "creating"}, nil
}

func (m *MockProvisioner) Status(_ context.Context, clusterID string) (*ProvisionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls++
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	if len(m.StatusSequence) == 0 {
		return &ProvisionStatus{ClusterIdentifier: clusterID, State: "creating"}, nil
	}
	i := m.StatusCalls - 1
	if i >= len(m.StatusSequence) {
		i = len(m.StatusSequence) - 1
	}
	return m.StatusSequence[i], nil
}

func (m *MockProvisioner) Teardown(_ context.Context, clusterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TeardownCalled = true
	m.TeardownResource = clusterID
	return m.TeardownErr
}

// Calls returns the number of Status calls so far.
func (m *MockProvisioner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StatusCalls
}
