package cluster

import (
	"errors"
	"fmt"

	"github.com/sparkify/dwh/internal/aws"
)

var (
	// ErrClusterExists aliases the provisioner sentinel so callers need only this package.
	ErrClusterExists = aws.ErrClusterExists
	// ErrClusterNotFound aliases the provisioner sentinel.
	ErrClusterNotFound = aws.ErrClusterNotFound
	// ErrWaitTimeout is returned when the cluster does not become available in time.
	ErrWaitTimeout = errors.New("timed out waiting for cluster")
)

// StatusError reports a cluster that entered a state it will not leave on its own.
type StatusError struct {
	ClusterID string
	Status    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cluster %s entered status %q", e.ClusterID, e.Status)
}

// failureStatuses end a wait for availability.
var failureStatuses = map[string]bool{
	"deleting":                true,
	"final-snapshot":          true,
	"hardware-failure":        true,
	"incompatible-hsm":        true,
	"incompatible-network":    true,
	"incompatible-parameters": true,
	"incompatible-restore":    true,
	"storage-full":            true,
	"paused":                  true,
}

// IsFailureStatus reports whether status ends a wait with an error.
func IsFailureStatus(status string) bool {
	return failureStatuses[status]
}
