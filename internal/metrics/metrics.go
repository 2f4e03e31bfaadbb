// Package metrics defines the backend-neutral metric sink used by the
// pipeline and cluster commands.
package metrics

import "time"

// Metric names.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	ClusterWaitSeconds  = "dwh_cluster_wait_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Close() error
}

// Noop discards everything.
type Noop struct{}

func (Noop) IncCounter(string, float64, Labels)       {}
func (Noop) ObserveHistogram(string, float64, Labels) {}
func (Noop) Close() error                             { return nil }

// RecordStep counts one executed step and its duration.
func RecordStep(b Backend, step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}
