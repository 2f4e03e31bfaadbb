package datadog

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkify/dwh/internal/metrics"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()
	t.Setenv("ENV", "test")
	return NewBackend(context.Background(), Options{
		Tags:       []string{"team:data"},
		FlushEvery: time.Hour,
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  sub,
	})
}

func seriesByName(p datadogV2.MetricPayload) map[string]datadogV2.MetricSeries {
	out := map[string]datadogV2.MetricSeries{}
	for _, s := range p.Series {
		out[s.Metric] = s
	}
	return out
}

func TestCloseFlushesBufferedMetrics(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	metrics.RecordStep(b, "copy", "ok", 2*time.Second)
	metrics.RecordStep(b, "copy", "ok", 4*time.Second)
	b.ObserveHistogram(metrics.ClusterWaitSeconds, 300, nil)

	require.NoError(t, b.Close())
	require.Equal(t, 1, sub.count())

	got := seriesByName(sub.payloads[0])
	total, ok := got["dwh.step.total"]
	require.True(t, ok)
	assert.Equal(t, 2.0, *total.Points[0].Value)
	assert.Equal(t, int64(1700000000), *total.Points[0].Timestamp)
	assert.Equal(t, []string{"env:test", "job:dwh", "team:data", "step:copy", "status:ok"}, total.Tags)

	assert.Equal(t, 4.0, *got["dwh.step.duration_seconds.max"].Points[0].Value)
	assert.Equal(t, 2.0, *got["dwh.step.duration_seconds.samples"].Points[0].Value)
	assert.Equal(t, 300.0, *got["dwh.cluster.wait_seconds.max"].Points[0].Value)
}

func TestFlushEmptyIsNoop(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	require.NoError(t, b.Flush())
	require.NoError(t, b.Close())
	assert.Zero(t, sub.count())
}

func TestFlushResetsOnError(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("403 forbidden")}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "insert", "status": "ok"})
	assert.Error(t, b.Flush())

	sub.err = nil
	require.NoError(t, b.Close())
	assert.Equal(t, 1, sub.count(), "nothing left to flush after a failed submit")
}

func TestIgnoresUnknownAndInvalid(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("something_else", 1, nil)
	b.IncCounter(metrics.StepTotal, 0, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, nil)

	require.NoError(t, b.Close())
	assert.Zero(t, sub.count())
}

func TestCloseTwice(t *testing.T) {
	b := newTestBackend(t, &fakeSubmitter{})
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestResolveEnvTag(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DD_ENV", "stage")
	assert.Equal(t, "env:stage", resolveEnvTag())

	t.Setenv("DD_ENV", " ")
	assert.Equal(t, "env:unknown", resolveEnvTag())

	t.Setenv("ENV", "prod")
	assert.Equal(t, "env:prod", resolveEnvTag())
}

func TestPercentileNearestRank(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 6.0, percentileNearestRank(s, 0.5))
	assert.Equal(t, 10.0, percentileNearestRank(s, 0.95))
	assert.Equal(t, 0.0, percentileNearestRank(nil, 0.5))
}
