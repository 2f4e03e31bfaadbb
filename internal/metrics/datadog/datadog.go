// Package datadog implements a Datadog backend for internal/metrics.
//
// Observations are buffered in memory, submitted on a ticker and once more on
// Close, so a long load shows up as a time series rather than a single point
// at exit.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/sparkify/dwh/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "dwh".
	JobName string
	// Tags are extra Datadog tags, e.g. "env:prod".
	Tags []string
	// FlushEvery defaults to 60 seconds.
	FlushEvery time.Duration

	// test seams
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags  []string
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu          sync.Mutex
	stepCounts  map[string]float64
	stepSamples map[string][]float64
	waitSamples []float64
}

// NewBackend starts the flush loop. The API key is read by the client from
// DD_API_KEY, and DD_SITE selects the intake site.
func NewBackend(parent context.Context, opts Options) *Backend {
	job := opts.JobName
	if job == "" {
		job = "dwh"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	b := &Backend{
		api:         opts.submitter,
		ctx:         dd.NewDefaultContext(parent),
		flushEvery:  flushEvery,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		baseTags:    baseTags,
		now:         opts.now,
		newTicker:   opts.newTicker,
		stepCounts:  make(map[string]float64),
		stepSamples: make(map[string][]float64),
	}
	if b.api == nil {
		b.api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newTicker == nil {
		b.newTicker = time.NewTicker
	}

	go b.loop()
	return b
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and submits whatever is still buffered.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 || name != metrics.StepTotal {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stepCounts[stepStatusKey(labels["step"], labels["status"])] += delta
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.StepDurationSeconds:
		k := stepStatusKey(labels["step"], labels["status"])
		b.stepSamples[k] = append(b.stepSamples[k], value)
	case metrics.ClusterWaitSeconds:
		b.waitSamples = append(b.waitSamples, value)
	}
}

type snapshot struct {
	stepCounts  map[string]float64
	stepSamples map[string][]float64
	waitSamples []float64
}

func (s snapshot) isEmpty() bool {
	return len(s.stepCounts) == 0 && len(s.stepSamples) == 0 && len(s.waitSamples) == 0
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{stepCounts: b.stepCounts, stepSamples: b.stepSamples, waitSamples: b.waitSamples}
	b.stepCounts = make(map[string]float64)
	b.stepSamples = make(map[string][]float64)
	b.waitSamples = nil
	return s
}

// Flush submits buffered metrics. Buffers are reset even when submission
// fails.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	var series []datadogV2.MetricSeries

	keys := make([]string, 0, len(s.stepCounts))
	for k := range s.stepCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		step, status := splitStepStatusKey(k)
		series = append(series, point("dwh.step.total", datadogV2.METRICINTAKETYPE_COUNT, s.stepCounts[k],
			withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix))
	}

	keys = keys[:0]
	for k := range s.stepSamples {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		step, status := splitStepStatusKey(k)
		series = appendPercentiles(series, "dwh.step.duration_seconds", s.stepSamples[k],
			withTags(b.baseTags, "step:"+step, "status:"+status), nowUnix)
	}

	series = appendPercentiles(series, "dwh.cluster.wait_seconds", s.waitSamples, b.baseTags, nowUnix)
	return series
}

func appendPercentiles(series []datadogV2.MetricSeries, prefix string, samples []float64, tags []string, nowUnix int64) []datadogV2.MetricSeries {
	if len(samples) == 0 {
		return series
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	gauge := datadogV2.METRICINTAKETYPE_GAUGE
	return append(series,
		point(prefix+".p50", gauge, percentileNearestRank(cp, 0.50), tags, nowUnix),
		point(prefix+".p95", gauge, percentileNearestRank(cp, 0.95), tags, nowUnix),
		point(prefix+".max", gauge, cp[len(cp)-1], tags, nowUnix),
		point(prefix+".samples", gauge, float64(len(cp)), tags, nowUnix),
	)
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func stepStatusKey(step, status string) string {
	return step + "\x00" + status
}

func splitStepStatusKey(k string) (step, status string) {
	step, status, ok := strings.Cut(k, "\x00")
	if !ok {
		return k, "unknown"
	}
	return step, status
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)
