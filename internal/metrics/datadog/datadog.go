// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Analysis runs can be short-lived commands or long sessions, so the backend
// buffers points in memory, flushes them on a ticker (default once per
// minute), and flushes one final time on Close. Writers never touch the
// network: Flush snapshots and resets the buffers under a mutex, then submits
// out-of-lock. Buffers reset even when submission fails; a failed window is
// dropped, not retried.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"datalens/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "datalens".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "service:datalens"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// The following fields are unexported test seams. Production code never
	// sets them; unit tests use them to avoid real network submission and
	// nondeterministic clocks and tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal surface of the Datadog metrics API that the
// backend needs. The SDK exposes a concrete *datadogV2.MetricsApi; depending
// on this interface instead lets tests substitute a fake.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
//
// It recognizes the metric names emitted by the analysis service and ignores
// everything else:
//
//	profiles_total             counter, labels kind + status
//	profile_duration_seconds   histogram, labels kind + status
//	relationships_total        counter, no labels
//	runs_total                 counter, label status
//	run_duration_seconds       histogram, label status
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	// now is injected for deterministic tests. Production uses time.Now.
	now func() time.Time

	// newTicker is injected for deterministic tests. Production uses time.NewTicker.
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	profileCounts     map[string]float64   // kind\x00status -> count
	profileDur        map[string][]float64 // kind\x00status -> seconds
	relationshipCount float64
	runCounts         map[string]float64   // status -> count
	runDur            map[string][]float64 // status -> seconds
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

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials and site come from the environment
// (DD_API_KEY, DD_APP_KEY, DD_SITE) via the client's default context.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "datalens".
//   - The env tag resolves ENV, then DD_ENV, otherwise "env:unknown".
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "datalens"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		profileCounts: make(map[string]float64),
		profileDur:    make(map[string][]float64),
		runCounts:     make(map[string]float64),
		runDur:        make(map[string][]float64),
	}

	go b.loop()
	return b, nil
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

// Close stops the background flush loop and performs one final Flush.
// It returns any error from that final submission. Close must be called at
// most once; a second call panics on the already-closed stop channel.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Deltas <= 0 are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case "profiles_total":
		k := kindStatusKey(labels["kind"], labels["status"])
		b.profileCounts[k] += delta

	case "relationships_total":
		b.relationshipCount += delta

	case "runs_total":
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.runCounts[status] += delta

	default:
		// Unknown counters are dropped.
	}
}

// ObserveHistogram implements metrics.Backend. Negative values are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case "profile_duration_seconds":
		k := kindStatusKey(labels["kind"], labels["status"])
		b.profileDur[k] = append(b.profileDur[k], value)

	case "run_duration_seconds":
		status := labels["status"]
		if status == "" {
			status = "unknown"
		}
		b.runDur[status] = append(b.runDur[status], value)

	default:
		// Unknown histograms are dropped.
	}
}

// snapshot is the buffered metric state detached for one flush window.
// Flush must reset buffers under the lock but submit out-of-lock; snapshot
// separates collect-and-reset from payload building.
type snapshot struct {
	profileCounts     map[string]float64
	profileDur        map[string][]float64
	relationshipCount float64
	runCounts         map[string]float64
	runDur            map[string][]float64
}

// snapshotAndReset grabs current buffered metrics and resets the buffers.
// Must be called with no lock held; it takes the lock internally and returns
// detached maps and slices.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		profileCounts:     b.profileCounts,
		profileDur:        b.profileDur,
		relationshipCount: b.relationshipCount,
		runCounts:         b.runCounts,
		runDur:            b.runDur,
	}

	b.profileCounts = make(map[string]float64)
	b.profileDur = make(map[string][]float64)
	b.relationshipCount = 0
	b.runCounts = make(map[string]float64)
	b.runDur = make(map[string][]float64)

	return s
}

// isEmpty reports whether the snapshot contains nothing to submit.
func (s snapshot) isEmpty() bool {
	return len(s.profileCounts) == 0 &&
		len(s.profileDur) == 0 &&
		s.relationshipCount == 0 &&
		len(s.runCounts) == 0 &&
		len(s.runDur) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
// It returns nil when there is nothing to submit, and any submission error
// otherwise. Safe to call concurrently with IncCounter and ObserveHistogram.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	nowUnix := b.now().Unix()

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, nowUnix)}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs Datadog series for a snapshot at a fixed timestamp.
// It is pure (no locks, no network, no clocks) and centralizes the naming and
// tagging contract.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.profileCounts)+len(s.runCounts)+16)

	for k, v := range s.profileCounts {
		if v == 0 {
			continue
		}
		kind, status := splitKindStatusKey(k)
		tags := withTags(b.baseTags, "kind:"+kind, "status:"+status)
		series = append(series, countSeries("datalens.profiles.total", v, tags, nowUnix))
	}

	if s.relationshipCount != 0 {
		series = append(series, countSeries("datalens.relationships.total", s.relationshipCount, b.baseTags, nowUnix))
	}

	for status, v := range s.runCounts {
		if v == 0 {
			continue
		}
		tags := withTags(b.baseTags, "status:"+status)
		series = append(series, countSeries("datalens.runs.total", v, tags, nowUnix))
	}

	for k, samples := range s.profileDur {
		kind, status := splitKindStatusKey(k)
		tags := withTags(b.baseTags, "kind:"+kind, "status:"+status)
		addPercentiles(&series, "datalens.profile.duration_seconds", tags, samples, nowUnix)
	}

	for status, samples := range s.runDur {
		tags := withTags(b.baseTags, "status:"+status)
		addPercentiles(&series, "datalens.run.duration_seconds", tags, samples, nowUnix)
	}

	return series
}

// addPercentiles appends the fixed set of percentile gauges for one sample
// set: p50, p90, p95, p99, max, and the sample count. Empty sample sets
// append nothing. It sorts a copy and never mutates the input.
func addPercentiles(series *[]datadogV2.MetricSeries, metricPrefix string, tags []string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func kindStatusKey(kind, status string) string {
	return kind + "\x00" + status
}

func splitKindStatusKey(k string) (kind, status string) {
	parts := strings.SplitN(k, "\x00", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return k, "unknown"
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
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

// ParseTagsCSV parses comma-separated tags like "env:prod,service:datalens".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
