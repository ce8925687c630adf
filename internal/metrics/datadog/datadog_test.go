package datadog

import (
	"context"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"datalens/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
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

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// testOptions returns Options wired to a fake submitter with the loop
// effectively disabled (24h ticker), so tests drive Flush explicitly.
func testOptions(fs *fakeSubmitter) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
//
// Edge cases:
//   - ENV wins over DD_ENV.
//   - Whitespace-only env vars are ignored.
//   - If neither is set, "env:unknown" is returned.
func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestKindStatusKeyRoundTrip verifies key encoding/decoding.
func TestKindStatusKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		status string
	}{
		{name: "normal", kind: "delimited_file", status: "ok"},
		{name: "empty_kind", kind: "", status: "ok"},
		{name: "empty_status", kind: "relational_table", status: ""},
		{name: "both_empty", kind: "", status: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k := kindStatusKey(tc.kind, tc.status)
			kind, status := splitKindStatusKey(k)
			if kind != tc.kind || status != tc.status {
				t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", kind, status, tc.kind, tc.status)
			}
		})
	}

	t.Run("split_without_separator_defaults_unknown_status", func(t *testing.T) {
		kind, status := splitKindStatusKey("no-sep")
		if kind != "no-sep" || status != "unknown" {
			t.Fatalf("splitKindStatusKey()=(%q,%q), want=(%q,%q)", kind, status, "no-sep", "unknown")
		}
	})
}

// TestWithTags verifies tag concatenation and immutability.
func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:datalens"}
	extras := []string{"kind:delimited_file", "status:ok"}
	got := withTags(base, extras...)
	want := []string{"env:test", "job:datalens", "kind:delimited_file", "status:ok"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	if !reflect.DeepEqual(base, []string{"env:test", "job:datalens"}) {
		t.Fatalf("withTags mutated base: %v", base)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice; base should not change when output is modified")
	}
}

// TestPercentileNearestRank verifies percentile behavior.
func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

// TestSeriesBuilders verifies countSeries and gaugeSeries timestamps, types,
// and values.
func TestSeriesBuilders(t *testing.T) {
	now := int64(1234567)

	g := gaugeSeries("datalens.test.gauge", 3.14, []string{"env:test"}, now)
	if g.Metric != "datalens.test.gauge" {
		t.Fatalf("Metric=%q, want %q", g.Metric, "datalens.test.gauge")
	}
	if g.Type == nil || *g.Type != datadogV2.METRICINTAKETYPE_GAUGE {
		t.Fatalf("Type=%v, want GAUGE", g.Type)
	}
	if len(g.Points) != 1 {
		t.Fatalf("Points.len=%d, want 1", len(g.Points))
	}
	if g.Points[0].Timestamp == nil || *g.Points[0].Timestamp != now {
		t.Fatalf("Timestamp=%v, want %d", g.Points[0].Timestamp, now)
	}
	if g.Points[0].Value == nil || *g.Points[0].Value != 3.14 {
		t.Fatalf("Value=%v, want 3.14", g.Points[0].Value)
	}

	c := countSeries("datalens.test.count", 9, []string{"env:test"}, now)
	if c.Type == nil || *c.Type != datadogV2.METRICINTAKETYPE_COUNT {
		t.Fatalf("Type=%v, want COUNT", c.Type)
	}
	if c.Points[0].Value == nil || *c.Points[0].Value != 9 {
		t.Fatalf("Value=%v, want 9", c.Points[0].Value)
	}
}

// TestAddPercentiles verifies addPercentiles produces the expected series and
// does not mutate its input.
func TestAddPercentiles(t *testing.T) {
	now := int64(999)
	tags := []string{"env:test", "job:datalens", "status:ok"}

	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, "datalens.run.duration_seconds", tags, in, now)

	// p50, p90, p95, p99, max, samples.
	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}

	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}

	var foundSamples bool
	for _, s := range series {
		if !contains(s.Tags, "status:ok") {
			t.Fatalf("series %q missing status tag; tags=%v", s.Metric, s.Tags)
		}
		if s.Metric == "datalens.run.duration_seconds.samples" {
			foundSamples = true
			if s.Points[0].Value == nil || *s.Points[0].Value != 5 {
				t.Fatalf("samples gauge value=%v, want 5", s.Points[0].Value)
			}
		}
	}
	if !foundSamples {
		t.Fatalf("did not find samples gauge series")
	}
}

// TestNewBackend_Defaults verifies defaults and initialization without real HTTP.
func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := Options{
		JobName:    "", // should default
		FlushEvery: 0,  // should default
		Tags:       []string{"service:datalens"},
		submitter:  fs,
		now:        func() time.Time { return time.Unix(123, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	// The env tag depends on ambient env vars, so only the stable tags are
	// asserted here.
	if !contains(b.baseTags, "job:datalens") {
		t.Fatalf("baseTags missing job:datalens: %v", b.baseTags)
	}
	if !contains(b.baseTags, "service:datalens") {
		t.Fatalf("baseTags missing service:datalens: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

// TestFlush_SubmitsAndResets verifies Flush submits buffered metrics and
// resets the buffers.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), testOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter("profiles_total", 2, metrics.Labels{"kind": "delimited_file", "status": "ok"})
	b.IncCounter("profiles_total", 1, metrics.Labels{"kind": "remote_api", "status": "degraded"})
	b.IncCounter("relationships_total", 3, nil)
	b.IncCounter("runs_total", 1, metrics.Labels{"status": "ok"})
	b.ObserveHistogram("profile_duration_seconds", 0.5, metrics.Labels{"kind": "delimited_file", "status": "ok"})
	b.ObserveHistogram("run_duration_seconds", 1.25, metrics.Labels{"status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}

	if len(b.profileCounts) != 0 || len(b.profileDur) != 0 || b.relationshipCount != 0 ||
		len(b.runCounts) != 0 || len(b.runDur) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}

	var metricNames []string
	for _, s := range payload.Series {
		metricNames = append(metricNames, s.Metric)
	}
	sort.Strings(metricNames)

	wantContains := []string{
		"datalens.profiles.total",
		"datalens.relationships.total",
		"datalens.runs.total",
		"datalens.profile.duration_seconds.p50",
		"datalens.profile.duration_seconds.samples",
		"datalens.run.duration_seconds.p50",
		"datalens.run.duration_seconds.samples",
	}
	for _, w := range wantContains {
		if !contains(metricNames, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, metricNames)
		}
	}

	// Two profile kinds produce two profiles.total series with distinct tags.
	var sawOK, sawDegraded bool
	for _, s := range payload.Series {
		if s.Metric != "datalens.profiles.total" {
			continue
		}
		if contains(s.Tags, "kind:delimited_file") && contains(s.Tags, "status:ok") {
			sawOK = true
			if s.Points[0].Value == nil || *s.Points[0].Value != 2 {
				t.Fatalf("profiles.total ok value=%v, want 2", s.Points[0].Value)
			}
		}
		if contains(s.Tags, "kind:remote_api") && contains(s.Tags, "status:degraded") {
			sawDegraded = true
		}
	}
	if !sawOK || !sawDegraded {
		t.Fatalf("profiles.total series missing kind/status splits: ok=%v degraded=%v", sawOK, sawDegraded)
	}
}

// TestFlush_NoDataDoesNotSubmit verifies Flush returns nil and does not
// submit when the buffers are empty.
func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), testOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

// TestLoopAndClose verifies the background loop flushes periodically and
// Close performs a final flush.
func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}

	// Real ticker with a fast interval so the loop is exercised.
	opts := Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter("relationships_total", 1, nil)

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fs.count() >= 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	// More data before Close; the final Flush must pick it up.
	b.IncCounter("relationships_total", 1, nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}

	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

// TestBackend_ConcurrentAccess verifies buffering under concurrent writers.
func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), testOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 2000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter("relationships_total", 1, nil)
				b.IncCounter("profiles_total", 1, metrics.Labels{"kind": "relational_table", "status": "ok"})
				b.IncCounter("runs_total", 1, metrics.Labels{"status": "ok"})
				b.ObserveHistogram("profile_duration_seconds", 0.01, metrics.Labels{"kind": "relational_table", "status": "ok"})
				b.ObserveHistogram("run_duration_seconds", 0.02, metrics.Labels{"status": "ok"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

// TestIncCounterAndObserveHistogram_EdgeCases verifies ignored paths and
// label defaults.
func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), testOptions(fs))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	// Non-positive counter deltas are ignored.
	b.IncCounter("relationships_total", 0, nil)
	// Unknown metric names are ignored.
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	// Negative histogram values are ignored.
	b.ObserveHistogram("profile_duration_seconds", -1, metrics.Labels{"kind": "delimited_file", "status": "ok"})
	b.ObserveHistogram("unknown_duration_seconds", 1, nil)
	// Missing run status defaults to "unknown".
	b.IncCounter("runs_total", 1, metrics.Labels{})
	b.ObserveHistogram("run_duration_seconds", 0.1, metrics.Labels{})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}

	var sawRunCount, sawP50 bool
	for _, s := range payload.Series {
		if s.Metric == "datalens.runs.total" && contains(s.Tags, "status:unknown") {
			sawRunCount = true
		}
		if s.Metric == "datalens.run.duration_seconds.p50" && contains(s.Tags, "status:unknown") {
			sawP50 = true
		}
		if s.Metric == "datalens.profile.duration_seconds.p50" {
			t.Fatalf("negative histogram sample was buffered: %v", s)
		}
	}
	if !sawRunCount {
		t.Fatalf("expected datalens.runs.total for status:unknown")
	}
	if !sawP50 {
		t.Fatalf("expected datalens.run.duration_seconds.p50 for status:unknown")
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "empty_returns_nil",
			in:   "",
			want: nil,
		},
		{
			name: "trims_and_skips_empty_segments",
			in:   " env:prod , ,service:datalens,  ,team:data ",
			want: []string{"env:prod", "service:datalens", "team:data"},
		},
		{
			name: "single_tag",
			in:   "service:datalens",
			want: []string{"service:datalens"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseTagsCSV(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
