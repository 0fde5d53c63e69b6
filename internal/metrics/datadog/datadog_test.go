package datadog

import (
	"context"
	"net/http"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/Nterah/QualiPro/internal/metrics"
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

// quietOptions disables the background loop for deterministic tests.
func quietOptions(fs *fakeSubmitter, unix int64) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(unix, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
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

// TestWithTags verifies tag concatenation and immutability.
func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:pqp"}
	got := withTags(base, "source:store")
	want := []string{"env:test", "job:pqp", "source:store"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
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

// TestSeriesBuilders verifies point timestamps, values and intake types.
func TestSeriesBuilders(t *testing.T) {
	now := int64(1234567)
	g := gaugeSeries("pqp.test.gauge", 3.14, []string{"env:test"}, now)
	c := countSeries("pqp.test.count", 2, []string{"env:test"}, now)

	if g.Type == nil || *g.Type != datadogV2.METRICINTAKETYPE_GAUGE {
		t.Fatalf("gauge Type=%v, want GAUGE", g.Type)
	}
	if c.Type == nil || *c.Type != datadogV2.METRICINTAKETYPE_COUNT {
		t.Fatalf("count Type=%v, want COUNT", c.Type)
	}
	for _, s := range []datadogV2.MetricSeries{g, c} {
		if len(s.Points) != 1 || s.Points[0].Timestamp == nil || *s.Points[0].Timestamp != now {
			t.Fatalf("%s points=%v, want one point at %d", s.Metric, s.Points, now)
		}
	}
	if *g.Points[0].Value != 3.14 || *c.Points[0].Value != 2 {
		t.Fatalf("values = %v / %v", *g.Points[0].Value, *c.Points[0].Value)
	}
}

// TestAddPercentiles verifies the gauge set and that input is not mutated.
func TestAddPercentiles(t *testing.T) {
	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, []string{"env:test"}, "pqp.hydrate.duration_seconds", "stage:part", in, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}
	for _, s := range series {
		if !contains(s.Tags, "stage:part") {
			t.Fatalf("series %q missing stage tag; tags=%v", s.Metric, s.Tags)
		}
		if s.Metric == "pqp.hydrate.duration_seconds.samples" && *s.Points[0].Value != 5 {
			t.Fatalf("samples gauge value=%v, want 5", *s.Points[0].Value)
		}
		if s.Metric == "pqp.hydrate.duration_seconds.max" && *s.Points[0].Value != 5 {
			t.Fatalf("max gauge value=%v, want 5", *s.Points[0].Value)
		}
	}
}

// TestNewBackend_Defaults verifies defaults without real HTTP.
func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := quietOptions(fs, 123)
	opts.JobName = ""
	opts.FlushEvery = 0
	opts.Tags = []string{"service:pqp"}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:pqp") || !contains(b.baseTags, "service:pqp") {
		t.Fatalf("baseTags=%v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

// TestFlush_SubmitsAndResets verifies Flush submits buffered metrics and resets buffers.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.SectionsTotal, 2, metrics.Labels{"source": "store"})
	b.IncCounter(metrics.SectionsTotal, 1, metrics.Labels{"source": "guessed"})
	b.IncCounter(metrics.FetchErrorsTotal, 1, metrics.Labels{"table": "pqp.section41"})
	b.IncCounter(metrics.StoreWritesTotal, 3, metrics.Labels{"op": "merge"})
	b.ObserveHistogram(metrics.HydrateDurationSeconds, 0.5, metrics.Labels{"stage": "form"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.counts) != 0 || len(b.samples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	type point struct {
		metric string
		tag    string
	}
	var got []point
	for _, s := range payload.Series {
		got = append(got, point{s.Metric, s.Tags[len(s.Tags)-1]})
	}
	wantPrefix := []point{
		{"pqp.fetch.errors.total", "table:pqp.section41"},
		{"pqp.sections.total", "source:guessed"},
		{"pqp.sections.total", "source:store"},
		{"pqp.store.writes.total", "op:merge"},
		{"pqp.hydrate.duration_seconds.p50", "stage:form"},
	}
	if len(got) != 4+6 {
		t.Fatalf("series=%v", got)
	}
	if !reflect.DeepEqual(got[:5], wantPrefix) {
		t.Fatalf("series order=%v, want prefix %v", got[:5], wantPrefix)
	}
	if !contains(payload.Series[0].Tags, "job:job1") {
		t.Fatalf("missing job tag: %v", payload.Series[0].Tags)
	}
}

// TestFlush_NoDataDoesNotSubmit verifies Flush returns nil and does not submit when empty.
func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
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
	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.StoreWritesTotal, 1, metrics.Labels{"op": "ensure"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.StoreWritesTotal, 1, metrics.Labels{"op": "ensure"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() err=%v, want nil", err)
	}
}

// TestBackend_ConcurrentAccess verifies thread-safety of buffering.
func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 3000))
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
				b.IncCounter(metrics.SectionsTotal, 1, metrics.Labels{"source": "configured"})
				b.IncCounter(metrics.StoreWritesTotal, 1, metrics.Labels{"op": "hydrate"})
				b.ObserveHistogram(metrics.HydrateDurationSeconds, 0.01, metrics.Labels{"stage": "part"})
			}
		}()
	}
	wg.Wait()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	payload, _ := fs.last()
	for _, s := range payload.Series {
		if s.Metric == "pqp.sections.total" && *s.Points[0].Value != float64(workers*iters) {
			t.Fatalf("sections total=%v, want %d", *s.Points[0].Value, workers*iters)
		}
	}
}

// TestIncCounterAndObserveHistogram_EdgeCases verifies ignored paths and defaults.
func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 4000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.SectionsTotal, 0, metrics.Labels{"source": "store"})
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.HydrateDurationSeconds, -1, metrics.Labels{"stage": "form"})
	b.ObserveHistogram(metrics.SectionsTotal, 1, nil)

	if err := b.Flush(); err != nil || fs.count() != 0 {
		t.Fatalf("ignored events were submitted: err=%v count=%d", err, fs.count())
	}

	b.IncCounter(metrics.FetchErrorsTotal, 1, metrics.Labels{})
	b.ObserveHistogram(metrics.HydrateDurationSeconds, 0.1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	var sawCount, sawP50 bool
	for _, s := range payload.Series {
		if s.Metric == "pqp.fetch.errors.total" && contains(s.Tags, "table:unknown") {
			sawCount = true
		}
		if s.Metric == "pqp.hydrate.duration_seconds.p50" && contains(s.Tags, "stage:unknown") {
			sawP50 = true
		}
	}
	if !sawCount || !sawP50 {
		t.Fatalf("missing labels should default to unknown: %+v", payload.Series)
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
		{name: "empty_returns_nil", in: "", want: nil},
		{name: "trims_and_skips_empty_segments", in: " env:prod , ,service:pqp,  ,team:quality ", want: []string{"env:prod", "service:pqp", "team:quality"}},
		{name: "single_tag", in: "service:pqp", want: []string{"service:pqp"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseTagsCSV(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
