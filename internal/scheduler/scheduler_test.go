package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
	"github.com/rasadlabs/newscrawler/internal/storage/memory"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type recordingDispatcher struct {
	mu       sync.Mutex
	requests []news.CrawlRequest
	failFor  map[string]error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req news.CrawlRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.failFor[req.SourceName]; ok {
		return "", err
	}
	d.requests = append(d.requests, req)
	return "run-" + req.SourceName, nil
}

func (d *recordingDispatcher) Requests() []news.CrawlRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]news.CrawlRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

func newScheduler(t *testing.T, now time.Time, disp *recordingDispatcher) (*Scheduler, *memory.ConfigStore, *memory.RunStore) {
	t.Helper()
	metrics.Init()

	configs := memory.NewConfigStore()
	runs := memory.NewRunStore()
	s := New(configs, runs, disp, fixedClock{at: now}, Config{
		TickInterval:    time.Minute,
		DefaultInterval: 15 * time.Minute,
		StaleRunGrace:   30 * time.Minute,
	}, nil)
	return s, configs, runs
}

func TestTickNeverCrawledSourceIsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	s, configs, _ := newScheduler(t, now, disp)

	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "fresh", BaseURL: "https://fresh.example.com", Active: true, IntervalMinutes: 15,
	}))

	summary, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Triggered)

	reqs := disp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "fresh", reqs[0].SourceName)
	assert.True(t, reqs[0].Scheduled)
}

func TestTickDueExactlyAtInterval(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	s, configs, _ := newScheduler(t, now, disp)

	last := now.Add(-15 * time.Minute)
	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "ontime", Active: true, IntervalMinutes: 15, LastScheduledCrawl: &last,
	}))

	summary, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Triggered, "a source is due when exactly one interval has elapsed")
}

func TestTickNotDueJustBeforeInterval(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	s, configs, _ := newScheduler(t, now, disp)

	last := now.Add(-15*time.Minute + time.Second)
	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "early", Active: true, IntervalMinutes: 15, LastScheduledCrawl: &last,
	}))

	summary, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Triggered)
	assert.Empty(t, disp.Requests())
}

func TestTickSkipsRunningSources(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	s, configs, runs := newScheduler(t, now, disp)

	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "busy", Active: true, IntervalMinutes: 15,
	}))
	require.NoError(t, runs.CreateRun(context.Background(), news.CrawlRun{
		ID: "r1", SourceName: "busy", StartTime: now.Add(-time.Minute), Status: news.RunStatusRunning,
	}))

	summary, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Zero(t, summary.Triggered)
	assert.Empty(t, disp.Requests())
}

func TestTickIgnoresInactiveSources(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	s, configs, _ := newScheduler(t, now, disp)

	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "paused", Active: false, IntervalMinutes: 15,
	}))

	summary, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Checked)
	assert.Zero(t, summary.Triggered)
}

func TestTickDispatchFailureIsolation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{failFor: map[string]error{"broken": errors.New("queue full")}}
	s, configs, _ := newScheduler(t, now, disp)

	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "broken", Active: true, IntervalMinutes: 15,
	}))
	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "healthy", Active: true, IntervalMinutes: 15,
	}))

	summary, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Triggered)

	reqs := disp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "healthy", reqs[0].SourceName)
}

func TestTickManualRunDoesNotResetSchedule(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	s, configs, _ := newScheduler(t, now, disp)

	// Last scheduled crawl one interval ago; a manual crawl happened just
	// now. Due-ness follows the scheduled marker, so the source is due.
	scheduled := now.Add(-15 * time.Minute)
	manual := now.Add(-time.Minute)
	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name:               "mixed",
		Active:             true,
		IntervalMinutes:    15,
		LastCrawl:          &manual,
		LastScheduledCrawl: &scheduled,
	}))

	summary, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Triggered)
}

func TestTickDurationIgnoresInjectedClock(t *testing.T) {
	t.Parallel()

	// A clock pinned years away from wall time must not leak into the tick
	// duration observation.
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	disp := &recordingDispatcher{}
	s, configs, _ := newScheduler(t, now, disp)

	require.NoError(t, configs.Create(context.Background(), news.SourceConfig{
		Name: "pinned", Active: true, IntervalMinutes: 15,
	}))

	_, err := s.Tick(context.Background())
	require.NoError(t, err)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var (
		sum   float64
		count uint64
	)
	for _, mf := range families {
		if mf.GetName() != "scheduler_tick_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum = m.GetHistogram().GetSampleSum()
			count = m.GetHistogram().GetSampleCount()
		}
	}
	require.NotZero(t, count, "tick duration histogram should have samples")
	assert.Less(t, sum, 60.0, "tick durations must be measured against wall time only")
}

func TestSweepStaleFailsOldRuns(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	disp := &recordingDispatcher{}
	s, _, runs := newScheduler(t, now, disp)

	require.NoError(t, runs.CreateRun(context.Background(), news.CrawlRun{
		ID: "old", SourceName: "alpha", StartTime: now.Add(-2 * time.Hour), Status: news.RunStatusRunning,
	}))
	require.NoError(t, runs.CreateRun(context.Background(), news.CrawlRun{
		ID: "new", SourceName: "beta", StartTime: now.Add(-time.Minute), Status: news.RunStatusRunning,
	}))

	s.SweepStale(context.Background())

	old, err := runs.GetRun(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, news.RunStatusFailed, old.Status)

	fresh, err := runs.GetRun(context.Background(), "new")
	require.NoError(t, err)
	assert.Equal(t, news.RunStatusRunning, fresh.Status)
}

func TestRunLoopStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	disp := &recordingDispatcher{}
	s, _, _ := newScheduler(t, now, disp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after context cancel")
	}
}
