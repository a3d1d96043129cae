// Package metrics exposes Prometheus collectors for the crawler service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlRunsTotal             *prometheus.CounterVec
	crawlItemsTotal            *prometheus.CounterVec
	crawlActiveRuns            prometheus.Gauge
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	schedulerTickSeconds       prometheus.Histogram
	schedulerTriggeredTotal    prometheus.Counter
	staleRunsSweptTotal        prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_runs_total",
				Help: "Total number of crawl runs, labeled by source and terminal status.",
			},
			[]string{"source", "status"},
		)

		crawlItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_items_total",
				Help: "Total number of crawled items, labeled by source and outcome (saved, skipped).",
			},
			[]string{"source", "outcome"},
		)

		crawlActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_active_runs",
				Help: "Number of crawl runs currently executing.",
			},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_attempts_total",
				Help: "Total number of fetch attempts, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_retries_total",
				Help: "Total number of fetch retries, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		schedulerTickSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scheduler_tick_duration_seconds",
				Help:    "Histogram of scheduler tick durations.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		)

		schedulerTriggeredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_crawls_triggered_total",
				Help: "Total crawls dispatched by the periodic scheduler.",
			},
		)

		staleRunsSweptTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "stale_runs_swept_total",
				Help: "Total runs force-failed by the staleness sweeper.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun increments the run counter for the given terminal status.
func ObserveRun(source, status string) {
	crawlRunsTotal.WithLabelValues(source, status).Inc()
}

// ObserveItems records saved and skipped item counts for one commit.
func ObserveItems(source string, saved, skipped int) {
	if saved > 0 {
		crawlItemsTotal.WithLabelValues(source, "saved").Add(float64(saved))
	}
	if skipped > 0 {
		crawlItemsTotal.WithLabelValues(source, "skipped").Add(float64(skipped))
	}
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	crawlActiveRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	crawlActiveRuns.Dec()
}

// ObserveFetch records one completed fetch attempt.
func ObserveFetch(site, status string, duration time.Duration) {
	sanitized := SanitizeSite(site)
	fetchAttemptsTotal.WithLabelValues(sanitized, status).Inc()
	fetchDurationSeconds.WithLabelValues(sanitized).Observe(duration.Seconds())
}

// ObserveFetchRetry increments the retry counter for a site.
func ObserveFetchRetry(site string) {
	fetchRetriesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveTick records the duration of one scheduler tick and how many
// crawls it triggered.
func ObserveTick(duration time.Duration, triggered int) {
	schedulerTickSeconds.Observe(duration.Seconds())
	if triggered > 0 {
		schedulerTriggeredTotal.Add(float64(triggered))
	}
}

// ObserveStaleSweep records runs force-failed by the staleness sweeper.
func ObserveStaleSweep(count int) {
	if count > 0 {
		staleRunsSweptTotal.Add(float64(count))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
