// Package fetcher defines the HTTP fetch contract and the retrying client
// the crawl pipeline uses for all network access.
package fetcher

import (
	"context"
	"net/http"
	"time"
)

// Request describes one HTTP GET.
type Request struct {
	URL     string
	Headers http.Header
}

// Response is the outcome of one fetch attempt. StatusCode is set whenever
// an HTTP response was received, including non-2xx.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Transport executes a single fetch attempt with no retry policy.
type Transport interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}
