package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
	"github.com/rasadlabs/newscrawler/internal/policy/ratelimit"
)

// ClientConfig controls retry behavior.
type ClientConfig struct {
	// MaxAttempts is the total number of fetch attempts per URL.
	MaxAttempts int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
}

// Client wraps a Transport with the crawl pipeline's retry policy: a fixed
// delay between attempts, with HTTP 404 treated as definitive absence and
// never retried. All other failures, including non-2xx statuses and
// transport errors, are transient.
type Client struct {
	transport Transport
	limiter   *ratelimit.Limiter
	cfg       ClientConfig
	logger    *zap.Logger
}

// NewClient builds a retrying fetch client. The limiter may be nil when no
// politeness throttling is wanted.
func NewClient(transport Transport, limiter *ratelimit.Limiter, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		transport: transport,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Get fetches the URL, retrying transient failures. It returns
// news.ErrNotFound for HTTP 404 without retrying.
func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Response{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, url); err != nil {
				return Response{}, fmt.Errorf("fetch %s: %w", url, err)
			}
		}

		resp, err := c.transport.Fetch(ctx, Request{URL: url})
		switch {
		case err != nil:
			lastErr = err
			metrics.ObserveFetch(url, "error", resp.Duration)
		case resp.StatusCode == http.StatusNotFound:
			metrics.ObserveFetch(url, "404", resp.Duration)
			return Response{}, fmt.Errorf("fetch %s: %w", url, news.ErrNotFound)
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			metrics.ObserveFetch(url, fmt.Sprintf("%d", resp.StatusCode), resp.Duration)
			return resp, nil
		default:
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			metrics.ObserveFetch(url, fmt.Sprintf("%d", resp.StatusCode), resp.Duration)
		}

		if attempt == c.cfg.MaxAttempts {
			break
		}
		metrics.ObserveFetchRetry(url)
		c.logger.Warn("fetch attempt failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
			return Response{}, fmt.Errorf("fetch %s: %w", url, err)
		}
	}

	return Response{}, fmt.Errorf("fetch %s after %d attempts: %w", url, c.cfg.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
