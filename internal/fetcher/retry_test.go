package fetcher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
)

type fakeTransport struct {
	responses []fakeResult
	calls     int
}

type fakeResult struct {
	resp Response
	err  error
}

func (f *fakeTransport) Fetch(_ context.Context, _ Request) (Response, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]
	return r.resp, r.err
}

func TestGetSuccessFirstAttempt(t *testing.T) {
	t.Parallel()
	metrics.Init()

	transport := &fakeTransport{responses: []fakeResult{
		{resp: Response{StatusCode: http.StatusOK, Body: []byte("payload")}},
	}}
	client := NewClient(transport, nil, ClientConfig{MaxAttempts: 3}, nil)

	resp, err := client.Get(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "payload", string(resp.Body))
	assert.Equal(t, 1, transport.calls)
}

func TestGetNotFoundIsDefinitive(t *testing.T) {
	t.Parallel()
	metrics.Init()

	transport := &fakeTransport{responses: []fakeResult{
		{resp: Response{StatusCode: http.StatusNotFound}},
	}}
	client := NewClient(transport, nil, ClientConfig{MaxAttempts: 3}, nil)

	_, err := client.Get(context.Background(), "https://example.com/gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, news.ErrNotFound)
	assert.Equal(t, 1, transport.calls, "404 must not be retried")
}

func TestGetRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()
	metrics.Init()

	transport := &fakeTransport{responses: []fakeResult{
		{err: errors.New("connection reset")},
		{resp: Response{StatusCode: http.StatusInternalServerError}},
		{resp: Response{StatusCode: http.StatusOK, Body: []byte("ok")}},
	}}
	client := NewClient(transport, nil, ClientConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}, nil)

	resp, err := client.Get(context.Background(), "https://example.com/flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, 3, transport.calls)
}

func TestGetExhaustsAttempts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	transport := &fakeTransport{responses: []fakeResult{
		{resp: Response{StatusCode: http.StatusBadGateway}},
	}}
	client := NewClient(transport, nil, ClientConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}, nil)

	_, err := client.Get(context.Background(), "https://example.com/down")
	require.Error(t, err)
	assert.NotErrorIs(t, err, news.ErrNotFound)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, transport.calls)
}

func TestGetCanceledContext(t *testing.T) {
	t.Parallel()
	metrics.Init()

	transport := &fakeTransport{responses: []fakeResult{
		{err: errors.New("timeout")},
	}}
	client := NewClient(transport, nil, ClientConfig{MaxAttempts: 3, RetryDelay: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "https://example.com/a")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
