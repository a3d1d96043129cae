package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
	"github.com/rasadlabs/newscrawler/internal/storage/memory"
)

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type fakeDispatcher struct {
	lastRequest news.CrawlRequest
	err         error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, req news.CrawlRequest) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.lastRequest = req
	return "run-123", nil
}

type fixture struct {
	server   *Server
	configs  *memory.ConfigStore
	runs     *memory.RunStore
	articles *memory.ArticleStore
	disp     *fakeDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics.Init()

	f := &fixture{
		configs:  memory.NewConfigStore(),
		runs:     memory.NewRunStore(),
		articles: memory.NewArticleStore(),
		disp:     &fakeDispatcher{},
	}
	clock := fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.server = NewServer(f.configs, f.runs, f.articles, f.disp, clock, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/sources", map[string]any{
		"name":             "reuters",
		"base_url":         "https://reuters.example.com",
		"interval_minutes": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decode[news.SourceConfig](t, rec)
	assert.Equal(t, "reuters", created.Name)
	assert.True(t, created.Active, "sources default to active")
	assert.Equal(t, 30, created.IntervalMinutes)

	stored, err := f.configs.Get(context.Background(), "reuters")
	require.NoError(t, err)
	assert.Equal(t, "https://reuters.example.com", stored.BaseURL)
}

func TestCreateSourceValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/sources", map[string]any{"name": "incomplete"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/sources", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestCreateSourceDuplicate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	body := map[string]any{"name": "dup", "base_url": "https://dup.example.com"}
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/sources", body).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/v1/sources", body).Code)
}

func TestGetSourceNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/sources/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSourcePreservesMarkers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	last := time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.configs.Create(context.Background(), news.SourceConfig{
		Name:            "bbc",
		BaseURL:         "https://bbc.example.com",
		Active:          true,
		IntervalMinutes: 15,
		LastCrawl:       &last,
	}))

	rec := f.do(t, http.MethodPut, "/v1/sources/bbc", map[string]any{
		"interval_minutes": 60,
		"active":           false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := f.configs.Get(context.Background(), "bbc")
	require.NoError(t, err)
	assert.Equal(t, 60, updated.IntervalMinutes)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.LastCrawl)
	assert.Equal(t, last, *updated.LastCrawl)
}

func TestDeleteSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.configs.Create(context.Background(), news.SourceConfig{
		Name: "gone", BaseURL: "https://gone.example.com",
	}))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/v1/sources/gone", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/v1/sources/gone", nil).Code)
}

func TestTriggerCrawl(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/sources/reuters/crawl", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "run-123", resp["run_id"])
	assert.Equal(t, "reuters", f.disp.lastRequest.SourceName)
	assert.False(t, f.disp.lastRequest.Scheduled, "operator-triggered crawls are not scheduled")
}

func TestTriggerCrawlUnknownSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.disp.err = news.ErrSourceUnknown
	rec := f.do(t, http.MethodPost, "/v1/sources/ghost/crawl", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRunsFilters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.runs.CreateRun(ctx, news.CrawlRun{
		ID: "r1", SourceName: "alpha", StartTime: base, Status: news.RunStatusCompleted,
	}))
	require.NoError(t, f.runs.CreateRun(ctx, news.CrawlRun{
		ID: "r2", SourceName: "beta", StartTime: base.Add(time.Minute), Status: news.RunStatusFailed,
	}))

	rec := f.do(t, http.MethodGet, "/v1/runs?source=alpha", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string][]news.CrawlRun](t, rec)
	require.Len(t, resp["runs"], 1)
	assert.Equal(t, "r1", resp["runs"][0].ID)

	rec = f.do(t, http.MethodGet, "/v1/runs?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[map[string][]news.CrawlRun](t, rec)
	require.Len(t, resp["runs"], 1)
	assert.Equal(t, "r2", resp["runs"][0].ID)
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArticlesEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	id, err := f.articles.Insert(ctx, news.Article{
		ID:         "a1",
		SourceName: "alpha",
		SourceURL:  "https://alpha.example.com/1",
		URLHash:    "h1",
		Title:      "headline",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/v1/articles?source=alpha", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string][]news.Article](t, rec)
	require.Len(t, resp["articles"], 1)

	rec = f.do(t, http.MethodGet, "/v1/articles/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	article := decode[news.Article](t, rec)
	assert.Equal(t, "headline", article.Title)

	rec = f.do(t, http.MethodGet, "/v1/articles/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.articles.Insert(ctx, news.Article{
		ID: "a1", SourceName: "alpha", URLHash: "h1", Processed: true,
	})
	require.NoError(t, err)
	_, err = f.articles.Insert(ctx, news.Article{
		ID: "a2", SourceName: "alpha", URLHash: "h2",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/v1/stats?source=alpha", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[news.SourceStats](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Unprocessed)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
