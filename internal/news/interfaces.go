package news

import (
	"context"
	"time"
)

// SourceAdapter turns a configured source into candidate URLs and parsed
// items. "Item not parseable" is (nil, nil), never an error; errors are
// reserved for infrastructure failure and only fail candidate discovery.
type SourceAdapter interface {
	ListCandidates(ctx context.Context, source SourceConfig, limit int) ([]string, error)
	ParseItem(ctx context.Context, url string) (*ItemData, error)
}

// AdapterRegistry resolves the adapter for a source at dispatch time.
type AdapterRegistry interface {
	Adapter(sourceName string) (SourceAdapter, error)
}

// ConfigStore exposes source configurations to the scheduler/orchestrator.
// CRUD beyond marker updates is owned by the API layer.
type ConfigStore interface {
	Create(ctx context.Context, cfg SourceConfig) error
	Update(ctx context.Context, cfg SourceConfig) error
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (SourceConfig, error)
	List(ctx context.Context) ([]SourceConfig, error)
	ListActive(ctx context.Context) ([]SourceConfig, error)
	// UpdateMarkers sets last_crawl to at and, when scheduled, also
	// last_scheduled_crawl. The core mutates no other config fields.
	UpdateMarkers(ctx context.Context, name string, at time.Time, scheduled bool) error
}

// RunStore is the crawl run ledger.
type RunStore interface {
	CreateRun(ctx context.Context, run CrawlRun) error
	// FinishRun writes the single terminal state for a run, preserving the
	// counts accumulated before any failure.
	FinishRun(ctx context.Context, run CrawlRun) error
	GetRun(ctx context.Context, id string) (CrawlRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]CrawlRun, error)
	// RunningSources returns the names of sources with a run currently in
	// status running; the scheduler's mutual-exclusion check.
	RunningSources(ctx context.Context) ([]string, error)
	// MarkStaleRunning fails runs left running since before cutoff and
	// returns how many were swept.
	MarkStaleRunning(ctx context.Context, cutoff time.Time) (int, error)
}

// ArticleStore persists deduplicated articles, keyed by URL hash.
type ArticleStore interface {
	HasHash(ctx context.Context, hash string) (bool, error)
	Insert(ctx context.Context, article Article) (string, error)
	Get(ctx context.Context, id string) (Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, error)
	Stats(ctx context.Context, sourceName string) (SourceStats, error)
}

// BlobStore archives raw payloads and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher announces saved articles for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Dispatcher accepts a crawl request and executes it asynchronously,
// returning a run identifier immediately.
type Dispatcher interface {
	Dispatch(ctx context.Context, req CrawlRequest) (string, error)
}

// Hasher computes content-address digests.
type Hasher interface {
	HashString(s string) string
}

// Clock returns the current time (injected for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and article identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
