// Package main hosts the news crawler service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, source management,
//     manual crawl triggers, and read endpoints for the run ledger and saved
//     articles. A manual trigger opens a ledger entry and returns its run ID
//     immediately; the crawl itself happens on the worker pool.
//   - Dispatch: crawl requests flow through a bounded in-memory queue sized by
//     config.Crawler.QueueDepth and are drained by a fixed worker pool sized by
//     config.Crawler.Workers. Each request becomes exactly one crawl run.
//   - Scheduler: a fixed tick evaluates every active source's interval against
//     its last scheduled crawl and dispatches the due ones, skipping sources
//     with a run already in flight. A separate sweep force-fails runs stuck in
//     running status past the grace period.
//   - Crawl pipeline: the source adapter (RSS/Atom via gofeed) lists candidate
//     URLs, a semaphore-bounded orchestrator fetches and parses them through
//     the Colly transport with per-domain rate limiting and fixed-delay
//     retries (HTTP 404 is definitive and never retried), and the gate commits
//     the batch: URL-hash dedup, article persistence, optional raw archival to
//     GCS, and a saved-article event per new article.
//   - Persistence: Postgres (pgx) when db.dsn is configured, in-memory stores
//     otherwise. Saved-article events go to Pub/Sub when a project and topic
//     are configured.
//   - Configuration & plumbing: Viper populates config from file and
//     NEWSCRAWLER_* env vars; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Run locally: go run ./cmd/newscrawler -config config.yaml (or rely solely
// on env overrides). The process reacts to SIGTERM by draining the queue and
// shutting the HTTP server down gracefully.
package main
