// Package news defines the core types and interfaces shared across the
// crawl orchestration subsystems: source configuration, crawl run ledger
// entries, persisted articles, and the contracts between the scheduler,
// dispatch boundary, orchestrator, and persistence gate.
package news
