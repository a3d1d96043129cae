package news

import "errors"

// ErrNotFound signals definitive absence of a fetched resource (HTTP 404).
// It is a result, not a transient failure, and is never retried.
var ErrNotFound = errors.New("resource not found")

// ErrSourceExists is returned when creating a source whose name is taken.
var ErrSourceExists = errors.New("source already exists")

// ErrSourceUnknown is returned for lookups of unconfigured sources.
var ErrSourceUnknown = errors.New("source not found")

// ErrRunUnknown is returned for lookups of missing ledger entries.
var ErrRunUnknown = errors.New("crawl run not found")

// ErrArticleUnknown is returned for lookups of missing articles.
var ErrArticleUnknown = errors.New("article not found")

// ErrNoAdapter is returned when no adapter is registered for a source.
var ErrNoAdapter = errors.New("no adapter registered for source")
