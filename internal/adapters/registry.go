// Package adapters maps source names to their crawl adapters.
package adapters

import (
	"fmt"
	"sync"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// Registry resolves source adapters by name, falling back to a default
// adapter when no source-specific one is registered.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]news.SourceAdapter
	fallback news.SourceAdapter
}

// NewRegistry builds a Registry. fallback may be nil, in which case lookups
// for unregistered sources fail.
func NewRegistry(fallback news.SourceAdapter) *Registry {
	return &Registry{
		adapters: make(map[string]news.SourceAdapter),
		fallback: fallback,
	}
}

// Register binds an adapter to a source name, replacing any previous binding.
func (r *Registry) Register(sourceName string, adapter news.SourceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[sourceName] = adapter
}

// Adapter resolves the adapter for a source.
func (r *Registry) Adapter(sourceName string) (news.SourceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if adapter, ok := r.adapters[sourceName]; ok {
		return adapter, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("source %q: %w", sourceName, news.ErrNoAdapter)
}
