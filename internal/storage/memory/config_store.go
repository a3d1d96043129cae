// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// ConfigStore is an in-memory news.ConfigStore.
type ConfigStore struct {
	mu      sync.RWMutex
	sources map[string]news.SourceConfig
}

// NewConfigStore constructs a ConfigStore.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		sources: make(map[string]news.SourceConfig),
	}
}

// Create stores a new source configuration.
func (s *ConfigStore) Create(_ context.Context, cfg news.SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sources[cfg.Name]; exists {
		return news.ErrSourceExists
	}
	s.sources[cfg.Name] = cfg
	return nil
}

// Update replaces an existing source configuration.
func (s *ConfigStore) Update(_ context.Context, cfg news.SourceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sources[cfg.Name]; !exists {
		return news.ErrSourceUnknown
	}
	s.sources[cfg.Name] = cfg
	return nil
}

// Delete removes a source configuration.
func (s *ConfigStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sources[name]; !exists {
		return news.ErrSourceUnknown
	}
	delete(s.sources, name)
	return nil
}

// Get fetches a source configuration by name.
func (s *ConfigStore) Get(_ context.Context, name string) (news.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.sources[name]
	if !ok {
		return news.SourceConfig{}, news.ErrSourceUnknown
	}
	return cfg, nil
}

// List returns all configured sources sorted by name.
func (s *ConfigStore) List(_ context.Context) ([]news.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]news.SourceConfig, 0, len(s.sources))
	for _, cfg := range s.sources {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListActive returns active sources sorted by name.
func (s *ConfigStore) ListActive(ctx context.Context) ([]news.SourceConfig, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, cfg := range all {
		if cfg.Active {
			out = append(out, cfg)
		}
	}
	return out, nil
}

// UpdateMarkers sets last_crawl and, for scheduled runs, last_scheduled_crawl.
func (s *ConfigStore) UpdateMarkers(_ context.Context, name string, at time.Time, scheduled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.sources[name]
	if !ok {
		return news.ErrSourceUnknown
	}
	ts := at
	cfg.LastCrawl = &ts
	if scheduled {
		sts := at
		cfg.LastScheduledCrawl = &sts
	}
	cfg.UpdatedAt = at
	s.sources[name] = cfg
	return nil
}
