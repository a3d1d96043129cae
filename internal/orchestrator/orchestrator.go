// Package orchestrator runs the concurrent fetch-and-parse phase of a
// crawl: candidate discovery, bounded parallel item parsing, and content
// hash tagging.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// Config bounds one crawl.
type Config struct {
	// Concurrency caps simultaneous in-flight items per run.
	Concurrency int
	// MaxItems caps candidates requested from the adapter. Zero means no cap.
	MaxItems int
}

// Orchestrator executes the crawl phase for a single source.
type Orchestrator struct {
	hasher news.Hasher
	cfg    Config
	logger *zap.Logger
}

// New builds an Orchestrator.
func New(hasher news.Hasher, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		hasher: hasher,
		cfg:    cfg,
		logger: logger,
	}
}

// Crawl discovers candidates for the source and parses them concurrently.
// A candidate that fails to parse is dropped; the rest of the batch is
// unaffected. Only candidate discovery failure aborts the crawl.
func (o *Orchestrator) Crawl(ctx context.Context, source news.SourceConfig, adapter news.SourceAdapter) ([]news.ItemResult, error) {
	candidates, err := adapter.ListCandidates(ctx, source, o.cfg.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("discover candidates for %s: %w", source.Name, err)
	}
	if len(candidates) == 0 {
		o.logger.Info("no candidates discovered", zap.String("source", source.Name))
		return []news.ItemResult{}, nil
	}

	// Indexed slots keep feed order without a mutex around appends.
	slots := make([]*news.ItemResult, len(candidates))
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, url := range candidates {
		wg.Add(1)
		go func(idx int, itemURL string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			data, err := adapter.ParseItem(ctx, itemURL)
			if err != nil {
				o.logger.Warn("item parse failed",
					zap.String("source", source.Name),
					zap.String("url", itemURL),
					zap.Error(err),
				)
				return
			}
			if data == nil {
				o.logger.Debug("item not parseable",
					zap.String("source", source.Name),
					zap.String("url", itemURL),
				)
				return
			}
			slots[idx] = &news.ItemResult{
				SourceName: source.Name,
				SourceURL:  itemURL,
				URLHash:    o.hasher.HashString(itemURL),
				Data:       *data,
			}
		}(i, url)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("crawl %s: %w", source.Name, err)
	}

	batch := make([]news.ItemResult, 0, len(candidates))
	for _, slot := range slots {
		if slot != nil {
			batch = append(batch, *slot)
		}
	}
	o.logger.Info("crawl phase complete",
		zap.String("source", source.Name),
		zap.Int("candidates", len(candidates)),
		zap.Int("parsed", len(batch)),
	)
	return batch, nil
}
