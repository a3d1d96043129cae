// Package gate commits crawled batches: URL-hash deduplication, article
// persistence, raw payload archival, saved-article events, and crawl
// marker updates.
package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
)

// Config controls archival behavior.
type Config struct {
	// ArchivePrefix is the blob path prefix for raw payloads.
	ArchivePrefix string
	// ArchiveContentType is the content type recorded for archived payloads.
	ArchiveContentType string
}

// Gate is the single write path between a crawl batch and the article store.
type Gate struct {
	articles news.ArticleStore
	configs  news.ConfigStore
	blobs    news.BlobStore
	pub      news.Publisher
	ids      news.IDGenerator
	clock    news.Clock
	cfg      Config
	logger   *zap.Logger
}

// New builds a Gate. blobs and pub may be nil to disable archival and
// event publishing.
func New(
	articles news.ArticleStore,
	configs news.ConfigStore,
	blobs news.BlobStore,
	pub news.Publisher,
	ids news.IDGenerator,
	clock news.Clock,
	cfg Config,
	logger *zap.Logger,
) *Gate {
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "articles"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		articles: articles,
		configs:  configs,
		blobs:    blobs,
		pub:      pub,
		ids:      ids,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// SavedArticleEvent is published for every newly persisted article.
type SavedArticleEvent struct {
	ArticleID  string `json:"article_id"`
	SourceName string `json:"source_name"`
	SourceURL  string `json:"source_url"`
	URLHash    string `json:"url_hash"`
	Title      string `json:"title"`
}

// Commit writes the batch through the dedup gate. Items whose URL hash is
// already stored are skipped; a write failure on one item does not stop the
// rest. On success the source's crawl markers are advanced, with
// last_scheduled_crawl only touched for scheduled runs.
func (g *Gate) Commit(ctx context.Context, source news.SourceConfig, batch []news.ItemResult, scheduled bool) (news.CommitStats, error) {
	stats := news.CommitStats{}
	now := g.clock.Now()

	for _, item := range batch {
		exists, err := g.articles.HasHash(ctx, item.URLHash)
		if err != nil {
			g.logger.Error("dedup check failed",
				zap.String("source", source.Name),
				zap.String("url", item.SourceURL),
				zap.Error(err),
			)
			continue
		}
		if exists {
			stats.Skipped++
			g.logger.Debug("duplicate item skipped",
				zap.String("source", source.Name),
				zap.String("url", item.SourceURL),
			)
			continue
		}

		id, err := g.ids.NewID()
		if err != nil {
			g.logger.Error("id generation failed", zap.Error(err))
			continue
		}

		meta := item.Data.Meta
		if uri := g.archive(ctx, source.Name, item); uri != "" {
			if meta == nil {
				meta = map[string]any{}
			}
			meta["raw_uri"] = uri
		}

		article := news.Article{
			ID:         id,
			SourceName: item.SourceName,
			SourceURL:  item.SourceURL,
			URLHash:    item.URLHash,
			Title:      item.Data.Title,
			Content:    item.Data.Body,
			Meta:       meta,
			CrawledAt:  now,
		}
		if _, err := g.articles.Insert(ctx, article); err != nil {
			g.logger.Error("article insert failed",
				zap.String("source", source.Name),
				zap.String("url", item.SourceURL),
				zap.Error(err),
			)
			continue
		}
		stats.Saved++
		stats.SavedIDs = append(stats.SavedIDs, id)
		g.announce(ctx, article)
	}

	metrics.ObserveItems(source.Name, stats.Saved, stats.Skipped)

	if err := g.configs.UpdateMarkers(ctx, source.Name, now, scheduled); err != nil {
		return stats, fmt.Errorf("update crawl markers for %s: %w", source.Name, err)
	}
	return stats, nil
}

// archive stores the raw payload and returns its URI, or "" when archival
// is disabled or fails. Archival failure never blocks persistence.
func (g *Gate) archive(ctx context.Context, sourceName string, item news.ItemResult) string {
	if g.blobs == nil || len(item.Data.Raw) == 0 {
		return ""
	}
	path := fmt.Sprintf("%s/%s/%s.html", g.cfg.ArchivePrefix, sourceName, item.URLHash)
	uri, err := g.blobs.PutObject(ctx, path, g.cfg.ArchiveContentType, item.Data.Raw)
	if err != nil {
		g.logger.Warn("raw payload archival failed",
			zap.String("source", sourceName),
			zap.String("url", item.SourceURL),
			zap.Error(err),
		)
		return ""
	}
	return uri
}

func (g *Gate) announce(ctx context.Context, article news.Article) {
	if g.pub == nil {
		return
	}
	event := SavedArticleEvent{
		ArticleID:  article.ID,
		SourceName: article.SourceName,
		SourceURL:  article.SourceURL,
		URLHash:    article.URLHash,
		Title:      article.Title,
	}
	if _, err := g.pub.Publish(ctx, event); err != nil {
		g.logger.Warn("saved-article event publish failed",
			zap.String("article_id", article.ID),
			zap.Error(err),
		)
	}
}
