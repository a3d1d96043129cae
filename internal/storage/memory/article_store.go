package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// ArticleStore is an in-memory news.ArticleStore keyed by article ID with a
// secondary index on URL hash.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]news.Article
	byHash   map[string]string
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{
		articles: make(map[string]news.Article),
		byHash:   make(map[string]string),
	}
}

// HasHash reports whether an article with the given URL hash exists.
func (s *ArticleStore) HasHash(_ context.Context, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHash[hash]
	return ok, nil
}

// Insert persists a new article and returns its ID.
func (s *ArticleStore) Insert(_ context.Context, article news.Article) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.ID] = article
	s.byHash[article.URLHash] = article.ID
	return article.ID, nil
}

// Get fetches an article by ID.
func (s *ArticleStore) Get(_ context.Context, id string) (news.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[id]
	if !ok {
		return news.Article{}, news.ErrArticleUnknown
	}
	return article, nil
}

// ListArticles returns articles matching the filter, newest first.
func (s *ArticleStore) ListArticles(_ context.Context, filter news.ArticleFilter) ([]news.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]news.Article, 0, len(s.articles))
	for _, article := range s.articles {
		if filter.SourceName != "" && article.SourceName != filter.SourceName {
			continue
		}
		out = append(out, article)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CrawledAt.After(out[j].CrawledAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []news.Article{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Stats aggregates article counts for one source, or all sources when
// sourceName is empty.
func (s *ArticleStore) Stats(_ context.Context, sourceName string) (news.SourceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := news.SourceStats{SourceName: sourceName}
	for _, article := range s.articles {
		if sourceName != "" && article.SourceName != sourceName {
			continue
		}
		stats.Total++
		if article.Processed {
			stats.Processed++
		} else {
			stats.Unprocessed++
		}
	}
	return stats, nil
}
