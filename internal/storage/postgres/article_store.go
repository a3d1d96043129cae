package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// ArticleStore persists deduplicated articles in Postgres.
type ArticleStore struct {
	pool Pool
}

// NewArticleStore constructs an ArticleStore on an existing pool.
func NewArticleStore(pool Pool) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ArticleStore{pool: pool}, nil
}

const articleColumns = `id, source_name, source_url, url_hash, title, content, meta, crawled_at, processed`

// HasHash reports whether an article with the given URL hash exists.
func (s *ArticleStore) HasHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM articles WHERE url_hash = $1)`, hash)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check url hash: %w", err)
	}
	return exists, nil
}

// Insert persists a new article and returns its ID.
func (s *ArticleStore) Insert(ctx context.Context, article news.Article) (string, error) {
	meta, err := json.Marshal(article.Meta)
	if err != nil {
		return "", fmt.Errorf("marshal meta: %w", err)
	}
	query := `
INSERT INTO articles (` + articleColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = s.pool.Exec(ctx, query,
		article.ID,
		article.SourceName,
		article.SourceURL,
		article.URLHash,
		article.Title,
		article.Content,
		meta,
		article.CrawledAt,
		article.Processed,
	)
	if err != nil {
		return "", fmt.Errorf("insert article: %w", err)
	}
	return article.ID, nil
}

// Get fetches an article by ID.
func (s *ArticleStore) Get(ctx context.Context, id string) (news.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)
	article, err := scanArticle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.Article{}, news.ErrArticleUnknown
	}
	if err != nil {
		return news.Article{}, fmt.Errorf("get article: %w", err)
	}
	return article, nil
}

// ListArticles returns articles matching the filter, newest first.
func (s *ArticleStore) ListArticles(ctx context.Context, filter news.ArticleFilter) ([]news.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE ($1 = '' OR source_name = $1) ORDER BY crawled_at DESC LIMIT $2 OFFSET $3`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, query, filter.SourceName, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []news.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// Stats aggregates article counts for one source, or all when sourceName is
// empty.
func (s *ArticleStore) Stats(ctx context.Context, sourceName string) (news.SourceStats, error) {
	query := `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE processed),
       COUNT(*) FILTER (WHERE NOT processed)
FROM articles
WHERE ($1 = '' OR source_name = $1)`
	stats := news.SourceStats{SourceName: sourceName}
	row := s.pool.QueryRow(ctx, query, sourceName)
	if err := row.Scan(&stats.Total, &stats.Processed, &stats.Unprocessed); err != nil {
		return news.SourceStats{}, fmt.Errorf("aggregate article stats: %w", err)
	}
	return stats, nil
}

func scanArticle(row pgx.Row) (news.Article, error) {
	var (
		article news.Article
		meta    []byte
	)
	err := row.Scan(
		&article.ID,
		&article.SourceName,
		&article.SourceURL,
		&article.URLHash,
		&article.Title,
		&article.Content,
		&meta,
		&article.CrawledAt,
		&article.Processed,
	)
	if err != nil {
		return news.Article{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &article.Meta); err != nil {
			return news.Article{}, fmt.Errorf("unmarshal meta: %w", err)
		}
	}
	return article, nil
}
