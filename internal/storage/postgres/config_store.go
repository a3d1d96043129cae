package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// ConfigStore persists source configurations in Postgres.
type ConfigStore struct {
	pool Pool
}

// NewConfigStore constructs a ConfigStore on an existing pool.
func NewConfigStore(pool Pool) (*ConfigStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ConfigStore{pool: pool}, nil
}

const configColumns = `name, base_url, active, interval_minutes, settings, last_crawl, last_scheduled_crawl, created_at, updated_at`

// Create inserts a new source configuration.
func (s *ConfigStore) Create(ctx context.Context, cfg news.SourceConfig) error {
	settings, err := json.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	query := `
INSERT INTO sources (` + configColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = s.pool.Exec(ctx, query,
		cfg.Name,
		cfg.BaseURL,
		cfg.Active,
		cfg.IntervalMinutes,
		settings,
		cfg.LastCrawl,
		cfg.LastScheduledCrawl,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return news.ErrSourceExists
	}
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

// Update replaces an existing source configuration.
func (s *ConfigStore) Update(ctx context.Context, cfg news.SourceConfig) error {
	settings, err := json.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	query := `
UPDATE sources
SET base_url = $2, active = $3, interval_minutes = $4, settings = $5, updated_at = $6
WHERE name = $1`
	tag, err := s.pool.Exec(ctx, query,
		cfg.Name,
		cfg.BaseURL,
		cfg.Active,
		cfg.IntervalMinutes,
		settings,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrSourceUnknown
	}
	return nil
}

// Delete removes a source configuration.
func (s *ConfigStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sources WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrSourceUnknown
	}
	return nil
}

// Get fetches a source configuration by name.
func (s *ConfigStore) Get(ctx context.Context, name string) (news.SourceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM sources WHERE name = $1`
	row := s.pool.QueryRow(ctx, query, name)
	cfg, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.SourceConfig{}, news.ErrSourceUnknown
	}
	if err != nil {
		return news.SourceConfig{}, fmt.Errorf("get source: %w", err)
	}
	return cfg, nil
}

// List returns all configured sources ordered by name.
func (s *ConfigStore) List(ctx context.Context) ([]news.SourceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM sources ORDER BY name`
	return s.querySources(ctx, query)
}

// ListActive returns active sources ordered by name.
func (s *ConfigStore) ListActive(ctx context.Context) ([]news.SourceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM sources WHERE active ORDER BY name`
	return s.querySources(ctx, query)
}

// UpdateMarkers sets last_crawl and, for scheduled runs, last_scheduled_crawl.
func (s *ConfigStore) UpdateMarkers(ctx context.Context, name string, at time.Time, scheduled bool) error {
	query := `
UPDATE sources
SET last_crawl = $2,
    last_scheduled_crawl = CASE WHEN $3 THEN $2 ELSE last_scheduled_crawl END,
    updated_at = $2
WHERE name = $1`
	tag, err := s.pool.Exec(ctx, query, name, at, scheduled)
	if err != nil {
		return fmt.Errorf("update crawl markers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrSourceUnknown
	}
	return nil
}

func (s *ConfigStore) querySources(ctx context.Context, query string, args ...any) ([]news.SourceConfig, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []news.SourceConfig
	for rows.Next() {
		cfg, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

func scanSource(row pgx.Row) (news.SourceConfig, error) {
	var (
		cfg      news.SourceConfig
		settings []byte
	)
	err := row.Scan(
		&cfg.Name,
		&cfg.BaseURL,
		&cfg.Active,
		&cfg.IntervalMinutes,
		&settings,
		&cfg.LastCrawl,
		&cfg.LastScheduledCrawl,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return news.SourceConfig{}, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &cfg.Settings); err != nil {
			return news.SourceConfig{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return cfg, nil
}
