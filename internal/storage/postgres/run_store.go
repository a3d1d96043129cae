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

// RunStore is the Postgres-backed crawl run ledger.
type RunStore struct {
	pool Pool
}

// NewRunStore constructs a RunStore on an existing pool.
func NewRunStore(pool Pool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

const runColumns = `id, source_name, start_time, end_time, status, items_found, items_saved, items_skipped, saved_ids, error_message, duration_seconds`

// CreateRun inserts a new ledger entry in running status.
func (s *RunStore) CreateRun(ctx context.Context, run news.CrawlRun) error {
	savedIDs, err := json.Marshal(run.SavedIDs)
	if err != nil {
		return fmt.Errorf("marshal saved ids: %w", err)
	}
	query := `
INSERT INTO crawl_runs (` + runColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = s.pool.Exec(ctx, query,
		run.ID,
		run.SourceName,
		run.StartTime,
		run.EndTime,
		string(run.Status),
		run.ItemsFound,
		run.ItemsSaved,
		run.ItemsSkipped,
		savedIDs,
		run.ErrorMessage,
		run.DurationSecs,
	)
	if err != nil {
		return fmt.Errorf("insert crawl run: %w", err)
	}
	return nil
}

// FinishRun writes the terminal state for a run.
func (s *RunStore) FinishRun(ctx context.Context, run news.CrawlRun) error {
	savedIDs, err := json.Marshal(run.SavedIDs)
	if err != nil {
		return fmt.Errorf("marshal saved ids: %w", err)
	}
	query := `
UPDATE crawl_runs
SET end_time = $2, status = $3, items_found = $4, items_saved = $5,
    items_skipped = $6, saved_ids = $7, error_message = $8, duration_seconds = $9
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		run.ID,
		run.EndTime,
		string(run.Status),
		run.ItemsFound,
		run.ItemsSaved,
		run.ItemsSkipped,
		savedIDs,
		run.ErrorMessage,
		run.DurationSecs,
	)
	if err != nil {
		return fmt.Errorf("finish crawl run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return news.ErrRunUnknown
	}
	return nil
}

// GetRun fetches a ledger entry by ID.
func (s *RunStore) GetRun(ctx context.Context, id string) (news.CrawlRun, error) {
	query := `SELECT ` + runColumns + ` FROM crawl_runs WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return news.CrawlRun{}, news.ErrRunUnknown
	}
	if err != nil {
		return news.CrawlRun{}, fmt.Errorf("get crawl run: %w", err)
	}
	return run, nil
}

// ListRuns returns ledger entries matching the filter, newest first.
func (s *RunStore) ListRuns(ctx context.Context, filter news.RunFilter) ([]news.CrawlRun, error) {
	query := `SELECT ` + runColumns + ` FROM crawl_runs WHERE ($1 = '' OR source_name = $1) AND ($2 = '' OR status = $2) ORDER BY start_time DESC LIMIT $3 OFFSET $4`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, query, filter.SourceName, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("query crawl runs: %w", err)
	}
	defer rows.Close()

	var out []news.CrawlRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crawl run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl runs: %w", err)
	}
	return out, nil
}

// RunningSources returns names of sources with a run currently running.
func (s *RunStore) RunningSources(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT source_name FROM crawl_runs WHERE status = 'running' ORDER BY source_name`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query running sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan running source: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate running sources: %w", err)
	}
	return out, nil
}

// MarkStaleRunning fails runs left running since before cutoff.
func (s *RunStore) MarkStaleRunning(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
UPDATE crawl_runs
SET status = 'failed',
    end_time = now(),
    error_message = 'run exceeded staleness grace period',
    duration_seconds = EXTRACT(EPOCH FROM now() - start_time)
WHERE status = 'running' AND start_time < $1`
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRun(row pgx.Row) (news.CrawlRun, error) {
	var (
		run      news.CrawlRun
		status   string
		savedIDs []byte
	)
	err := row.Scan(
		&run.ID,
		&run.SourceName,
		&run.StartTime,
		&run.EndTime,
		&status,
		&run.ItemsFound,
		&run.ItemsSaved,
		&run.ItemsSkipped,
		&savedIDs,
		&run.ErrorMessage,
		&run.DurationSecs,
	)
	if err != nil {
		return news.CrawlRun{}, err
	}
	run.Status = news.RunStatus(status)
	if len(savedIDs) > 0 {
		if err := json.Unmarshal(savedIDs, &run.SavedIDs); err != nil {
			return news.CrawlRun{}, fmt.Errorf("unmarshal saved ids: %w", err)
		}
	}
	return run, nil
}
