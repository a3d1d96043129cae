package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// RunStore is an in-memory crawl run ledger.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]news.CrawlRun
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]news.CrawlRun),
	}
}

// CreateRun records a new run in running status.
func (s *RunStore) CreateRun(_ context.Context, run news.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// FinishRun writes the terminal state for a run.
func (s *RunStore) FinishRun(_ context.Context, run news.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return news.ErrRunUnknown
	}
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (news.CrawlRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return news.CrawlRun{}, news.ErrRunUnknown
	}
	return run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *RunStore) ListRuns(_ context.Context, filter news.RunFilter) ([]news.CrawlRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]news.CrawlRun, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.SourceName != "" && run.SourceName != filter.SourceName {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []news.CrawlRun{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// RunningSources returns names of sources with a run currently running.
func (s *RunStore) RunningSources(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, run := range s.runs {
		if run.Status != news.RunStatusRunning {
			continue
		}
		if _, dup := seen[run.SourceName]; dup {
			continue
		}
		seen[run.SourceName] = struct{}{}
		out = append(out, run.SourceName)
	}
	sort.Strings(out)
	return out, nil
}

// MarkStaleRunning fails runs that started before cutoff and are still
// running. Returns the number of runs swept.
func (s *RunStore) MarkStaleRunning(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for id, run := range s.runs {
		if run.Status != news.RunStatusRunning || !run.StartTime.Before(cutoff) {
			continue
		}
		end := time.Now().UTC()
		run.Status = news.RunStatusFailed
		run.EndTime = &end
		run.ErrorMessage = "run exceeded staleness grace period"
		run.DurationSecs = end.Sub(run.StartTime).Seconds()
		s.runs[id] = run
		swept++
	}
	return swept, nil
}
