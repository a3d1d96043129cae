// Package runner owns the crawl run lifecycle: ledger entry creation, the
// crawl and commit phases, and the single terminal ledger write.
package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/gate"
	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
	"github.com/rasadlabs/newscrawler/internal/orchestrator"
)

// Runner executes crawl requests end to end.
type Runner struct {
	registry news.AdapterRegistry
	orch     *orchestrator.Orchestrator
	gate     *gate.Gate
	runs     news.RunStore
	configs  news.ConfigStore
	ids      news.IDGenerator
	clock    news.Clock
	logger   *zap.Logger
}

// New builds a Runner.
func New(
	registry news.AdapterRegistry,
	orch *orchestrator.Orchestrator,
	g *gate.Gate,
	runs news.RunStore,
	configs news.ConfigStore,
	ids news.IDGenerator,
	clock news.Clock,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		registry: registry,
		orch:     orch,
		gate:     g,
		runs:     runs,
		configs:  configs,
		ids:      ids,
		clock:    clock,
		logger:   logger,
	}
}

// Begin opens a ledger entry in running status for the request and returns
// it. The returned run ID is handed back to callers before the crawl work
// happens.
func (r *Runner) Begin(ctx context.Context, req news.CrawlRequest) (news.CrawlRun, error) {
	if _, err := r.configs.Get(ctx, req.SourceName); err != nil {
		return news.CrawlRun{}, fmt.Errorf("begin run for %s: %w", req.SourceName, err)
	}
	id, err := r.ids.NewID()
	if err != nil {
		return news.CrawlRun{}, fmt.Errorf("begin run for %s: %w", req.SourceName, err)
	}
	run := news.CrawlRun{
		ID:         id,
		SourceName: req.SourceName,
		StartTime:  r.clock.Now(),
		Status:     news.RunStatusRunning,
	}
	if err := r.runs.CreateRun(ctx, run); err != nil {
		return news.CrawlRun{}, fmt.Errorf("begin run for %s: %w", req.SourceName, err)
	}
	metrics.IncActiveRuns()
	r.logger.Info("crawl run started",
		zap.String("run_id", run.ID),
		zap.String("source", run.SourceName),
		zap.Bool("scheduled", req.Scheduled),
	)
	return run, nil
}

// Perform executes the crawl for an open run and writes exactly one
// terminal ledger state. Counts accumulated before a failure are preserved
// in the failed entry.
func (r *Runner) Perform(ctx context.Context, run news.CrawlRun, req news.CrawlRequest) news.CrawlRun {
	var failure error

	defer func() {
		r.finish(ctx, &run, failure)
	}()

	source, err := r.configs.Get(ctx, req.SourceName)
	if err != nil {
		failure = fmt.Errorf("load source config: %w", err)
		return run
	}
	adapter, err := r.registry.Adapter(req.SourceName)
	if err != nil {
		failure = err
		return run
	}

	batch, err := r.orch.Crawl(ctx, source, adapter)
	if err != nil {
		failure = err
		return run
	}
	run.ItemsFound = len(batch)

	stats, err := r.gate.Commit(ctx, source, batch, req.Scheduled)
	run.ItemsSaved = stats.Saved
	run.ItemsSkipped = stats.Skipped
	run.SavedIDs = stats.SavedIDs
	if err != nil {
		failure = err
		return run
	}
	return run
}

// Abort terminally fails a run that never started executing, for example
// when its work item could not be queued.
func (r *Runner) Abort(ctx context.Context, run news.CrawlRun, cause error) {
	r.finish(ctx, &run, cause)
}

// finish performs the single terminal write for a run.
func (r *Runner) finish(ctx context.Context, run *news.CrawlRun, failure error) {
	end := r.clock.Now()
	run.EndTime = &end
	run.DurationSecs = end.Sub(run.StartTime).Seconds()
	if failure != nil {
		run.Status = news.RunStatusFailed
		run.ErrorMessage = failure.Error()
	} else {
		run.Status = news.RunStatusCompleted
	}

	if err := r.runs.FinishRun(ctx, *run); err != nil {
		r.logger.Error("terminal ledger write failed",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
	metrics.DecActiveRuns()
	metrics.ObserveRun(run.SourceName, string(run.Status))

	if failure != nil {
		r.logger.Error("crawl run failed",
			zap.String("run_id", run.ID),
			zap.String("source", run.SourceName),
			zap.Int("items_found", run.ItemsFound),
			zap.Int("items_saved", run.ItemsSaved),
			zap.Int("items_skipped", run.ItemsSkipped),
			zap.Error(failure),
		)
		return
	}
	r.logger.Info("crawl run completed",
		zap.String("run_id", run.ID),
		zap.String("source", run.SourceName),
		zap.Int("items_found", run.ItemsFound),
		zap.Int("items_saved", run.ItemsSaved),
		zap.Int("items_skipped", run.ItemsSkipped),
		zap.Float64("duration_seconds", run.DurationSecs),
	)
}
