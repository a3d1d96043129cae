// Package scheduler triggers crawls for sources whose interval has
// elapsed, polling on a fixed tick and skipping sources that are already
// running.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
)

// Config controls scheduling cadence.
type Config struct {
	// TickInterval is how often due-ness is evaluated.
	TickInterval time.Duration
	// DefaultInterval applies to sources without a configured interval.
	DefaultInterval time.Duration
	// StaleRunGrace is how long a run may stay running before the sweeper
	// force-fails it.
	StaleRunGrace time.Duration
	// StaleSweepPeriod is how often the sweeper runs.
	StaleSweepPeriod time.Duration
}

// Scheduler polls source configurations and dispatches due crawls.
type Scheduler struct {
	configs news.ConfigStore
	runs    news.RunStore
	disp    news.Dispatcher
	clock   news.Clock
	cfg     Config
	logger  *zap.Logger
}

// New builds a Scheduler.
func New(
	configs news.ConfigStore,
	runs news.RunStore,
	disp news.Dispatcher,
	clock news.Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 15 * time.Minute
	}
	if cfg.StaleRunGrace <= 0 {
		cfg.StaleRunGrace = 30 * time.Minute
	}
	if cfg.StaleSweepPeriod <= 0 {
		cfg.StaleSweepPeriod = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		configs: configs,
		runs:    runs,
		disp:    disp,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run drives the tick and staleness sweep loops until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	sweeper := time.NewTicker(s.cfg.StaleSweepPeriod)
	defer sweeper.Stop()

	s.logger.Info("scheduler started",
		zap.Duration("tick_interval", s.cfg.TickInterval),
		zap.Duration("stale_run_grace", s.cfg.StaleRunGrace),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler tick failed", zap.Error(err))
			}
		case <-sweeper.C:
			s.SweepStale(ctx)
		}
	}
}

// Tick evaluates every active source once and dispatches those that are
// due. A source with a run already in flight is skipped, as is one already
// dispatched during this tick. A dispatch failure for one source does not
// stop the rest.
func (s *Scheduler) Tick(ctx context.Context) (news.TickSummary, error) {
	tickStart := time.Now()
	now := s.clock.Now()
	summary := news.TickSummary{}

	sources, err := s.configs.ListActive(ctx)
	if err != nil {
		return summary, err
	}
	runningList, err := s.runs.RunningSources(ctx)
	if err != nil {
		return summary, err
	}
	running := make(map[string]struct{}, len(runningList))
	for _, name := range runningList {
		running[name] = struct{}{}
	}

	dispatched := make(map[string]struct{})
	for _, source := range sources {
		summary.Checked++
		if _, inFlight := running[source.Name]; inFlight {
			s.logger.Debug("source already running, skipping", zap.String("source", source.Name))
			continue
		}
		if _, dup := dispatched[source.Name]; dup {
			continue
		}
		if !s.due(source, now) {
			continue
		}

		runID, err := s.disp.Dispatch(ctx, news.CrawlRequest{
			SourceName: source.Name,
			BaseURL:    source.BaseURL,
			Scheduled:  true,
		})
		if err != nil {
			s.logger.Error("scheduled dispatch failed",
				zap.String("source", source.Name),
				zap.Error(err),
			)
			continue
		}
		dispatched[source.Name] = struct{}{}
		summary.Triggered++
		s.logger.Info("scheduled crawl dispatched",
			zap.String("source", source.Name),
			zap.String("run_id", runID),
		)
	}

	metrics.ObserveTick(time.Since(tickStart), summary.Triggered)
	return summary, nil
}

// SweepStale force-fails runs left running longer than the grace period.
func (s *Scheduler) SweepStale(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.StaleRunGrace)
	swept, err := s.runs.MarkStaleRunning(ctx, cutoff)
	if err != nil {
		s.logger.Error("stale run sweep failed", zap.Error(err))
		return
	}
	metrics.ObserveStaleSweep(swept)
	if swept > 0 {
		s.logger.Warn("stale runs force-failed", zap.Int("count", swept))
	}
}

// due reports whether the source's interval has fully elapsed at now. A
// source that has never been crawled is immediately due.
func (s *Scheduler) due(source news.SourceConfig, now time.Time) bool {
	ref := source.DueReference()
	if ref == nil {
		return true
	}
	interval := source.Interval()
	if interval <= 0 {
		interval = s.cfg.DefaultInterval
	}
	return now.Sub(*ref) >= interval
}
