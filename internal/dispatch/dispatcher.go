// Package dispatch accepts crawl requests, opens their ledger entries, and
// feeds a fixed worker pool through a bounded queue.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/news"
	"github.com/rasadlabs/newscrawler/internal/queue/memory"
	"github.com/rasadlabs/newscrawler/internal/runner"
)

// Config sizes the dispatch boundary.
type Config struct {
	Workers    int
	QueueDepth int
}

// Dispatcher implements news.Dispatcher on an in-memory queue.
type Dispatcher struct {
	queue  *memory.Queue
	runner *runner.Runner
	cfg    Config
	logger *zap.Logger

	wg       sync.WaitGroup
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// New builds a Dispatcher.
func New(r *runner.Runner, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:  memory.NewQueue(cfg.QueueDepth),
		runner: r,
		cfg:    cfg,
		logger: logger,
	}
}

// Start launches the worker pool. Workers drain the queue until the context
// ends or Stop closes the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			d.workLoop(ctx, workerID)
		}(i)
	}
	d.logger.Info("dispatcher started", zap.Int("workers", d.cfg.Workers))
}

// Dispatch opens a ledger entry for the request, queues the work, and
// returns the run ID immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, req news.CrawlRequest) (string, error) {
	run, err := d.runner.Begin(ctx, req)
	if err != nil {
		return "", err
	}
	item := news.WorkItem{Run: run, Request: req}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		d.runner.Abort(ctx, run, fmt.Errorf("queue crawl work: %w", err))
		return "", fmt.Errorf("dispatch %s: %w", req.SourceName, err)
	}
	return run.ID, nil
}

// Stop closes the queue and waits for in-flight work to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.queue.Close()
	})
	d.wg.Wait()
}

func (d *Dispatcher) workLoop(ctx context.Context, workerID int) {
	for {
		item, err := d.queue.Dequeue(ctx)
		if err != nil {
			d.logger.Debug("worker exiting",
				zap.Int("worker", workerID),
				zap.Error(err),
			)
			return
		}
		d.runner.Perform(ctx, item.Run, item.Request)
	}
}
