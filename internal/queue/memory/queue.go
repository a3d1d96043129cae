// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rasadlabs/newscrawler/internal/news"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan news.WorkItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan news.WorkItem, capacity),
	}
}

// Enqueue pushes a work item into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, item news.WorkItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next work item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (news.WorkItem, error) {
	select {
	case <-ctx.Done():
		return news.WorkItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return news.WorkItem{}, errors.New("queue closed")
		}
		return item, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
