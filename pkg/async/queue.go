package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/adminkit/pkg/observability"
)

// Queue hands items to a single background worker through a bounded
// buffer. Offer never blocks: when the buffer is full the item is dropped
// and reported to the caller.
type Queue[T any] struct {
	name    string
	items   chan T
	handle  func(context.Context, T) error
	timeout time.Duration
	logger  *observability.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue starts the worker. Each item is handled with its own timeout;
// handler errors and panics are logged and do not stop the worker.
//
//	q := async.NewQueue("audit writer", 1024, 5*time.Second, store.Insert, logger)
//	defer q.Close(5 * time.Second)
func NewQueue[T any](name string, size int, timeout time.Duration, handle func(context.Context, T) error, logger *observability.Logger) *Queue[T] {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = observability.GetLogger(context.Background())
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue[T]{
		name:    name,
		items:   make(chan T, size),
		handle:  handle,
		timeout: timeout,
		logger:  logger.WithField("worker", name),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go q.run()
	return q
}

// Offer enqueues item. It returns false when the queue is full or closed.
func (q *Queue[T]) Offer(item T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}
	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Close stops accepting items and waits up to timeout for the buffer to
// drain. Items still buffered after the timeout are abandoned.
func (q *Queue[T]) Close(timeout time.Duration) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-time.After(timeout):
		q.cancel()
		return fmt.Errorf("%s shutdown timed out after %v", q.name, timeout)
	}
}

func (q *Queue[T]) run() {
	defer close(q.done)
	for item := range q.items {
		if q.ctx.Err() != nil {
			return
		}
		q.process(item)
	}
}

func (q *Queue[T]) process(item T) {
	defer observability.RecoverPanic(q.logger, q.name)

	ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
	defer cancel()

	if err := q.handle(ctx, item); err != nil {
		q.logger.WithError(err).Warn("background task failed")
	}
}
