package queue

import (
	"context"
	"errors"
	"sync"

	"StockCast/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a stopped pool.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool is a bounded worker pool for CPU-heavy tasks. Training and
// inference are offloaded here so request handlers never burn a
// goroutine per caller on numeric work.
type Pool struct {
	logger *logger.Logger
	tasks  chan func()
	wg     sync.WaitGroup

	// mu serializes Stop against in-flight Submits: senders hold the
	// read side across the channel send so the channel is never closed
	// under a blocked sender.
	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines draining the task channel.
func NewPool(workers, queueSize int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	p := &Pool{
		logger: log,
		tasks:  make(chan func(), queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	log.Info("worker pool started",
		logger.Int("workers", workers),
		logger.Int("queue_size", queueSize),
	)
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task, blocking until a slot frees or ctx is done.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the pool and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Await runs fn on the pool and blocks until it completes or ctx is
// done. When ctx expires before the task is picked up, the task still
// runs to completion in the background but its result is discarded.
func Await[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	err := p.Submit(ctx, func() {
		v, e := fn()
		done <- outcome{val: v, err: e}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
