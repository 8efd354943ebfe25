package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"support-router/logger"
)

// WorkerPool runs webhook deliveries off the request goroutine. Submit never
// blocks: tasks wait in a bounded queue for a free worker, and anything past
// the queue runs on a detached goroutine.
type WorkerPool struct {
	pool  *ants.Pool
	queue chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool of size workers with room for queueSize
// waiting deliveries. Zero disables the queue.
func NewWorkerPool(size, queueSize int) (*WorkerPool, error) {
	opts := []ants.Option{
		ants.WithExpiryDuration(time.Minute),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Log.Error("Worker panic recovered", zap.Any("panic", p), zap.Stack("stack"))
		}),
	}
	// Only the dispatcher may wait on a worker.
	if queueSize > 0 {
		opts = append(opts, ants.WithNonblocking(false), ants.WithMaxBlockingTasks(1))
	} else {
		opts = append(opts, ants.WithNonblocking(true))
	}

	pool, err := ants.NewPool(size, opts...)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	w := &WorkerPool{pool: pool, done: make(chan struct{})}
	if queueSize > 0 {
		w.queue = make(chan func(), queueSize)
		go w.dispatch()
	} else {
		close(w.done)
	}
	return w, nil
}

// Submit hands task to the pool and returns immediately.
func (w *WorkerPool) Submit(task func()) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.overflow(task, errors.New("worker pool closed"))
		return
	}
	if w.queue == nil {
		if err := w.pool.Submit(task); err != nil {
			w.overflow(task, err)
		}
		return
	}

	select {
	case w.queue <- task:
	default:
		w.overflow(task, ants.ErrPoolOverload)
	}
}

func (w *WorkerPool) dispatch() {
	defer close(w.done)
	for task := range w.queue {
		if err := w.pool.Submit(task); err != nil {
			w.overflow(task, err)
		}
	}
}

func (w *WorkerPool) overflow(task func(), err error) {
	if errors.Is(err, ants.ErrPoolOverload) {
		WebhookOverflowTotal.Inc()
		logger.Log.Warn("Worker pool saturated, running delivery on a detached goroutine",
			zap.Int("running", w.pool.Running()), zap.Int("queued", w.Queued()))
	} else {
		logger.Log.Error("Worker pool submit failed, running delivery on a detached goroutine", zap.Error(err))
	}
	go task()
}

// Running returns the number of busy workers.
func (w *WorkerPool) Running() int {
	return w.pool.Running()
}

// Queued returns the number of deliveries waiting for a worker.
func (w *WorkerPool) Queued() int {
	return len(w.queue)
}

// Shutdown stops accepting work, drains the queue and waits up to timeout
// for running tasks to finish.
func (w *WorkerPool) Shutdown(timeout time.Duration) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		if w.queue != nil {
			close(w.queue)
		}
	}
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-time.After(timeout):
		return fmt.Errorf("worker pool: queue not drained within %s", timeout)
	}
	return w.pool.ReleaseTimeout(timeout)
}
