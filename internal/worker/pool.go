package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amitsajwan/AgenticAiProperties/internal/metrics"
)

// ErrQueueFull is returned by Submit when the bounded queue is saturated.
// Callers answer the sender accordingly so the delivery is retried later.
var ErrQueueFull = errors.New("worker: queue full")

// ErrStopped is returned by Submit after Shutdown.
var ErrStopped = errors.New("worker: stopped")

// Task is one unit of background work. The context it receives is the
// pool's, bounded by the task timeout, never a request context: once a
// delivery is acknowledged its processing must not die with the request.
type Task func(ctx context.Context)

// Pool runs webhook processing off the request path on a fixed number of
// workers over a bounded queue.
type Pool struct {
	tasks       chan Task
	workers     int
	taskTimeout time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewPool sizes the pool. workers and queueSize fall back to sane minimums.
func NewPool(workers, queueSize int, taskTimeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 16
	}
	if taskTimeout <= 0 {
		taskTimeout = time.Minute
	}
	return &Pool{
		tasks:       make(chan Task, queueSize),
		workers:     workers,
		taskTimeout: taskTimeout,
		logger:      logger,
		metrics:     m,
	}
}

// Start launches the workers. Safe to call once.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.baseCtx != nil {
		return
	}
	p.baseCtx, p.cancel = context.WithCancel(context.Background())
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Submit enqueues a task without blocking. A saturated queue is an error,
// not a silent drop: the caller decides how to signal the sender. The send
// stays under the mutex so it cannot race the channel close in Shutdown.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.tasks <- task:
		p.gaugeDepth()
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work, drains the queue, and waits for in-flight
// tasks until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if p.cancel != nil {
			p.cancel()
		}
		return nil
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.gaugeDepth()
		p.execute(task)
	}
}

func (p *Pool) execute(task Task) {
	ctx, cancel := context.WithTimeout(p.baseCtx, p.taskTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background task panicked", zap.Any("panic", r))
		}
	}()
	task(ctx)
}

func (p *Pool) gaugeDepth() {
	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(len(p.tasks)))
	}
}
