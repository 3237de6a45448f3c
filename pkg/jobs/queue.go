package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by TryEnqueue when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

// Handler processes one job payload.
type Handler[T any] func(context.Context, T) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

type envelope[T any] struct {
	payload T
	attempt int
}

// Queue is an in-memory worker pool for fire-and-forget work such as cache
// writes. Jobs still buffered at Stop are processed before Stop returns.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     QueueConfig
	logger  *zap.Logger

	jobs    chan envelope[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewQueue builds a queue with the provided handler.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		jobs:    make(chan envelope[T], cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop closes the queue, lets workers finish the buffered jobs and waits.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
	q.logger.Info("queue stopped")
}

// TryEnqueue adds a job without blocking. It fails when the queue is not
// running or the buffer is full.
func (q *Queue[T]) TryEnqueue(payload T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started || q.stopped {
		return fmt.Errorf("queue %s not running", q.name)
	}
	select {
	case q.jobs <- envelope[T]{payload: payload}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of buffered jobs.
func (q *Queue[T]) Len() int {
	return len(q.jobs)
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.process(job)
	}
}

// process runs the handler, retrying inline so buffered work stays ordered
// per worker and Stop never races a delayed requeue.
func (q *Queue[T]) process(job envelope[T]) {
	for {
		err := q.handler(q.ctx, job.payload)
		if err == nil {
			return
		}
		job.attempt++
		if job.attempt > q.cfg.MaxRetries {
			q.logger.Error("job exceeded retries", zap.Int("attempts", job.attempt), zap.Error(err))
			return
		}
		q.logger.Warn("job failed, retrying", zap.Int("attempt", job.attempt), zap.Error(err))
		timer := time.NewTimer(q.cfg.RetryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
