package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("worker queue full")

// Job is a unit of outbound work.
type Job interface {
	Name() string
	Process(ctx context.Context) error
}

type jobFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (j jobFunc) Name() string                      { return j.name }
func (j jobFunc) Process(ctx context.Context) error { return j.fn(ctx) }

// Func adapts a function to a Job.
func Func(name string, fn func(ctx context.Context) error) Job {
	return jobFunc{name: name, fn: fn}
}

// Pool runs jobs on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	logger   *zap.Logger
	workers  int
	jobQueue chan Job
	wg       sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewPool(logger *zap.Logger, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		logger:   logger,
		workers:  workers,
		jobQueue: make(chan Job, queueSize),
	}
}

// Start launches the workers. Jobs run under a context derived from ctx that
// is cancelled by Stop.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobQueue {
		if p.ctx.Err() != nil {
			p.logger.Debug("Skipping job after shutdown", zap.String("job", job.Name()))
			continue
		}
		if err := job.Process(p.ctx); err != nil {
			p.logger.Warn("Worker job failed", zap.String("job", job.Name()), zap.Error(err))
		}
	}
}

// Enqueue adds a job without blocking. It fails when the queue is full or the
// pool is stopped.
func (p *Pool) Enqueue(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return context.Canceled
	}
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop cancels in-flight jobs, discards queued ones and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobQueue)
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
