package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue errors.
var (
	ErrQueueFull    = errors.New("queue full")
	ErrNotRunning   = errors.New("queue not running")
	ErrDuplicateJob = errors.New("job with the same key is pending")
)

// Job outcomes reported to the observer.
const (
	OutcomeDone  = "done"
	OutcomeRetry = "retry"
	OutcomeDead  = "dead"
)

// Job is one unit of background work. Jobs sharing a non-empty Key are
// coalesced while one of them is pending.
type Job struct {
	ID       string
	Type     string
	Key      string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers       int
	BufferSize    int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// Observe is called after every attempt with one of the Outcome constants.
	Observe func(queue, outcome string)
	// OnDead receives jobs that exhausted their retries.
	OnDead func(Job, error)
	Logger *zap.Logger
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Running   bool   `json:"running"`
	Pending   int    `json:"pending"`
	Processed uint64 `json:"processed"`
	Dead      uint64 `json:"dead"`
}

// Queue dispatches jobs to a fixed pool of goroutines with bounded retries.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger
	jobs    chan Job

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	keys      map[string]struct{}
	processed uint64
	dead      uint64

	wg sync.WaitGroup
}

// NewQueue builds a stopped queue; call Start before enqueueing.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
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
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = 32 * cfg.RetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
		keys:    make(map[string]struct{}),
	}
}

// Start launches the workers. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 1; i <= q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work(i)
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels in-flight work and waits for every worker and pending retry
// timer to return. Jobs still buffered are discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped", zap.Int("discarded", len(q.jobs)))
}

// Enqueue blocks until the job is buffered or the queue stops.
func (q *Queue) Enqueue(job Job) error {
	ctx, err := q.admit(&job)
	if err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		q.release(job.Key)
		return fmt.Errorf("queue %s: %w", q.name, ErrNotRunning)
	}
}

// TryEnqueue buffers the job or fails immediately with ErrQueueFull.
func (q *Queue) TryEnqueue(job Job) error {
	if _, err := q.admit(&job); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		q.release(job.Key)
		return fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

// Stats reports the buffered backlog and lifetime counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{Running: q.running, Pending: len(q.jobs), Processed: q.processed, Dead: q.dead}
}

func (q *Queue) admit(job *Job) (context.Context, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return nil, fmt.Errorf("queue %s: %w", q.name, ErrNotRunning)
	}
	if job.Key != "" {
		if _, ok := q.keys[job.Key]; ok {
			return nil, fmt.Errorf("queue %s: %w", q.name, ErrDuplicateJob)
		}
		q.keys[job.Key] = struct{}{}
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	return q.ctx, nil
}

func (q *Queue) release(key string) {
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.keys, key)
	q.mu.Unlock()
}

func (q *Queue) work(id int) {
	defer q.wg.Done()
	logger := q.logger.With(zap.Int("worker", id))
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			q.run(logger, job)
		}
	}
}

func (q *Queue) run(logger *zap.Logger, job Job) {
	err := q.handler(q.ctx, job)
	if err == nil {
		q.finish(job, OutcomeDone)
		logger.Debug("job done", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return
	}
	if q.ctx.Err() != nil {
		q.release(job.Key)
		return
	}

	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.finish(job, OutcomeDead)
		logger.Error("job exhausted retries",
			zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempts", job.Attempt), zap.Error(err))
		if q.cfg.OnDead != nil {
			q.cfg.OnDead(job, err)
		}
		return
	}

	q.observe(OutcomeRetry)
	delay := q.backoff(job.Attempt)
	logger.Warn("job failed, retrying",
		zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt),
		zap.Duration("delay", delay), zap.Error(err))
	q.wg.Add(1)
	go q.retryAfter(job, delay)
}

// retryAfter puts the job back after delay. The key stays claimed while it waits.
func (q *Queue) retryAfter(job Job, delay time.Duration) {
	defer q.wg.Done()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-q.ctx.Done():
		q.release(job.Key)
	case <-timer.C:
		select {
		case q.jobs <- job:
		case <-q.ctx.Done():
			q.release(job.Key)
		}
	}
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.MaxRetryDelay {
			return q.cfg.MaxRetryDelay
		}
	}
	return delay
}

func (q *Queue) finish(job Job, outcome string) {
	q.mu.Lock()
	if job.Key != "" {
		delete(q.keys, job.Key)
	}
	if outcome == OutcomeDead {
		q.dead++
	} else {
		q.processed++
	}
	q.mu.Unlock()
	q.observe(outcome)
}

func (q *Queue) observe(outcome string) {
	if q.cfg.Observe != nil {
		q.cfg.Observe(q.name, outcome)
	}
}
