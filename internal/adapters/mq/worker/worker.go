// Package worker runs publish jobs. Jobs for the same event always land on
// the same single-goroutine shard, so they are applied one after another;
// jobs for different events run in parallel on different shards.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/oom/internal/adapters/mq/queue"
	"github.com/okian/oom/pkg/logger"
	"github.com/okian/oom/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Handler executes one job.
type Handler interface {
	Handle(ctx context.Context, job queue.Job) queue.Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job queue.Job) queue.Result

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job queue.Job) queue.Result { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs from one queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  h,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop. It returns when ctx is done, Shutdown is
// called, or the queue is closed and empty.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker and waits for the loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs the handler and always answers the job, even if the handler panics.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	var res queue.Result
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "publish handler panicked",
				logger.String("event_id", job.EventID), logger.Any("panic", r))
			metrics.RecordErrorByComponent("worker", "panic")
			res = queue.Result{Err: fmt.Errorf("publish %s: handler panic: %v", job.EventID, r)}
		}
		metrics.RecordWorkerJob()
		if job.Reply != nil {
			select {
			case job.Reply <- res:
			default:
				w.logger.Warn(ctx, "reply channel full; dropping result", logger.String("event_id", job.EventID))
			}
		}
	}()

	res = w.handler.Handle(ctx, job)
	if res.Err != nil {
		w.logger.Debug(ctx, "publish job failed", logger.String("event_id", job.EventID), logger.Error(res.Err))
	}
}

type shard struct {
	queue  *queue.InMemoryQueue
	worker *InMemoryWorker
}

// Pool fans jobs out to shards by event ID.
type Pool struct {
	shards  []shard
	pending atomic.Int64
	logger  logger.Logger
	started atomic.Bool
}

// NewPool creates a pool of shardCount single-worker shards, each with its
// own bounded queue. A shardCount below 1 means one per CPU.
func NewPool(shardCount int, h Handler, opts ...PoolOption) *Pool {
	cfg := poolConfig{queueCapacity: 0, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if shardCount < 1 {
		shardCount = runtime.NumCPU()
	}

	p := &Pool{shards: make([]shard, shardCount), logger: cfg.logger.Named("publish-pool")}
	counted := HandlerFunc(func(ctx context.Context, job queue.Job) queue.Result {
		defer func() { metrics.UpdateQueueSize(int(p.pending.Add(-1))) }()
		return h.Handle(ctx, job)
	})
	for i := range p.shards {
		q := queue.NewInMemoryQueue(queue.WithCapacity(cfg.queueCapacity))
		p.shards[i] = shard{
			queue: q,
			worker: NewInMemoryWorker(q, counted,
				WithName("publish-worker-"+strconv.Itoa(i)),
				WithLogger(cfg.logger)),
		}
	}
	metrics.UpdateWorkerCount(0)
	return p
}

// Start launches one goroutine per shard.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, s := range p.shards {
		go s.worker.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.shards))
	p.logger.Info(ctx, "publish workers started", logger.Int("shards", len(p.shards)))
}

// ShardFor returns the shard index that serves eventID.
func (p *Pool) ShardFor(eventID string) int {
	return int(xxhash.Sum64String(eventID) % uint64(len(p.shards)))
}

// Submit routes job to its event's shard. It returns ErrBackpressure when
// that shard is full and ErrStopped after Shutdown.
func (p *Pool) Submit(ctx context.Context, job queue.Job) error {
	q := p.shards[p.ShardFor(job.EventID)].queue
	if q.IsClosed() {
		return queue.ErrStopped
	}
	n := p.pending.Add(1)
	if !q.Enqueue(ctx, job) {
		metrics.UpdateQueueSize(int(p.pending.Add(-1)))
		if q.IsClosed() {
			return queue.ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return queue.ErrBackpressure
	}
	metrics.UpdateQueueSize(int(n))
	return nil
}

// Len returns the number of jobs submitted but not yet finished.
func (p *Pool) Len() int { return int(p.pending.Load()) }

// Shards returns the number of shards.
func (p *Pool) Shards() int { return len(p.shards) }

// Shutdown stops accepting jobs, lets workers drain what is queued, and
// stops them outright if ctx expires first.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, s := range p.shards {
		_ = s.queue.Close()
	}
	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, s := range p.shards {
		select {
		case <-s.worker.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker did not drain in time", logger.Int("shard", i))
			_ = s.worker.Shutdown(context.Background())
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("publish pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
