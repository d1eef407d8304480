package concurrency

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/fluxorio/workpool/pkg/core/concurrency"

// WorkerPoolConfig configures a WorkerPool
type WorkerPoolConfig struct {
	Name         string      // Used in logs, metrics and spans; generated when empty
	Workers      int         // Number of worker goroutines, must be >= 1
	DrainPolicy  DrainPolicy // What shutdown does with queued items
	LockOSThread bool        // Pin each worker to its own OS thread

	Logger   Logger       // Defaults to NewStdLogger(false)
	Observer Observer     // Defaults to a no-op observer
	Tracer   trace.Tracer // Defaults to a no-op tracer
}

// DefaultWorkerPoolConfig returns one worker per logical CPU with drain-to-completion
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:     runtime.NumCPU(),
		DrainPolicy: DrainAll,
	}
}

// Pool implements WorkerPool with a mutex-guarded deque and a condition
// variable. Workers park on the condition while the queue is empty and
// the pool is running.
type Pool struct {
	id           uuid.UUID
	name         string
	workers      int
	policy       DrainPolicy
	lockOSThread bool

	mu      sync.Mutex
	cond    *sync.Cond
	queue   deque.Deque[queuedItem] // guarded by mu
	running bool                    // guarded by mu
	idle    int                     // workers parked in cond.Wait, guarded by mu

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}

	logger   Logger
	observer Observer
	tracer   trace.Tracer

	live      atomic.Int32
	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64
	discarded atomic.Int64
}

var _ WorkerPool = (*Pool)(nil)

// NewWorkerPool creates a pool and starts its workers.
// Returns ErrInvalidConfiguration when config.Workers < 1.
func NewWorkerPool(config WorkerPoolConfig) (*Pool, error) {
	if config.Workers < 1 {
		return nil, fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfiguration, config.Workers)
	}
	if !config.DrainPolicy.valid() {
		return nil, fmt.Errorf("%w: unknown drain policy %d", ErrInvalidConfiguration, int(config.DrainPolicy))
	}

	id := uuid.New()
	if config.Name == "" {
		config.Name = "pool-" + id.String()[:8]
	}
	if config.Logger == nil {
		config.Logger = NewStdLogger(false)
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}
	if config.Tracer == nil {
		config.Tracer = noop.NewTracerProvider().Tracer(tracerName)
	}

	p := &Pool{
		id:           id,
		name:         config.Name,
		workers:      config.Workers,
		policy:       config.DrainPolicy,
		lockOSThread: config.LockOSThread,
		running:      true,
		done:         make(chan struct{}),
		logger:       config.Logger,
		observer:     config.Observer,
		tracer:       config.Tracer,
	}
	p.cond = sync.NewCond(&p.mu)

	p.startWorkers()
	p.logger.Debugf("pool %s (%s): started %d workers, policy=%s", p.name, p.id, p.workers, p.policy)

	return p, nil
}

// NewDefaultWorkerPool creates a pool from DefaultWorkerPoolConfig
func NewDefaultWorkerPool() (*Pool, error) {
	return NewWorkerPool(DefaultWorkerPoolConfig())
}

func (p *Pool) startWorkers() {
	p.wg.Add(p.workers)
	p.live.Store(int32(p.workers))
	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	defer p.live.Add(-1)

	if p.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	for {
		item, ok := p.next()
		if !ok {
			p.logger.Debugf("pool %s: worker %d exiting", p.name, id)
			return
		}
		p.execute(id, item)
	}
}

// next blocks until an item is available or the pool is done.
// The predicate is re-checked after every wake, so a wake without work
// (another worker won the race, or a spurious wakeup) just parks again.
func (p *Pool) next() (queuedItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.running && p.queue.Len() == 0 {
		p.idle++
		p.cond.Wait()
		p.idle--
	}

	// Under DrainNone the queue was cleared together with the stop flag,
	// so an empty queue here covers both policies.
	if p.queue.Len() == 0 {
		return queuedItem{}, false
	}

	item := p.queue.PopFront()
	p.active.Add(1)
	p.observer.ItemStarted(time.Since(item.enqueuedAt), p.queue.Len())
	return item, true
}

func (p *Pool) execute(workerID int, item queuedItem) {
	defer p.active.Add(-1)

	_, span := p.tracer.Start(context.Background(), "workpool.execute",
		trace.WithAttributes(
			attribute.String("workpool.pool", p.name),
			attribute.String("workpool.item_id", item.id.String()),
			attribute.Int("workpool.worker", workerID),
		),
	)

	start := time.Now()
	var err error
	if perr := runItem(item.fn); perr != nil {
		err = perr
		p.panicked.Add(1)
		span.RecordError(perr)
		span.SetStatus(codes.Error, perr.Error())
		p.logger.Errorf("pool %s: worker %d: item %s: %v\n%s", p.name, workerID, item.id, perr, perr.Stack)
	} else {
		p.completed.Add(1)
	}
	elapsed := time.Since(start)
	span.End()

	p.observer.ItemFinished(elapsed, err)
}

// runItem executes fn and converts a panic into a *PanicError
func runItem(fn WorkItem) (perr *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			perr = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}

// Submit implements WorkerPool interface
func (p *Pool) Submit(item WorkItem) error {
	if item == nil {
		return ErrNilWorkItem
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.rejected.Add(1)
		p.observer.ItemRejected()
		return ErrPoolStopped
	}
	p.queue.PushBack(queuedItem{
		id:         uuid.New(),
		fn:         item,
		enqueuedAt: time.Now(),
	})
	p.submitted.Add(1)
	p.observer.ItemSubmitted(p.queue.Len())
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Pending implements WorkerPool interface
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Workers implements WorkerPool interface
func (p *Pool) Workers() int {
	return p.workers
}

// CancelPending implements WorkerPool interface
func (p *Pool) CancelPending() int {
	p.mu.Lock()
	n := p.discardLocked()
	p.mu.Unlock()

	if n > 0 {
		p.logger.Infof("pool %s: cancelled %d pending items", p.name, n)
	}
	return n
}

// discardLocked drops all queued items. Caller holds p.mu.
func (p *Pool) discardLocked() int {
	n := p.queue.Len()
	if n == 0 {
		return 0
	}
	p.queue.Clear()
	p.discarded.Add(int64(n))
	p.observer.ItemsDiscarded(n)
	return n
}

// beginShutdown flips the stop flag, applies the drain policy and wakes
// every parked worker. Only the first call does anything.
func (p *Pool) beginShutdown() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.running = false
		discarded := 0
		if p.policy == DrainNone {
			discarded = p.discardLocked()
		}
		remaining := p.queue.Len()
		p.cond.Broadcast()
		p.mu.Unlock()

		p.logger.Infof("pool %s (%s): shutting down, policy=%s draining=%d discarded=%d",
			p.name, p.id, p.policy, remaining, discarded)

		go func() {
			p.wg.Wait()
			close(p.done)
		}()
	})
}

// Shutdown implements WorkerPool interface
func (p *Pool) Shutdown() {
	p.beginShutdown()
	<-p.done
}

// ShutdownContext implements WorkerPool interface
func (p *Pool) ShutdownContext(ctx context.Context) error {
	p.beginShutdown()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// IsRunning implements WorkerPool interface
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ID implements WorkerPool interface
func (p *Pool) ID() string {
	return p.id.String()
}

// Name returns the configured or generated pool name
func (p *Pool) Name() string {
	return p.name
}

// Stats implements WorkerPool interface
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	pending, idle := p.queue.Len(), p.idle
	p.mu.Unlock()

	return PoolStats{
		ID:          p.id.String(),
		Name:        p.name,
		Workers:     p.workers,
		LiveWorkers: int(p.live.Load()),
		Idle:        idle,
		Pending:     pending,
		Active:      int(p.active.Load()),
		Submitted:   p.submitted.Load(),
		Completed:   p.completed.Load(),
		Panicked:    p.panicked.Load(),
		Rejected:    p.rejected.Load(),
		Discarded:   p.discarded.Load(),
	}
}
