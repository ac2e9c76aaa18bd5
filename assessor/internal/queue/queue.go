// Package queue is the single admission point for inference calls.
//
// A Queue runs at most one task at a time, in submission order, and never
// starts a task sooner than Interval after the previous task started.
// Submission never blocks and never fails; backpressure shows up as queueing
// delay. The worker goroutine is started on demand and exits when the queue
// empties.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
)

// Task is one unit of work. A task handles its own errors.
type Task func(ctx context.Context)

// Future completes when its task has run.
type Future struct {
	done chan struct{}
	err  error
}

// Done is closed once the task has finished or panicked.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the task finishes or ctx is done. It returns ctx.Err() in
// the latter case and the recovered panic, if any, in the former.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the recovered panic of a finished task. Valid after Done.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

type item struct {
	ctx    context.Context
	task   Task
	future *Future
}

// Stats is a point-in-time view of the queue counters.
type Stats struct {
	Pending   int    `json:"pending"`
	InFlight  int    `json:"in_flight"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Panicked  uint64 `json:"panicked"`
}

// Queue is safe for concurrent use.
type Queue struct {
	interval time.Duration
	limiter  *rate.Limiter
	log      *logger.Logger

	mu            sync.Mutex
	pending       []*item
	inFlight      int
	running       bool
	idle          chan struct{} // closed while no worker is running
	lastAdmission time.Time
	submitted     uint64
	completed     uint64
	panicked      uint64
}

// New returns a Queue admitting at most one task per interval. An interval of
// zero only serializes.
func New(interval time.Duration, log *logger.Logger) *Queue {
	if log == nil {
		log = logger.Nop()
	}
	idle := make(chan struct{})
	close(idle)

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Queue{
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.With("component", "queue"),
		idle:     idle,
	}
}

// Submit appends task to the queue. The task receives a context carrying the
// values of ctx but not its cancellation: once submitted, a task always runs.
func (q *Queue) Submit(ctx context.Context, task Task) *Future {
	it := &item{
		ctx:    context.WithoutCancel(ctx),
		task:   task,
		future: &Future{done: make(chan struct{})},
	}

	q.mu.Lock()
	q.pending = append(q.pending, it)
	q.submitted++
	start := !q.running
	if start {
		q.running = true
		q.idle = make(chan struct{})
	}
	pending := len(q.pending)
	q.mu.Unlock()

	if start {
		q.log.Info("queue: active", "pending", pending)
		go q.run()
	}
	return it.future
}

// Drain blocks until nothing is pending or in flight, or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if !q.running {
			q.mu.Unlock()
			return nil
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Idle reports whether the queue has no pending or in-flight task.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.running
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.pending),
		InFlight:  q.inFlight,
		Submitted: q.submitted,
		Completed: q.completed,
		Panicked:  q.panicked,
	}
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			close(q.idle)
			completed := q.completed
			q.mu.Unlock()
			q.log.Info("queue: idle", "completed", completed)
			return
		}
		it := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.inFlight++
		q.mu.Unlock()

		q.admit()
		panicked := q.exec(it)

		q.mu.Lock()
		q.inFlight--
		q.completed++
		if panicked {
			q.panicked++
		}
		q.mu.Unlock()
	}
}

// admit waits for the limiter and then for the remainder of the interval since
// the previous admission. The limiter schedules against reservation time, so a
// late wake-up on the previous admission could otherwise shorten the gap.
func (q *Queue) admit() {
	_ = q.limiter.Wait(context.Background())
	if q.interval > 0 && !q.lastAdmission.IsZero() {
		if wait := q.interval - time.Since(q.lastAdmission); wait > 0 {
			time.Sleep(wait)
		}
	}
	q.lastAdmission = time.Now()
}

func (q *Queue) exec(it *item) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			it.future.err = fmt.Errorf("queue: task panicked: %v", r)
			q.log.Error("queue: task panicked", "panic", r)
		}
		close(it.future.done)
	}()
	it.task(it.ctx)
	return false
}
