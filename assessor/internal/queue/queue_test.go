package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueue_SpacingBetweenAdmissions(t *testing.T) {
	const interval = 40 * time.Millisecond
	q := New(interval, nil)

	var mu sync.Mutex
	var starts []time.Time
	for i := 0; i < 4; i++ {
		q.Submit(context.Background(), func(context.Context) {
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		})
	}
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if len(starts) != 4 {
		t.Fatalf("ran %d tasks, want 4", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval {
			t.Errorf("gap %d: %v < %v", i, gap, interval)
		}
	}
}

func TestQueue_SpacingAcrossIdle(t *testing.T) {
	const interval = 50 * time.Millisecond
	q := New(interval, nil)

	var first, second time.Time
	q.Submit(context.Background(), func(context.Context) { first = time.Now() })
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	q.Submit(context.Background(), func(context.Context) { second = time.Now() })
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if gap := second.Sub(first); gap < interval {
		t.Errorf("gap after idle: %v < %v", gap, interval)
	}
}

func TestQueue_SingleInFlight(t *testing.T) {
	q := New(0, nil)

	var current, peak int32
	for i := 0; i < 10; i++ {
		q.Submit(context.Background(), func(context.Context) {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		})
	}
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if peak != 1 {
		t.Errorf("peak concurrency: got %d, want 1", peak)
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := New(0, nil)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		q.Submit(context.Background(), func(context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("order: got %v", order)
		}
	}
}

func TestQueue_DrainWaitsForInFlight(t *testing.T) {
	q := New(0, nil)

	var finished atomic.Bool
	q.Submit(context.Background(), func(context.Context) {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
	})
	if q.Idle() {
		t.Error("Idle() true with a task submitted")
	}
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !finished.Load() {
		t.Error("Drain returned before task finished")
	}
	if !q.Idle() {
		t.Error("Idle() false after Drain")
	}
	s := q.Stats()
	if s.Submitted != 1 || s.Completed != 1 || s.Pending != 0 || s.InFlight != 0 {
		t.Errorf("stats: %+v", s)
	}
}

func TestQueue_DrainEmpty(t *testing.T) {
	q := New(time.Second, nil)
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain on empty queue: %v", err)
	}
}

func TestQueue_DrainHonoursContext(t *testing.T) {
	q := New(0, nil)

	release := make(chan struct{})
	q.Submit(context.Background(), func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Drain: got %v, want deadline exceeded", err)
	}

	close(release)
	if err := q.Drain(context.Background()); err != nil {
		t.Fatalf("Drain after release: %v", err)
	}
}

func TestQueue_PanicRecovered(t *testing.T) {
	q := New(0, nil)

	bad := q.Submit(context.Background(), func(context.Context) { panic("boom") })
	var ran atomic.Bool
	good := q.Submit(context.Background(), func(context.Context) { ran.Store(true) })

	if err := good.Wait(context.Background()); err != nil {
		t.Fatalf("good task: %v", err)
	}
	if !ran.Load() {
		t.Error("task after a panic did not run")
	}
	if bad.Err() == nil {
		t.Error("panicking task: Err() is nil")
	}
	if q.Stats().Panicked != 1 {
		t.Errorf("Panicked: got %d, want 1", q.Stats().Panicked)
	}
}

func TestQueue_TaskContextNotCancelled(t *testing.T) {
	q := New(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var taskErr error
	f := q.Submit(ctx, func(ctx context.Context) { taskErr = ctx.Err() })
	if err := f.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if taskErr != nil {
		t.Errorf("task saw cancelled context: %v", taskErr)
	}
}
