package sim

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestManualSchedulerFiresTimersInOrder(t *testing.T) {
	sched := NewManualScheduler(time.Unix(100, 0))
	var order []string
	sched.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	sched.AfterFunc(time.Second, func() { order = append(order, "a") })
	sched.AfterFunc(2*time.Second, func() { order = append(order, "c") })

	sched.Advance(1500 * time.Millisecond)
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("expected only a to fire, got %v", order)
	}
	sched.Advance(time.Second)
	if len(order) != 3 || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected a,b,c got %v", order)
	}
	if !sched.Now().Equal(time.Unix(102, 500_000_000)) {
		t.Fatalf("unexpected clock %v", sched.Now())
	}
}

func TestTimerStopPreventsCallback(t *testing.T) {
	sched := NewManualScheduler(time.Unix(0, 0))
	fired := false
	timer := sched.AfterFunc(time.Second, func() { fired = true })
	if !timer.Pending() {
		t.Fatalf("expected timer to be pending")
	}
	if !timer.Stop() {
		t.Fatalf("expected first stop to report pending")
	}
	if timer.Stop() {
		t.Fatalf("expected second stop to be a no-op")
	}
	sched.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer fired")
	}
	if sched.PendingTimers() != 0 {
		t.Fatalf("expected no pending timers")
	}
}

func TestTimerCallbackSeesItsOwnTime(t *testing.T) {
	start := time.Unix(0, 0)
	sched := NewManualScheduler(start)
	var seen time.Time
	sched.AfterFunc(300*time.Millisecond, func() { seen = sched.Now() })
	sched.Advance(time.Second)
	if !seen.Equal(start.Add(300 * time.Millisecond)) {
		t.Fatalf("callback observed %v", seen)
	}
}

func TestTickerKeepsNominalRate(t *testing.T) {
	sched := NewManualScheduler(time.Unix(0, 0))
	var count uint64
	var last time.Time
	NewTicker(sched, TickerConfig{Span: time.Second, Count: 60}, func(n uint64, now time.Time) {
		count = n
		last = now
	})
	sched.Advance(10 * time.Second)
	if count != 600 {
		t.Fatalf("expected 600 ticks, got %d", count)
	}
	if !last.Equal(time.Unix(10, 0)) {
		t.Fatalf("expected last tick exactly at 10s, got %v", last)
	}
}

func TestTickerStopFromCallback(t *testing.T) {
	sched := NewManualScheduler(time.Unix(0, 0))
	var ticker *Ticker
	calls := 0
	ticker = NewTicker(sched, TickerConfig{Span: time.Second, Count: 10}, func(n uint64, _ time.Time) {
		calls++
		if n == 3 {
			ticker.Stop()
		}
	})
	sched.Advance(5 * time.Second)
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestLoopRunsTasksAndTimers(t *testing.T) {
	loop := NewLoop(LoopConfig{QueueSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	counter := 0
	if err := loop.Do(ctx, func() { counter++ }); err != nil {
		t.Fatalf("do failed: %v", err)
	}

	fired := make(chan struct{})
	var stopped *Timer
	if err := loop.Do(ctx, func() {
		loop.AfterFunc(10*time.Millisecond, func() {
			counter++
			close(fired)
		})
		stopped = loop.AfterFunc(5*time.Millisecond, func() { counter += 100 })
		stopped.Stop()
	}); err != nil {
		t.Fatalf("do failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never fired")
	}

	var observed int
	if err := loop.Do(ctx, func() { observed = counter }); err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if observed != 2 {
		t.Fatalf("expected counter 2, got %d", observed)
	}
}

func TestLoopRecoversFromPanickingTask(t *testing.T) {
	loop := NewLoop(LoopConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	_ = loop.Do(ctx, func() { panic("boom") })
	ran := false
	if err := loop.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("loop died after panic: %v", err)
	}
	if !ran {
		t.Fatalf("expected follow-up task to run")
	}
}

func TestLoopDoAfterStop(t *testing.T) {
	loop := NewLoop(LoopConfig{})
	ctx := context.Background()
	go loop.Run(ctx)
	loop.Stop()
	<-loop.Done()
	if err := loop.Do(ctx, func() {}); err != ErrLoopStopped {
		t.Fatalf("expected ErrLoopStopped, got %v", err)
	}
}

func TestLoopStopFromManyGoroutines(t *testing.T) {
	loop := NewLoop(LoopConfig{})
	go loop.Run(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Stop()
		}()
	}
	wg.Wait()
	<-loop.Done()
	loop.Stop()
}
