package sim

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/logging"
)

// ErrLoopStopped is returned by Do once the loop has shut down.
var ErrLoopStopped = errors.New("sim: loop stopped")

const (
	loopTasksMetricKey  = "sim_loop_tasks_total"
	loopPanicsMetricKey = "sim_loop_panics_total"
)

// LoopConfig tunes the cooperative event loop.
type LoopConfig struct {
	QueueSize int
	Clock     Clock
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
}

// Loop is the cooperative event loop. Inbound requests, timer callbacks and
// the tick all funnel through one goroutine so state is never mutated in
// parallel.
type Loop struct {
	tasks    chan func()
	clock    Clock
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewLoop constructs a loop. Run must be called to start processing.
func NewLoop(cfg LoopConfig) *Loop {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	clock := cfg.Clock
	if clock == nil {
		clock = logging.ClockFunc(time.Now)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	return &Loop{
		tasks:   make(chan func(), size),
		clock:   clock,
		logger:  logger,
		metrics: cfg.Metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post enqueues fn. It blocks while the queue is full and drops fn once the
// loop has stopped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	select {
	case l.tasks <- fn:
	case <-l.stop:
	}
}

// AfterFunc arms a timer whose callback is posted onto the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{due: l.clock.Now().Add(d), fn: fn}
	rt := time.AfterFunc(d, func() {
		l.Post(t.fire)
	})
	t.release = rt.Stop
	return t
}

// Do runs fn on the loop and waits for it to finish. It must not be called
// from a loop callback.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.stop:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes tasks until ctx is canceled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.stop:
			return
		case task := <-l.tasks:
			l.execute(task)
		}
	}
}

// Stop halts the loop. Pending tasks are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			if l.metrics != nil {
				l.metrics.Add(loopPanicsMetricKey, 1)
			}
			l.logger.Printf("[loop] task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	if l.metrics != nil {
		l.metrics.Add(loopTasksMetricKey, 1)
	}
	task()
}

var _ Runtime = (*Loop)(nil)
