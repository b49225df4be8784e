package sim

import (
	"context"
	"time"

	"platform-fighter/server/logging"
)

// Clock supplies the current time.
type Clock = logging.Clock

// Scheduler is the single-writer contract every subsystem mutates state
// through. Callbacks passed to AfterFunc and Post run on the loop, one at a
// time, to completion.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) *Timer
	Post(fn func())
}

// Runtime is a Scheduler that outside goroutines can call into
// synchronously.
type Runtime interface {
	Scheduler
	Do(ctx context.Context, fn func()) error
}

// Timer is a cancelable handle for a pending callback. Its fields are owned
// by the loop goroutine: Stop must only be called from loop callbacks.
type Timer struct {
	due     time.Time
	fn      func()
	stopped bool
	fired   bool
	release func() bool

	seq   uint64
	index int
}

// Stop cancels the callback. It reports whether the timer was still pending.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped || t.fired {
		return false
	}
	t.stopped = true
	if t.release != nil {
		t.release()
	}
	return true
}

// Pending reports whether the callback has neither fired nor been stopped.
func (t *Timer) Pending() bool {
	return t != nil && !t.stopped && !t.fired
}

// Due is the time the callback was scheduled for.
func (t *Timer) Due() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.due
}

func (t *Timer) fire() {
	if !t.Pending() {
		return
	}
	t.fired = true
	if t.fn != nil {
		t.fn()
	}
}

// StopTimer stops *slot if set and clears it.
func StopTimer(slot **Timer) {
	if slot == nil || *slot == nil {
		return
	}
	(*slot).Stop()
	*slot = nil
}
