package sim

import (
	"container/heap"
	"context"
	"time"
)

// ManualScheduler is a deterministic Runtime driven by explicit Advance
// calls. Everything runs on the caller's goroutine.
type ManualScheduler struct {
	now    time.Time
	timers timerHeap
	queue  []func()
	seq    uint64
}

// NewManualScheduler starts the virtual clock at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now implements Scheduler.
func (m *ManualScheduler) Now() time.Time {
	return m.now
}

// AfterFunc implements Scheduler.
func (m *ManualScheduler) AfterFunc(d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &Timer{due: m.now.Add(d), fn: fn, seq: m.seq}
	heap.Push(&m.timers, t)
	return t
}

// Post implements Scheduler. Posted callbacks run on the next Flush or
// Advance.
func (m *ManualScheduler) Post(fn func()) {
	if fn != nil {
		m.queue = append(m.queue, fn)
	}
}

// Do runs fn immediately and drains anything it posted.
func (m *ManualScheduler) Do(_ context.Context, fn func()) error {
	fn()
	m.Flush()
	return nil
}

// Flush runs posted callbacks until the queue is empty.
func (m *ManualScheduler) Flush() {
	for len(m.queue) > 0 {
		task := m.queue[0]
		m.queue = m.queue[1:]
		task()
	}
}

// Advance moves the clock forward by d, firing due timers in order.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.AdvanceTo(m.now.Add(d))
}

// AdvanceTo moves the clock to target, firing due timers in order.
func (m *ManualScheduler) AdvanceTo(target time.Time) {
	m.Flush()
	for m.timers.Len() > 0 {
		next := m.timers[0]
		if next.due.After(target) {
			break
		}
		heap.Pop(&m.timers)
		if !next.Pending() {
			continue
		}
		if next.due.After(m.now) {
			m.now = next.due
		}
		next.fire()
		m.Flush()
	}
	if target.After(m.now) {
		m.now = target
	}
}

// PendingTimers counts timers that are still armed.
func (m *ManualScheduler) PendingTimers() int {
	n := 0
	for _, t := range m.timers {
		if t.Pending() {
			n++
		}
	}
	return n
}

var _ Runtime = (*ManualScheduler)(nil)

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
