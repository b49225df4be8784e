package sim

import "time"

// TickerConfig describes a cadence of Count firings per Span. Deadlines are
// computed from the start time rather than from the previous firing, so
// jitter in callback duration never drifts the nominal rate.
type TickerConfig struct {
	Span  time.Duration
	Count int
	// MaxLag is how many periods the ticker may fall behind before it
	// abandons catch-up and rebases on the current time.
	MaxLag int
	// OnOverrun is told how late a firing was whenever a rebase happens.
	OnOverrun func(lag time.Duration)
}

// Ticker is a self-rescheduling timer chain.
type Ticker struct {
	sched   Scheduler
	cfg     TickerConfig
	fn      func(n uint64, now time.Time)
	start   time.Time
	n       uint64
	fired   uint64
	timer   *Timer
	stopped bool
}

// NewTicker arms the first firing one period from now. fn receives a
// monotonically increasing firing count starting at 1.
func NewTicker(s Scheduler, cfg TickerConfig, fn func(n uint64, now time.Time)) *Ticker {
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	if cfg.Span <= 0 {
		cfg.Span = time.Second
	}
	if cfg.MaxLag <= 0 {
		cfg.MaxLag = 5
	}
	t := &Ticker{sched: s, cfg: cfg, fn: fn, start: s.Now()}
	t.arm()
	return t
}

// Period is the nominal spacing between firings.
func (t *Ticker) Period() time.Duration {
	return t.cfg.Span / time.Duration(t.cfg.Count)
}

// Stop cancels future firings.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.stopped = true
	StopTimer(&t.timer)
}

func (t *Ticker) deadline(n uint64) time.Time {
	return t.start.Add(time.Duration(n) * t.cfg.Span / time.Duration(t.cfg.Count))
}

func (t *Ticker) arm() {
	if t.stopped {
		return
	}
	t.n++
	now := t.sched.Now()
	due := t.deadline(t.n)
	delay := due.Sub(now)
	if delay < 0 {
		lag := -delay
		if lag > time.Duration(t.cfg.MaxLag)*t.Period() {
			if t.cfg.OnOverrun != nil {
				t.cfg.OnOverrun(lag)
			}
			t.start = now
			t.n = 1
			delay = t.Period()
		} else {
			delay = 0
		}
	}
	t.timer = t.sched.AfterFunc(delay, t.run)
}

func (t *Ticker) run() {
	if t.stopped {
		return
	}
	t.fired++
	if t.fn != nil {
		t.fn(t.fired, t.sched.Now())
	}
	t.arm()
}
