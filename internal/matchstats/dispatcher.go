package matchstats

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/logging"
	loglifecycle "platform-fighter/server/logging/lifecycle"
)

const (
	metricRecorded = "stats_recorded_total"
	metricFailed   = "stats_failures_total"
	metricDropped  = "stats_dropped_total"
	metricSkipped  = "stats_skipped_guests_total"
)

// GuestPrefix marks identities that have no stats profile.
const GuestPrefix = "guest-"

type job struct {
	room  string
	entry state.ResultEntry
}

// Config wires a Dispatcher.
type Config struct {
	Recorder  Recorder
	Buffer    int
	Timeout   time.Duration
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
}

// Dispatcher queues match results and records them on a worker goroutine.
// Submit never blocks: when the backlog is full the entry is dropped and
// counted.
type Dispatcher struct {
	recorder  Recorder
	timeout   time.Duration
	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger

	jobs   chan job
	wg     sync.WaitGroup
	closed atomic.Bool
	mu     sync.RWMutex
}

// NewDispatcher starts the worker. Close drains it.
func NewDispatcher(cfg Config) *Dispatcher {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = LogRecorder{Logger: logger}
	}
	d := &Dispatcher{
		recorder:  recorder,
		timeout:   timeout,
		publisher: logging.OrNop(cfg.Publisher),
		metrics:   telemetry.OrNop(cfg.Metrics),
		logger:    logger,
		jobs:      make(chan job, buffer),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Submit queues one record call per participant. Guest identities are
// skipped.
func (d *Dispatcher) Submit(room string, results []state.ResultEntry) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return
	}
	for _, entry := range results {
		if strings.HasPrefix(entry.ID, GuestPrefix) {
			d.metrics.Add(metricSkipped, 1)
			continue
		}
		select {
		case d.jobs <- job{room: room, entry: entry}:
		default:
			d.metrics.Add(metricDropped, 1)
			d.logger.Printf("[stats] backlog full, dropping result for %s in %s", entry.ID, room)
		}
	}
}

// Close stops accepting results and waits for queued ones, or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed.CompareAndSwap(false, true) {
		close(d.jobs)
	}
	d.mu.Unlock()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.record(j)
	}
}

func (d *Dispatcher) record(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.recorder.Record(ctx, j.entry.ID, j.entry); err != nil {
		d.metrics.Add(metricFailed, 1)
		d.logger.Printf("[stats] record %s in %s failed: %v", j.entry.ID, j.room, err)
		loglifecycle.StatsRecordFailed(ctx, d.publisher, j.room, logging.PlayerRef(j.entry.ID), loglifecycle.StatsFailurePayload{
			Error: err.Error(),
		}, nil)
		return
	}
	d.metrics.Add(metricRecorded, 1)
}
