package matchstats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	loglifecycle "platform-fighter/server/logging/lifecycle"
	"platform-fighter/server/logging/sinks"
)

type fakeRecorder struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRecorder) Record(_ context.Context, participantID string, _ state.ResultEntry) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, participantID)
	return f.fail[participantID]
}

func (f *fakeRecorder) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDispatcherRecordsEachParticipantOnce(t *testing.T) {
	rec := &fakeRecorder{}
	metrics := telemetry.NewCounters()
	d := NewDispatcher(Config{Recorder: rec, Metrics: metrics, Logger: telemetry.LoggerFunc(func(string, ...any) {})})

	d.Submit("ABCD", []state.ResultEntry{{ID: "a", Rank: 1}, {ID: "b", Rank: 2}, {ID: GuestPrefix + "x", Rank: 3}})
	closeDispatcher(t, d)

	got := rec.recorded()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected record calls %v", got)
	}
	if metrics.Load(metricRecorded) != 2 || metrics.Load(metricSkipped) != 1 {
		t.Fatalf("unexpected metrics %v", metrics.Snapshot())
	}
}

func TestDispatcherLogsFailuresWithoutRetry(t *testing.T) {
	rec := &fakeRecorder{fail: map[string]error{"b": errors.New("store unavailable")}}
	logs := sinks.NewMemorySink()
	metrics := telemetry.NewCounters()
	d := NewDispatcher(Config{Recorder: rec, Publisher: logs, Metrics: metrics, Logger: telemetry.LoggerFunc(func(string, ...any) {})})

	d.Submit("ABCD", []state.ResultEntry{{ID: "a"}, {ID: "b"}})
	closeDispatcher(t, d)

	if calls := rec.recorded(); len(calls) != 2 {
		t.Fatalf("expected a single attempt per participant, got %v", calls)
	}
	failures := logs.OfType(loglifecycle.EventStatsRecordFailed)
	if len(failures) != 1 {
		t.Fatalf("expected one failure event, got %d", len(failures))
	}
	if failures[0].Actor.ID != "b" || failures[0].Room != "ABCD" {
		t.Fatalf("unexpected failure event %+v", failures[0])
	}
	if metrics.Load(metricFailed) != 1 {
		t.Fatalf("expected failure metric")
	}
}

func TestDispatcherDropsWhenBacklogIsFull(t *testing.T) {
	rec := &fakeRecorder{started: make(chan struct{}, 4), release: make(chan struct{})}
	metrics := telemetry.NewCounters()
	d := NewDispatcher(Config{Recorder: rec, Buffer: 1, Metrics: metrics, Logger: telemetry.LoggerFunc(func(string, ...any) {})})

	d.Submit("ABCD", []state.ResultEntry{{ID: "a"}})
	<-rec.started

	d.Submit("ABCD", []state.ResultEntry{{ID: "b"}, {ID: "c"}, {ID: "d"}})
	if got := metrics.Load(metricDropped); got != 2 {
		t.Fatalf("expected two dropped entries, got %d", got)
	}
	close(rec.release)
	closeDispatcher(t, d)

	if calls := rec.recorded(); len(calls) != 2 {
		t.Fatalf("expected the running and the queued entry, got %v", calls)
	}
}

func TestSubmitAfterCloseIsIgnored(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDispatcher(Config{Recorder: rec, Logger: telemetry.LoggerFunc(func(string, ...any) {})})
	closeDispatcher(t, d)
	d.Submit("ABCD", []state.ResultEntry{{ID: "a"}})
	closeDispatcher(t, d)
	if calls := rec.recorded(); len(calls) != 0 {
		t.Fatalf("expected no calls after close, got %v", calls)
	}
}

func TestHTTPRecorderPostsEntry(t *testing.T) {
	var gotPath string
	var gotEntry state.ResultEntry
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotEntry); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rec := NewHTTPRecorder(srv.URL + "/")
	entry := state.ResultEntry{ID: "p1", Kills: 3, Rank: 1, IsWinner: true}
	if err := rec.Record(context.Background(), "p1", entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	if gotPath != "/players/p1/results" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotEntry.Kills != 3 || !gotEntry.IsWinner {
		t.Fatalf("unexpected body %+v", gotEntry)
	}
}

func TestHTTPRecorderReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := NewHTTPRecorder(srv.URL).Record(context.Background(), "p1", state.ResultEntry{}); err == nil {
		t.Fatalf("expected an error for a 503")
	}
}
