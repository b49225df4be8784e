package logging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"platform-fighter/server/logging"
	"platform-fighter/server/logging/sinks"
)

func newTestRouter(t *testing.T, cfg logging.Config, named ...logging.NamedSink) *logging.Router {
	t.Helper()
	clock := logging.ClockFunc(func() time.Time { return time.Unix(1700000000, 0) })
	router, err := logging.NewRouter(clock, cfg, named)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router
}

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close router: %v", err)
	}
}

func TestRouterDeliversEventsWithFields(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"instance": "test"}
	router := newTestRouter(t, cfg, logging.NamedSink{Name: "memory", Sink: memory})

	router.Publish(context.Background(), logging.Event{
		Type:     "rooms.room_created",
		Room:     "ABCD",
		Severity: logging.SeverityInfo,
		Extra:    map[string]any{"instance": "override"},
	})
	router.Publish(context.Background(), logging.Event{Type: "combat.hit", Severity: logging.SeverityInfo})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Extra["instance"] != "override" {
		t.Fatalf("expected event field to win, got %v", events[0].Extra["instance"])
	}
	if events[1].Extra["instance"] != "test" {
		t.Fatalf("expected static field, got %v", events[1].Extra)
	}
	if events[0].Time.IsZero() {
		t.Fatalf("expected router to stamp time")
	}
	if stats := router.Stats(); stats.EventsTotal != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn
	router := newTestRouter(t, cfg, logging.NamedSink{Name: "memory", Sink: memory})

	router.Publish(context.Background(), logging.Event{Type: "network.input_rejected", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "simulation.tick_overrun", Severity: logging.SeverityWarn})
	closeRouter(t, router)

	events := memory.Events()
	if len(events) != 1 || events[0].Type != "simulation.tick_overrun" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if router.Stats().FilteredTotal != 1 {
		t.Fatalf("expected one filtered event")
	}
}

type failingSink struct {
	calls int
}

func (s *failingSink) Write(logging.Event) error {
	s.calls++
	return errors.New("disk full")
}

func (s *failingSink) Close(context.Context) error { return nil }

func TestRouterCountsSinkFailures(t *testing.T) {
	failing := &failingSink{}
	router := newTestRouter(t, logging.DefaultConfig(), logging.NamedSink{Name: "broken", Sink: failing})
	router.Publish(context.Background(), logging.Event{Type: "lifecycle.match_ended", Severity: logging.SeverityInfo})
	closeRouter(t, router)

	if failing.calls != 1 {
		t.Fatalf("expected one write attempt, got %d", failing.calls)
	}
	if got := router.Stats().SinkFailures["broken"]; got != 1 {
		t.Fatalf("expected failure count 1, got %d", got)
	}
}

func TestRouterIgnoresUntypedAndClosed(t *testing.T) {
	memory := sinks.NewMemorySink()
	router := newTestRouter(t, logging.DefaultConfig(), logging.NamedSink{Name: "memory", Sink: memory})
	router.Publish(context.Background(), logging.Event{})
	closeRouter(t, router)
	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityError})
	if len(memory.Events()) != 0 {
		t.Fatalf("expected no events, got %+v", memory.Events())
	}
	if router.Sink("memory") != memory {
		t.Fatalf("expected sink lookup by name")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		"INFO":    logging.SeverityInfo,
		"warning": logging.SeverityWarn,
		"error":   logging.SeverityError,
	}
	for raw, want := range cases {
		got, err := logging.ParseSeverity(raw)
		if err != nil || got != want {
			t.Fatalf("ParseSeverity(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := logging.ParseSeverity("loud"); err == nil {
		t.Fatalf("expected error for unknown severity")
	}
}

func TestWithFieldsDecoratesPublisher(t *testing.T) {
	memory := sinks.NewMemorySink()
	pub := logging.WithFields(memory, map[string]any{"room": "WXYZ"})
	pub.Publish(context.Background(), logging.Event{Type: "combat.hit"})
	events := memory.Events()
	if len(events) != 1 || events[0].Extra["room"] != "WXYZ" {
		t.Fatalf("unexpected events: %+v", events)
	}
	logging.WithFields(nil, nil).Publish(context.Background(), logging.Event{Type: "ignored"})
}
