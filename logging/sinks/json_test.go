package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"platform-fighter/server/logging"
)

func TestJSONSinkWritesOneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	event := logging.Event{
		Type:     "lifecycle.player_death",
		Time:     time.Unix(1700000000, 0),
		Room:     "ABCD",
		Tick:     42,
		Actor:    logging.PlayerRef("p1"),
		Severity: logging.SeverityInfo,
		Payload:  map[string]any{"livesRemaining": 2},
	}
	if err := sink.Write(event); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Write(event); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["severity"] != "info" || decoded["room"] != "ABCD" {
		t.Fatalf("unexpected record: %v", decoded)
	}
}

func TestConsoleSinkFormatsRoomAndActor(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	_ = sink.Write(logging.Event{
		Type:     "combat.hit",
		Room:     "QRST",
		Tick:     7,
		Actor:    logging.PlayerRef("a"),
		Targets:  []logging.EntityRef{logging.PlayerRef("b")},
		Severity: logging.SeverityInfo,
	})
	out := buf.String()
	for _, want := range []string{"[info] combat.hit", "room=QRST", "tick=7", "actor=player:a", "targets=player:b"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestMemorySinkFiltersByType(t *testing.T) {
	sink := NewMemorySink()
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	sink.Publish(context.Background(), logging.Event{Type: "b"})
	sink.Publish(context.Background(), logging.Event{Type: "a"})
	if got := len(sink.OfType("a")); got != 2 {
		t.Fatalf("expected 2 events of type a, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
