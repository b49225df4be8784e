package intake

import (
	"bytes"
	"context"
	"encoding/json"

	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/logging"
	lognetwork "platform-fighter/server/logging/network"
)

// Rejection reasons. They only ever reach debug logs and metrics; the sender
// gets no reply.
const (
	RejectMalformed     = "malformed"
	RejectUnknownKey    = "unknown_key"
	RejectInvalidValue  = "invalid_value"
	RejectContradictory = "contradictory_movement"
	RejectMissingSeq    = "missing_seq"
	RejectStaleSeq      = "stale_seq"
	RejectUnknownPlayer = "unknown_player"
)

const (
	metricAccepted       = "input_accepted_total"
	metricRejectedPrefix = "input_rejected_total."
)

type fieldKind int

const (
	kindFlag fieldKind = iota
	kindDashDirection
	kindLegacyDashDir
	kindSeq
)

type field struct {
	canonical string
	kind      fieldKind
}

// vocabulary maps every accepted key to its canonical action. Aliases are
// tolerated on purpose for older clients; any other key is a protocol
// mismatch and rejects the whole message.
var vocabulary = map[string]field{
	"left":  {"left", kindFlag},
	"right": {"right", kindFlag},
	"up":    {"up", kindFlag},
	"down":  {"down", kindFlag},

	"jump": {"jump", kindFlag},

	"light":       {"light", kindFlag},
	"attack":      {"light", kindFlag},
	"lightAttack": {"light", kindFlag},
	"primary":     {"light", kindFlag},
	"punch":       {"light", kindFlag},

	"heavy":       {"heavy", kindFlag},
	"heavyAttack": {"heavy", kindFlag},
	"special":     {"heavy", kindFlag},
	"secondary":   {"heavy", kindFlag},

	"shield": {"shield", kindFlag},
	"block":  {"shield", kindFlag},
	"guard":  {"shield", kindFlag},

	"dash": {"dash", kindFlag},

	"drop":        {"drop", kindFlag},
	"dropThrough": {"drop", kindFlag},

	"dashDirection": {"dashDirection", kindDashDirection},
	"dashDir":       {"dashDir", kindLegacyDashDir},
	"seq":           {"seq", kindSeq},
}

// Vocabulary lists the accepted keys, aliases included.
func Vocabulary() []string {
	keys := make([]string, 0, len(vocabulary))
	for key := range vocabulary {
		keys = append(keys, key)
	}
	return keys
}

// decoded is a syntactically valid message before participant checks.
type decoded struct {
	frame       state.InputFrame
	explicitDir int
	legacyDir   int
	hasSeq      bool
}

// parse validates the shape of a raw input payload. It does not look at any
// participant state.
func parse(raw json.RawMessage) (decoded, string) {
	var out decoded
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out, RejectMalformed
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return out, RejectMalformed
	}

	for key, value := range fields {
		entry, ok := vocabulary[key]
		if !ok {
			return out, RejectUnknownKey
		}
		switch entry.kind {
		case kindFlag:
			var flag bool
			if err := json.Unmarshal(value, &flag); err != nil {
				return out, RejectInvalidValue
			}
			if flag {
				setFlag(&out.frame, entry.canonical)
			}
		case kindDashDirection:
			var dir float64
			if err := json.Unmarshal(value, &dir); err != nil {
				return out, RejectInvalidValue
			}
			switch dir {
			case -1, 0, 1:
				out.explicitDir = int(dir)
			default:
				return out, RejectInvalidValue
			}
		case kindLegacyDashDir:
			var dir string
			if err := json.Unmarshal(value, &dir); err != nil {
				return out, RejectInvalidValue
			}
			switch dir {
			case "left":
				out.legacyDir = -1
			case "right":
				out.legacyDir = 1
			case "":
			default:
				return out, RejectInvalidValue
			}
		case kindSeq:
			var seq uint64
			if bytes.Equal(value, []byte("null")) {
				return out, RejectInvalidValue
			}
			if err := json.Unmarshal(value, &seq); err != nil {
				return out, RejectInvalidValue
			}
			out.frame.Seq = seq
			out.hasSeq = true
		}
	}

	if !out.hasSeq {
		return out, RejectMissingSeq
	}
	if out.frame.Left && out.frame.Right {
		return out, RejectContradictory
	}
	return out, ""
}

func setFlag(frame *state.InputFrame, canonical string) {
	switch canonical {
	case "left":
		frame.Left = true
	case "right":
		frame.Right = true
	case "up":
		frame.Up = true
	case "down":
		frame.Down = true
	case "jump":
		frame.Jump = true
	case "light":
		frame.Light = true
	case "heavy":
		frame.Heavy = true
	case "shield":
		frame.Shield = true
	case "dash":
		frame.Dash = true
	case "drop":
		frame.Drop = true
	}
}

// ResolveDashDirection picks the explicit field, then the legacy string
// field, then the participant's last horizontal movement.
func ResolveDashDirection(explicit, legacy, lastHorizontal int) int {
	switch {
	case explicit != 0:
		return explicit
	case legacy != 0:
		return legacy
	case lastHorizontal != 0:
		return lastHorizontal
	default:
		return 1
	}
}

// Stage validates raw against p and, when accepted, merges it into p's
// pending intent. Rejected input leaves p untouched.
func Stage(p *state.Participant, raw json.RawMessage) (state.InputFrame, bool, string) {
	var zero state.InputFrame
	if p == nil {
		return zero, false, RejectUnknownPlayer
	}
	msg, reason := parse(raw)
	if reason != "" {
		return zero, false, reason
	}
	frame := msg.frame
	if frame.Seq <= p.LastAcceptedSeq {
		return zero, false, RejectStaleSeq
	}

	lastHorizontal := frame.Horizontal()
	if lastHorizontal == 0 {
		lastHorizontal = p.Facing
	}
	frame.DashDirection = ResolveDashDirection(msg.explicitDir, msg.legacyDir, lastHorizontal)

	p.Input.Apply(frame, p.LastFrame)
	p.LastFrame = frame
	p.LastAcceptedSeq = frame.Seq
	if h := frame.Horizontal(); h != 0 {
		p.Facing = h
	}
	return frame, true, ""
}

// Gateway wraps Stage with debug logging and rejection metrics.
type Gateway struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Tick      func() uint64
}

// Accept stages raw for p and reports whether it was accepted.
func (g *Gateway) Accept(ctx context.Context, playerID string, p *state.Participant, raw json.RawMessage) bool {
	frame, ok, reason := Stage(p, raw)
	metrics := telemetry.OrNop(g.Metrics)
	if ok {
		metrics.Add(metricAccepted, 1)
		return true
	}
	metrics.Add(metricRejectedPrefix+reason, 1)
	var tick uint64
	if g.Tick != nil {
		tick = g.Tick()
	}
	lognetwork.InputRejected(ctx, g.Publisher, tick, logging.PlayerRef(playerID), lognetwork.InputRejectedPayload{Reason: reason, Seq: frame.Seq}, nil)
	return false
}
