package proto

import (
	"encoding/json"
	"fmt"

	"platform-fighter/server/internal/state"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeWelcome  = "welcome"
	typeResponse = "response"
	typeState    = "state"
	typeEvent    = "event"
)

// Client message type identifiers.
const (
	TypeCreateRoom    = "create-room"
	TypeJoinRoom      = "join-room"
	TypeLeaveRoom     = "leave-room"
	TypeGetRoomInfo   = "get-room-info"
	TypeStartGame     = "start-game"
	TypeRematch       = "rematch"
	TypeReturnToLobby = "return-to-lobby"
	TypeInput         = "input"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeWelcome  = typeWelcome
	TypeResponse = typeResponse
	TypeState    = typeState
	TypeEvent    = typeEvent
)

// ClientMessage is the inbound envelope. Payload stays raw until the handler
// for Type decodes it; input payloads go to the intake gateway untouched.
type ClientMessage struct {
	Ver       int             `json:"ver,omitempty"`
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DecodeClientMessage converts a raw JSON frame into the envelope.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	return normalize(msg)
}

func normalize(msg ClientMessage) (ClientMessage, error) {
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("missing message type")
	}
	return msg, nil
}

// IsRequest reports whether t is a room-management request that expects a
// response.
func IsRequest(t string) bool {
	switch t {
	case TypeCreateRoom, TypeJoinRoom, TypeLeaveRoom, TypeGetRoomInfo, TypeStartGame, TypeRematch, TypeReturnToLobby:
		return true
	}
	return false
}

// JoinRoomPayload is the join-room request body.
type JoinRoomPayload struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName,omitempty"`
}

// DecodeJoinRoom reads a join-room payload.
func DecodeJoinRoom(raw json.RawMessage) (JoinRoomPayload, error) {
	var payload JoinRoomPayload
	if len(raw) == 0 {
		return payload, fmt.Errorf("missing join-room payload")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// Welcome greets a freshly upgraded connection.
type Welcome struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Guest       bool   `json:"guest,omitempty"`
	TickRate    int    `json:"tickRate"`
	ServerTime  int64  `json:"serverTime"`
}

// NewWelcome stamps the version and type.
func NewWelcome(id, name string, guest bool, tickRate int, serverTime int64) Welcome {
	return Welcome{
		Ver:         Version,
		Type:        typeWelcome,
		ID:          id,
		DisplayName: name,
		Guest:       guest,
		TickRate:    tickRate,
		ServerTime:  serverTime,
	}
}

// ErrorBody is a typed request rejection.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Response answers one request.
type Response struct {
	Ver       int        `json:"ver"`
	Type      string     `json:"type"`
	RequestID string     `json:"requestId,omitempty"`
	Request   string     `json:"request"`
	OK        bool       `json:"ok"`
	Result    any        `json:"result,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
}

// OKResponse wraps a successful result.
func OKResponse(requestID, request string, result any) Response {
	return Response{Ver: Version, Type: typeResponse, RequestID: requestID, Request: request, OK: true, Result: result}
}

// ErrorResponse wraps a rejection.
func ErrorResponse(requestID, request, code, message string) Response {
	return Response{
		Ver:       Version,
		Type:      typeResponse,
		RequestID: requestID,
		Request:   request,
		Error:     &ErrorBody{Code: code, Message: message},
	}
}

// CreateRoomResult is the create-room success body.
type CreateRoomResult struct {
	Code string `json:"code"`
}

// JoinRoomResult is the join-room success body.
type JoinRoomResult struct {
	Code        string `json:"code"`
	IsHost      bool   `json:"isHost"`
	MemberCount int    `json:"memberCount"`
	MaxMembers  int    `json:"maxMembers"`
	HostID      string `json:"hostId"`
	Rejoined    bool   `json:"rejoined,omitempty"`
}

// AckResult is the body of requests that only succeed or fail.
type AckResult struct {
	OK bool `json:"ok"`
}

// PlayerState is the public view of one participant.
type PlayerState struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	VX            float64 `json:"vx"`
	VY            float64 `json:"vy"`
	Facing        int     `json:"facing"`
	Health        int     `json:"health"`
	MaxHealth     int     `json:"maxHealth"`
	Lives         int     `json:"lives"`
	Grounded      bool    `json:"grounded"`
	PlatformID    string  `json:"platformId,omitempty"`
	Shielding     bool    `json:"shielding,omitempty"`
	Dashing       bool    `json:"dashing,omitempty"`
	Attacking     bool    `json:"attacking,omitempty"`
	AttackKind    string  `json:"attackKind,omitempty"`
	ChargingHeavy bool    `json:"chargingHeavy,omitempty"`
	IsDead        bool    `json:"isDead,omitempty"`
	Invincible    bool    `json:"invincible,omitempty"`
	Eliminated    bool    `json:"eliminated,omitempty"`
	Kills         int     `json:"kills"`
	Deaths        int     `json:"deaths"`
	LastSeq       uint64  `json:"lastSeq"`
}

// PlayerStateOf projects p onto the wire view.
func PlayerStateOf(p *state.Participant) PlayerState {
	return PlayerState{
		ID:            p.ID,
		Name:          p.Name,
		X:             p.X,
		Y:             p.Y,
		VX:            p.VX,
		VY:            p.VY,
		Facing:        p.Facing,
		Health:        p.Health,
		MaxHealth:     p.MaxHealth,
		Lives:         p.Lives,
		Grounded:      p.Grounded,
		PlatformID:    p.StandingPlatformID,
		Shielding:     p.Shielding,
		Dashing:       p.Dash.Active,
		Attacking:     p.Attack.Attacking,
		AttackKind:    string(p.Attack.Kind),
		ChargingHeavy: p.Attack.PendingHeavy,
		IsDead:        p.IsDead,
		Invincible:    p.IsInvincible,
		Eliminated:    p.Eliminated,
		Kills:         p.Kills,
		Deaths:        p.Deaths,
		LastSeq:       p.LastAcceptedSeq,
	}
}

// StateFrame is the per-tick room snapshot.
type StateFrame struct {
	Ver         int                    `json:"ver"`
	Type        string                 `json:"type"`
	RoomCode    string                 `json:"roomCode"`
	Phase       state.Phase            `json:"phase"`
	ServerTime  int64                  `json:"serverTime"`
	Tick        uint64                 `json:"tick"`
	MemberCount int                    `json:"memberCount"`
	TickRate    int                    `json:"tickRate"`
	Players     map[string]PlayerState `json:"players"`
}

// NewStateFrame snapshots members of room.
func NewStateFrame(room *state.Room, members []*state.Participant, tickRate int, serverTime int64) StateFrame {
	players := make(map[string]PlayerState, len(members))
	for _, p := range members {
		players[p.ID] = PlayerStateOf(p)
	}
	return StateFrame{
		Ver:         Version,
		Type:        typeState,
		RoomCode:    room.Code,
		Phase:       room.Phase,
		ServerTime:  serverTime,
		Tick:        room.Tick,
		MemberCount: len(room.Members),
		TickRate:    tickRate,
		Players:     players,
	}
}

// EventFrame carries one discrete notification.
type EventFrame struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	RoomCode string `json:"roomCode,omitempty"`
	Event    string `json:"event"`
	Payload  any    `json:"payload,omitempty"`
}

// NewEventFrame stamps the version and type.
func NewEventFrame(room, event string, payload any) EventFrame {
	return EventFrame{Ver: Version, Type: typeEvent, RoomCode: room, Event: event, Payload: payload}
}
