// Package rooms owns room membership, the room phase machine, the cleanup
// sweep and the disconnection grace period.
package rooms

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"math/big"
	"sort"
	"strings"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/lifecycle"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	"platform-fighter/server/logging"
	logrooms "platform-fighter/server/logging/rooms"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	metricRoomsCreated = "rooms_created_total"
	metricRoomsCleaned = "rooms_cleaned_total"
	metricRoomsClosed  = "rooms_dissolved_total"
	metricGraceStarted = "rooms_grace_started_total"
	metricForfeits     = "rooms_forfeits_total"
)

// Settings are the room-level knobs.
type Settings struct {
	MaxMembers      int
	CodeLength      int
	CodeAttempts    int
	CountdownSteps  int
	CountdownStep   time.Duration
	GracePeriod     time.Duration
	EmptyTimeout    time.Duration
	InactiveTimeout time.Duration
	CleanupInterval time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxMembers:      8,
		CodeLength:      4,
		CodeAttempts:    100,
		CountdownSteps:  3,
		CountdownStep:   time.Second,
		GracePeriod:     10 * time.Second,
		EmptyTimeout:    2 * time.Minute,
		InactiveTimeout: 30 * time.Minute,
		CleanupInterval: 30 * time.Second,
	}
}

// Config wires the registry.
type Config struct {
	Settings  Settings
	Tuning    world.Tuning
	Layout    world.Layout
	Scheduler sim.Scheduler
	Store     *state.Store
	Lifecycle *lifecycle.Manager
	Events    events.Sink
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
	// Entropy feeds room code generation. Defaults to crypto/rand.
	Entropy io.Reader
}

// Registry is the room table's single writer. Every method runs on the loop
// goroutine.
type Registry struct {
	settings  Settings
	tuning    world.Tuning
	layout    world.Layout
	sched     sim.Scheduler
	store     *state.Store
	lifecycle *lifecycle.Manager
	events    events.Sink
	publisher logging.Publisher
	metrics   telemetry.Metrics
	logger    telemetry.Logger
	entropy   io.Reader
	sweeper   *sim.Ticker
	// retired holds recently closed codes so a late join reads as
	// inactive rather than unknown. The sweep prunes it.
	retired map[string]time.Time
}

func NewRegistry(cfg Config) *Registry {
	settings := cfg.Settings
	defaults := DefaultSettings()
	if settings.MaxMembers <= 0 {
		settings.MaxMembers = defaults.MaxMembers
	}
	if settings.CodeLength <= 0 {
		settings.CodeLength = defaults.CodeLength
	}
	if settings.CodeAttempts <= 0 {
		settings.CodeAttempts = defaults.CodeAttempts
	}
	if settings.CountdownSteps < 0 {
		settings.CountdownSteps = defaults.CountdownSteps
	}
	if settings.CountdownStep <= 0 {
		settings.CountdownStep = defaults.CountdownStep
	}
	sink := cfg.Events
	if sink == nil {
		sink = events.Discard
	}
	entropy := cfg.Entropy
	if entropy == nil {
		entropy = rand.Reader
	}
	layout := cfg.Layout
	if len(layout.Platforms) == 0 {
		layout = world.DefaultLayout()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	return &Registry{
		settings:  settings,
		tuning:    cfg.Tuning,
		layout:    layout,
		sched:     cfg.Scheduler,
		store:     cfg.Store,
		lifecycle: cfg.Lifecycle,
		events:    sink,
		publisher: logging.OrNop(cfg.Publisher),
		metrics:   telemetry.OrNop(cfg.Metrics),
		logger:    logger,
		entropy:   entropy,
		retired:   make(map[string]time.Time),
	}
}

// Settings returns the active room settings.
func (r *Registry) Settings() Settings {
	return r.settings
}

func (r *Registry) now() time.Time {
	if r.sched == nil {
		return time.Now()
	}
	return r.sched.Now()
}

// NormalizeCode upper-cases and trims a client supplied code and checks its
// shape.
func (r *Registry) NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != r.settings.CodeLength {
		return "", ErrMalformedCode
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return "", ErrMalformedCode
		}
	}
	return code, nil
}

func (r *Registry) generateCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, r.settings.CodeLength)
	for attempt := 0; attempt < r.settings.CodeAttempts; attempt++ {
		for i := range buf {
			n, err := rand.Int(r.entropy, max)
			if err != nil {
				return "", fmt.Errorf("generate room code: %w", err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		code := string(buf)
		if _, taken := r.store.Rooms[code]; !taken {
			delete(r.retired, code)
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// Create opens a lobby hosted by playerID.
func (r *Registry) Create(playerID string) (*state.Room, error) {
	if _, ok := r.store.Participant(playerID); !ok {
		return nil, ErrUnknownPlayer
	}
	if _, ok := r.store.RoomOf(playerID); ok {
		return nil, ErrAlreadyInRoom
	}
	code, err := r.generateCode()
	if err != nil {
		return nil, err
	}
	now := r.now()
	room := state.NewRoom(code, playerID, now)
	r.store.Rooms[code] = room
	r.store.Bind(playerID, code)
	r.metrics.Add(metricRoomsCreated, 1)
	logrooms.RoomCreated(context.Background(), r.publisher, code, logging.PlayerRef(playerID), nil)
	return room, nil
}

// JoinResult describes a successful join.
type JoinResult struct {
	Room     *state.Room
	Rejoined bool
}

// Join adds playerID to the room named by rawCode. A member holding a grace
// period stub in a running match is restored instead.
func (r *Registry) Join(rawCode, playerID, displayName string) (JoinResult, error) {
	code, err := r.NormalizeCode(rawCode)
	if err != nil {
		return JoinResult{}, err
	}
	room, ok := r.store.Room(code)
	if !ok {
		if _, closed := r.retired[code]; closed {
			return JoinResult{}, ErrInactive
		}
		return JoinResult{}, ErrNotFound
	}
	if !room.Active {
		return JoinResult{}, ErrInactive
	}
	p, ok := r.store.Participant(playerID)
	if !ok {
		return JoinResult{}, ErrUnknownPlayer
	}
	now := r.now()
	running := room.Phase == state.PhaseCountdown || room.Phase == state.PhaseInProgress
	if running && room.IsDisconnected(playerID) {
		r.rejoin(room, p, now)
		return JoinResult{Room: room, Rejoined: true}, nil
	}
	if room.HasMember(playerID) {
		return JoinResult{}, ErrAlreadyMember
	}
	if _, elsewhere := r.store.RoomOf(playerID); elsewhere {
		return JoinResult{}, ErrAlreadyInRoom
	}
	if running {
		return JoinResult{}, ErrInProgress
	}
	if len(room.Members)+len(room.Disconnected) >= r.settings.MaxMembers {
		return JoinResult{}, ErrFull
	}

	if name := strings.TrimSpace(displayName); name != "" {
		p.Name = name
	}
	p.ResetForMatch(r.tuning)
	room.AddMember(playerID)
	room.Touch(now)
	r.store.Bind(playerID, code)
	r.emit(room, events.KindPlayerJoined, events.RosterPayload{
		PlayerID:    playerID,
		Name:        p.Name,
		HostID:      room.HostID,
		MemberCount: len(room.Members),
	})
	logrooms.MemberJoined(context.Background(), r.publisher, code, logging.PlayerRef(playerID), logrooms.MembershipPayload{
		MemberCount: len(room.Members),
		HostID:      room.HostID,
	}, nil)
	return JoinResult{Room: room}, nil
}

// Leave removes playerID from its room.
func (r *Registry) Leave(playerID string) error {
	room, ok := r.store.RoomOf(playerID)
	if !ok {
		return ErrNotInRoom
	}
	r.removeMember(room, playerID, "left", r.now())
	return nil
}

func (r *Registry) removeMember(room *state.Room, playerID, reason string, now time.Time) {
	if stub, ok := room.Disconnected[playerID]; ok {
		sim.StopTimer(&stub.Timer)
		delete(room.Disconnected, playerID)
	}
	wasMember := room.RemoveMember(playerID)
	r.store.Unbind(playerID, room.Code)
	room.Touch(now)
	p, _ := r.store.Participant(playerID)
	if p != nil {
		p.Timers.StopAll()
	}
	if wasMember && room.Phase == state.PhaseInProgress && p != nil {
		room.Forfeited = append(room.Forfeited, p.Clone())
	}

	r.emit(room, events.KindPlayerLeft, events.RosterPayload{
		PlayerID:    playerID,
		HostID:      room.HostID,
		MemberCount: len(room.Members),
	})
	logrooms.MemberLeft(context.Background(), r.publisher, room.Code, logging.PlayerRef(playerID), logrooms.MembershipPayload{
		MemberCount: len(room.Members),
		HostID:      room.HostID,
		Reason:      reason,
	}, nil)

	if room.HostID == playerID {
		if room.Phase == state.PhaseLobby {
			r.dissolve(room, playerID, "host_left")
			return
		}
		r.migrateHost(room)
	}
	if room.Empty() {
		room.EmptySince = now
	}

	switch room.Phase {
	case state.PhaseCountdown:
		if len(room.Members) < 2 {
			r.abortCountdown(room, now)
		}
	case state.PhaseInProgress:
		if r.lifecycle != nil {
			r.lifecycle.EvaluateMatchEnd(room, now)
		}
	}
}

func (r *Registry) migrateHost(room *state.Room) {
	if len(room.Members) == 0 {
		return
	}
	previous := room.HostID
	room.HostID = room.Members[0]
	r.emit(room, events.KindHostMigrated, events.RosterPayload{
		PlayerID:    room.HostID,
		HostID:      room.HostID,
		MemberCount: len(room.Members),
	})
	logrooms.HostMigrated(context.Background(), r.publisher, room.Code, logrooms.HostMigratedPayload{
		PreviousHostID: previous,
		NewHostID:      room.HostID,
	}, nil)
}

// dissolve evicts every remaining member and deletes the room.
func (r *Registry) dissolve(room *state.Room, actorID, reason string) {
	evicted := r.closeRoom(room, reason)
	r.metrics.Add(metricRoomsClosed, 1)
	logrooms.RoomDissolved(context.Background(), r.publisher, room.Code, logging.PlayerRef(actorID), logrooms.DissolvedPayload{
		Evicted: evicted,
		Reason:  reason,
	}, nil)
}

// closeRoom notifies and unbinds everyone still attached to room, cancels its
// timers and removes it from the table.
func (r *Registry) closeRoom(room *state.Room, reason string) []string {
	evicted := room.MemberIDs()
	for id := range room.Disconnected {
		r.store.Unbind(id, room.Code)
	}
	for _, id := range evicted {
		r.store.Unbind(id, room.Code)
		if p, ok := r.store.Participant(id); ok {
			p.Timers.StopAll()
		}
	}
	room.StopTimers()
	room.Active = false
	room.Members = nil
	room.Disconnected = make(map[string]*state.DisconnectedMember)
	delete(r.store.Rooms, room.Code)
	r.retired[room.Code] = r.now()
	if len(evicted) > 0 {
		r.events.Emit(events.Event{
			Room:       room.Code,
			Kind:       events.KindRoomClosed,
			Payload:    events.RoomClosedPayload{Reason: reason},
			Recipients: evicted,
		})
	}
	return evicted
}

// RoomInfo is the roster snapshot returned to clients.
type RoomInfo struct {
	Code         string       `json:"code"`
	HostID       string       `json:"hostId"`
	Phase        string       `json:"phase"`
	MemberCount  int          `json:"memberCount"`
	MaxMembers   int          `json:"maxMembers"`
	Members      []MemberInfo `json:"members"`
	Disconnected []string     `json:"disconnected,omitempty"`
}

// MemberInfo is one roster line.
type MemberInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Info snapshots the roster of code.
func (r *Registry) Info(rawCode string) (RoomInfo, error) {
	code, err := r.NormalizeCode(rawCode)
	if err != nil {
		return RoomInfo{}, err
	}
	room, ok := r.store.Room(code)
	if !ok {
		return RoomInfo{}, ErrNotFound
	}
	return r.describe(room), nil
}

// InfoFor snapshots the roster of the room playerID belongs to.
func (r *Registry) InfoFor(playerID string) (RoomInfo, error) {
	room, ok := r.store.RoomOf(playerID)
	if !ok {
		return RoomInfo{}, ErrNotInRoom
	}
	return r.describe(room), nil
}

// List snapshots every room in code order.
func (r *Registry) List() []RoomInfo {
	codes := r.store.RoomCodes()
	out := make([]RoomInfo, 0, len(codes))
	for _, code := range codes {
		if room, ok := r.store.Room(code); ok {
			out = append(out, r.describe(room))
		}
	}
	return out
}

func (r *Registry) describe(room *state.Room) RoomInfo {
	info := RoomInfo{
		Code:        room.Code,
		HostID:      room.HostID,
		Phase:       room.Phase.String(),
		MemberCount: len(room.Members),
		MaxMembers:  r.settings.MaxMembers,
		Members:     make([]MemberInfo, 0, len(room.Members)),
	}
	for _, id := range room.Members {
		name := ""
		if p, ok := r.store.Participant(id); ok {
			name = p.Name
		}
		info.Members = append(info.Members, MemberInfo{ID: id, Name: name, IsHost: id == room.HostID})
	}
	for id := range room.Disconnected {
		info.Disconnected = append(info.Disconnected, id)
	}
	sort.Strings(info.Disconnected)
	return info
}

func (r *Registry) emit(room *state.Room, kind events.Kind, payload any) {
	r.events.Emit(events.Event{Room: room.Code, Kind: kind, Payload: payload})
}
