package state

import (
	"time"

	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/world"
)

// AttackKind distinguishes the two melee attacks.
type AttackKind string

const (
	AttackNone  AttackKind = ""
	AttackLight AttackKind = "light"
	AttackHeavy AttackKind = "heavy"
)

// DashState is the dash sub-state machine.
type DashState struct {
	Active    bool
	Velocity  float64
	Direction int
	StartedAt time.Time
	LastAt    time.Time
	// History holds recent activation times for the rolling rate limits.
	History []time.Time
}

// AttackState is the melee sub-state machine. Attacking is the active window
// in which the resolver may land one hit; Processed closes it after the
// first scan.
type AttackState struct {
	Attacking   bool
	Kind        AttackKind
	Processed   bool
	StartedAt   time.Time
	LastLightAt time.Time

	PendingHeavy  bool
	HeavyReadyAt  time.Time
	HeavyConsumed bool
	LastHeavyAt   time.Time
}

// Timers are the cancelable handles for pending transitions owned by a
// participant. Every one of them has a tick-time fallback.
type Timers struct {
	Respawn      *sim.Timer
	DashEnd      *sim.Timer
	HeavyStartup *sim.Timer
	AttackEnd    *sim.Timer
}

// StopAll cancels and clears every pending timer.
func (t *Timers) StopAll() {
	sim.StopTimer(&t.Respawn)
	sim.StopTimer(&t.DashEnd)
	sim.StopTimer(&t.HeavyStartup)
	sim.StopTimer(&t.AttackEnd)
}

// Participant is the authoritative state of one connected player.
type Participant struct {
	ID    string
	Name  string
	Guest bool

	X  float64
	Y  float64
	VX float64
	VY float64

	Health    int
	MaxHealth int
	Lives     int

	Grounded           bool
	StandingPlatformID string
	JumpsRemaining     int
	LastJumpAt         time.Time
	JumpHistory        []time.Time

	DroppingFromPlatformID string
	DropStartedAt          time.Time

	// Facing is the last non-zero horizontal movement direction.
	Facing    int
	Shielding bool

	Dash   DashState
	Attack AttackState

	IsDead          bool
	DiedAt          time.Time
	RespawnAt       time.Time
	IsInvincible    bool
	InvincibleUntil time.Time
	Eliminated      bool

	Kills          int
	Deaths         int
	LastAttackerID string
	LastAttackedAt time.Time

	LastAcceptedSeq uint64
	LastFrame       InputFrame
	Input           Intent

	Timers Timers
}

// NewParticipant returns a participant with full health, lives and jump
// budget, not yet placed in the arena.
func NewParticipant(id, name string, tuning world.Tuning) *Participant {
	p := &Participant{ID: id, Name: name, Facing: 1}
	p.ResetForMatch(tuning)
	return p
}

// Active reports whether the participant can currently act and be hit.
func (p *Participant) Active() bool {
	return p != nil && !p.IsDead && !p.Eliminated
}

// Vulnerable reports whether the participant can take damage or die.
func (p *Participant) Vulnerable() bool {
	return p.Active() && !p.IsInvincible
}

// ResetForMatch restores combat and life sub-state for a new match. Position
// and input sequencing are left alone.
func (p *Participant) ResetForMatch(tuning world.Tuning) {
	p.Timers.StopAll()
	p.VX, p.VY = 0, 0
	p.MaxHealth = tuning.MaxHealth
	p.Health = tuning.MaxHealth
	p.Lives = tuning.Lives
	p.Grounded = false
	p.StandingPlatformID = ""
	p.JumpsRemaining = tuning.MaxJumps
	p.LastJumpAt = time.Time{}
	p.JumpHistory = nil
	p.DroppingFromPlatformID = ""
	p.DropStartedAt = time.Time{}
	p.Shielding = false
	p.Dash = DashState{}
	p.Attack = AttackState{}
	p.IsDead = false
	p.DiedAt = time.Time{}
	p.RespawnAt = time.Time{}
	p.IsInvincible = false
	p.InvincibleUntil = time.Time{}
	p.Eliminated = false
	p.Kills = 0
	p.Deaths = 0
	p.LastAttackerID = ""
	p.LastAttackedAt = time.Time{}
	p.Input = Intent{}
}

// Clone deep-copies the participant. Timer handles are not copied: a clone is
// inert until the tick's fallback checks pick it up again.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	cloned := *p
	cloned.Timers = Timers{}
	if len(p.JumpHistory) > 0 {
		cloned.JumpHistory = append([]time.Time(nil), p.JumpHistory...)
	}
	if len(p.Dash.History) > 0 {
		cloned.Dash.History = append([]time.Time(nil), p.Dash.History...)
	}
	return &cloned
}

// RestoreFrom overwrites the simulation state with snap while keeping the
// identity fields and the input sequencing of the live connection.
func (p *Participant) RestoreFrom(snap *Participant) {
	if snap == nil {
		return
	}
	id, name, guest := p.ID, p.Name, p.Guest
	seq, frame := p.LastAcceptedSeq, p.LastFrame
	p.Timers.StopAll()
	*p = *snap.Clone()
	p.ID, p.Name, p.Guest = id, name, guest
	p.LastAcceptedSeq, p.LastFrame = seq, frame
	p.Input = Intent{}
}

// KDR is kills per death, with deaths floored at one.
func (p *Participant) KDR() float64 {
	deaths := p.Deaths
	if deaths < 1 {
		deaths = 1
	}
	return float64(p.Kills) / float64(deaths)
}
