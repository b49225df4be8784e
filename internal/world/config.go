package world

import "time"

// Tuning is the gameplay constant set. Every subsystem reads it; nothing
// mutates it after construction.
type Tuning struct {
	TickRate int

	Width        float64
	Height       float64
	PlayerWidth  float64
	PlayerHeight float64

	// Landing candidates may sit this far above a platform top, or below it
	// by this amount plus the distance fallen during the tick.
	LandingTolerance float64

	DeathLeft   float64
	DeathRight  float64
	DeathBottom float64

	ExtendedLeft   float64
	ExtendedRight  float64
	ExtendedTop    float64
	ExtendedBottom float64

	Gravity      float64
	MaxFallSpeed float64
	RunSpeed     float64
	ShieldSlow   float64

	MaxJumps         int
	FirstJumpImpulse float64
	JumpImpulse      float64
	JumpCooldown     time.Duration
	JumpMaxFallSpeed float64
	JumpRateLimit    int

	DropNudge         float64
	DropWindow        time.Duration
	DropDepthFraction float64

	DashSpeed         float64
	DashDecay         float64
	DashDuration      time.Duration
	DashCooldown      time.Duration
	DashMaxFallSpeed  float64
	DashPerSecond     int
	DashBurst         int
	DashBurstWindow   time.Duration
	DashStaleMultiple float64

	LightRange     float64
	LightDamage    int
	LightCooldown  time.Duration
	HeavyRange     float64
	HeavyDamage    int
	HeavyCooldown  time.Duration
	HeavyStartup   time.Duration
	HeavyKnockMul  float64
	AttackWindow   time.Duration
	BlockFactor    float64
	Knockback      float64
	AttributionFor time.Duration

	MaxHealth          int
	Lives              int
	RespawnDelay       time.Duration
	InvincibleFor      time.Duration
	TimerFallbackSlack time.Duration
}

// DefaultTuning returns the consolidated constant set.
func DefaultTuning() Tuning {
	return Tuning{
		TickRate: 60,

		Width:            800,
		Height:           600,
		PlayerWidth:      40,
		PlayerHeight:     80,
		LandingTolerance: 10,

		DeathLeft:   -200,
		DeathRight:  1000,
		DeathBottom: 800,

		ExtendedLeft:   -150,
		ExtendedRight:  950,
		ExtendedTop:    -300,
		ExtendedBottom: 700,

		Gravity:      800,
		MaxFallSpeed: 900,
		RunSpeed:     240,
		ShieldSlow:   0.5,

		MaxJumps:         2,
		FirstJumpImpulse: -500,
		JumpImpulse:      -400,
		JumpCooldown:     200 * time.Millisecond,
		JumpMaxFallSpeed: 300,
		JumpRateLimit:    10,

		DropNudge:         150,
		DropWindow:        300 * time.Millisecond,
		DropDepthFraction: 0.5,

		DashSpeed:         650,
		DashDecay:         0.85,
		DashDuration:      200 * time.Millisecond,
		DashCooldown:      400 * time.Millisecond,
		DashMaxFallSpeed:  400,
		DashPerSecond:     3,
		DashBurst:         2,
		DashBurstWindow:   300 * time.Millisecond,
		DashStaleMultiple: 2,

		LightRange:     70,
		LightDamage:    15,
		LightCooldown:  500 * time.Millisecond,
		HeavyRange:     90,
		HeavyDamage:    30,
		HeavyCooldown:  1200 * time.Millisecond,
		HeavyStartup:   300 * time.Millisecond,
		HeavyKnockMul:  2,
		AttackWindow:   200 * time.Millisecond,
		BlockFactor:    0.3,
		Knockback:      20,
		AttributionFor: 5 * time.Second,

		MaxHealth:          100,
		Lives:              3,
		RespawnDelay:       3 * time.Second,
		InvincibleFor:      2 * time.Second,
		TimerFallbackSlack: 250 * time.Millisecond,
	}
}

// TickDelta is the fixed integration step in seconds.
func (t Tuning) TickDelta() float64 {
	rate := t.TickRate
	if rate <= 0 {
		rate = 60
	}
	return 1 / float64(rate)
}
