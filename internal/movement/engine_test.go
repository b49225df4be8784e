package movement

import (
	"testing"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	logsimulation "platform-fighter/server/logging/simulation"
	"platform-fighter/server/logging/sinks"
)

type harness struct {
	engine  *Engine
	sched   *sim.ManualScheduler
	room    *state.Room
	events  *events.Buffer
	logs    *sinks.MemorySink
	metrics *telemetry.Counters
	tuning  world.Tuning
	period  time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tuning := world.DefaultTuning()
	sched := sim.NewManualScheduler(time.Unix(1700000000, 0))
	buf := &events.Buffer{}
	logs := sinks.NewMemorySink()
	counters := telemetry.NewCounters()
	engine := NewEngine(Config{
		Tuning:    tuning,
		Layout:    world.DefaultLayout(),
		Scheduler: sched,
		Events:    buf,
		Publisher: logs,
		Metrics:   counters,
	})
	room := state.NewRoom("ABCD", "p1", sched.Now())
	room.Phase = state.PhaseInProgress
	return &harness{
		engine:  engine,
		sched:   sched,
		room:    room,
		events:  buf,
		logs:    logs,
		metrics: counters,
		tuning:  tuning,
		period:  time.Second / time.Duration(tuning.TickRate),
	}
}

func (h *harness) participant(x, y float64) *state.Participant {
	p := state.NewParticipant("p1", "Ada", h.tuning)
	p.X, p.Y = x, y
	return p
}

func (h *harness) tick(p *state.Participant) Result {
	h.sched.Advance(h.period)
	return h.engine.Step(h.room, p, h.sched.Now())
}

func (h *harness) standOn(p *state.Participant, platformID string, x float64) {
	platform, _ := h.engine.Layout().PlatformByID(platformID)
	PlaceAt(p, h.tuning, x, platform.StandingY(h.tuning.PlayerHeight), platformID)
}

func TestFallingPlayerLandsOnGround(t *testing.T) {
	h := newHarness(t)
	p := h.participant(300, 400)
	p.JumpsRemaining = 0

	landed := ""
	for i := 0; i < 120 && !p.Grounded; i++ {
		res := h.tick(p)
		if res.LandedOn != "" {
			landed = res.LandedOn
		}
	}
	if !p.Grounded || landed != "ground-main" {
		t.Fatalf("expected to land on ground-main, grounded=%v landed=%q", p.Grounded, landed)
	}
	if p.Y != 492 || p.VY != 0 {
		t.Fatalf("expected snap to standing line, got y=%.2f vy=%.2f", p.Y, p.VY)
	}
	if p.JumpsRemaining != h.tuning.MaxJumps {
		t.Fatalf("expected jump budget restored")
	}
	for i := 0; i < 30; i++ {
		h.tick(p)
	}
	if got := len(h.events.OfKind(events.KindPlatformLanded)); got != 1 {
		t.Fatalf("expected a single landing event while standing still, got %d", got)
	}
	if !p.Grounded || p.Y != 492 {
		t.Fatalf("expected to remain standing, y=%.2f", p.Y)
	}
}

func TestNoImplicitFloorPastTheGround(t *testing.T) {
	h := newHarness(t)
	p := h.participant(900, 450)
	out := false
	for i := 0; i < 240 && !out; i++ {
		out = h.tick(p).OutOfBounds
	}
	if !out {
		t.Fatalf("expected to fall past the bottom boundary, y=%.2f", p.Y)
	}
	if p.Y <= h.tuning.DeathBottom {
		t.Fatalf("boundary reported early at y=%.2f", p.Y)
	}
}

func TestDropThroughPassesOneWayPlatformThenCollides(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "mid-left", 200)
	h.tick(p)
	if !p.Grounded || p.StandingPlatformID != "mid-left" {
		t.Fatalf("expected to stand on mid-left, got %+v", p)
	}
	mid, _ := h.engine.Layout().PlatformByID("mid-left")

	p.Input.Drop = true
	sawGrace := false
	for i := 0; i < 120; i++ {
		h.tick(p)
		if p.DroppingFromPlatformID == "mid-left" {
			sawGrace = true
			if p.StandingPlatformID == "mid-left" {
				t.Fatalf("collided with the platform during the drop grace")
			}
			continue
		}
		if sawGrace {
			break
		}
	}
	if !sawGrace {
		t.Fatalf("drop never started")
	}
	if p.Y <= mid.Top() {
		t.Fatalf("expected center below the platform top after the grace, y=%.2f top=%.2f", p.Y, mid.Top())
	}

	for i := 0; i < 120 && !p.Grounded; i++ {
		h.tick(p)
	}
	if p.StandingPlatformID != "ground-main" {
		t.Fatalf("expected to land on the ground below, got %q", p.StandingPlatformID)
	}
}

func TestDropGraceEndsByTimeoutEvenWithoutDepth(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "mid-left", 200)
	p.DroppingFromPlatformID = "mid-left"
	p.DropStartedAt = h.sched.Now().Add(-h.tuning.DropWindow)
	p.Grounded = false
	h.tick(p)
	if p.StandingPlatformID != "mid-left" || p.DroppingFromPlatformID != "" {
		t.Fatalf("expected collision to resume after the window, got %+v", p)
	}
}

func TestDropOnSolidPlatformIsIgnored(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "ground-main", 300)
	p.Input.Drop = true
	h.tick(p)
	if p.DroppingFromPlatformID != "" || !p.Grounded {
		t.Fatalf("drop on solid ground must do nothing, got %+v", p)
	}
}

func TestOneWayPlatformIsPassableFromBelow(t *testing.T) {
	h := newHarness(t)
	p := h.participant(200, 380)
	p.VY = -300
	for i := 0; i < 90 && !p.Grounded; i++ {
		h.tick(p)
	}
	if p.StandingPlatformID != "mid-left" {
		t.Fatalf("expected to rise through and land on mid-left, got %q at y=%.2f", p.StandingPlatformID, p.Y)
	}
}

func TestJumpBudgetAndImpulses(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "ground-main", 300)

	p.Input.Jump = true
	h.tick(p)
	if p.JumpsRemaining != 1 {
		t.Fatalf("expected one jump left, got %d", p.JumpsRemaining)
	}
	first := h.events.OfKind(events.KindJump)
	if len(first) != 1 || first[0].Payload.(events.JumpPayload).JumpType != JumpSingle {
		t.Fatalf("expected single jump event, got %+v", first)
	}
	if first[0].Payload.(events.JumpPayload).VY != h.tuning.FirstJumpImpulse {
		t.Fatalf("expected first impulse")
	}

	h.sched.Advance(h.tuning.JumpCooldown)
	p.Input.Jump = true
	h.tick(p)
	jumps := h.events.OfKind(events.KindJump)
	if len(jumps) != 2 || jumps[1].Payload.(events.JumpPayload).JumpType != JumpDouble {
		t.Fatalf("expected double jump, got %+v", jumps)
	}
	if jumps[1].Payload.(events.JumpPayload).VY != h.tuning.JumpImpulse {
		t.Fatalf("expected weaker second impulse")
	}

	h.sched.Advance(h.tuning.JumpCooldown)
	p.Input.Jump = true
	h.tick(p)
	if len(h.events.OfKind(events.KindJump)) != 2 {
		t.Fatalf("third jump must be refused")
	}
}

func TestCheckJumpGates(t *testing.T) {
	h := newHarness(t)
	now := h.sched.Now()
	cases := []struct {
		name   string
		mutate func(p *state.Participant)
		want   JumpDenial
	}{
		{"allowed", func(p *state.Participant) {}, JumpAllowed},
		{"no budget", func(p *state.Participant) { p.JumpsRemaining = 0 }, JumpNoBudget},
		{"cooldown", func(p *state.Participant) { p.LastJumpAt = now.Add(-100 * time.Millisecond) }, JumpCoolingDown},
		{"falling fast", func(p *state.Participant) { p.VY = 301 }, JumpFallingFast},
		{"outside arena", func(p *state.Participant) { p.X = -5 }, JumpOutsideArena},
		{"rate limited", func(p *state.Participant) {
			for i := 0; i < 10; i++ {
				p.JumpHistory = append(p.JumpHistory, now.Add(-time.Duration(i+1)*50*time.Millisecond))
			}
			p.LastJumpAt = now.Add(-300 * time.Millisecond)
		}, JumpRateLimited},
		{"dead", func(p *state.Participant) { p.IsDead = true }, JumpWhileDisabled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := h.participant(300, 492)
			tc.mutate(p)
			if got := h.engine.CheckJump(p, now); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDashActivatesDecaysAndEndsOnTimer(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "ground-main", 300)
	p.Input.Dash = true
	p.Input.DashDirection = 1

	h.tick(p)
	if !p.Dash.Active || p.Dash.Direction != 1 {
		t.Fatalf("expected dash to start, got %+v", p.Dash)
	}
	if p.Dash.Velocity >= h.tuning.DashSpeed {
		t.Fatalf("expected decay applied on the first tick")
	}
	if p.X <= 300 {
		t.Fatalf("expected dash displacement, x=%.2f", p.X)
	}
	if len(h.events.OfKind(events.KindDash)) != 1 {
		t.Fatalf("expected dash event")
	}

	h.sched.Advance(h.tuning.DashDuration)
	if p.Dash.Active || p.Timers.DashEnd != nil {
		t.Fatalf("expected dash timer to end the dash, got %+v", p.Dash)
	}
}

func TestDashEndsByTickWhenTimerWasLost(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "ground-main", 300)
	p.Input.Dash = true
	h.tick(p)
	sim.StopTimer(&p.Timers.DashEnd)

	for i := 0; i < 20; i++ {
		h.tick(p)
	}
	if p.Dash.Active {
		t.Fatalf("expected tick fallback to end the dash")
	}
}

func TestDashPreconditionsAndRateLimits(t *testing.T) {
	h := newHarness(t)
	now := h.sched.Now()
	cases := []struct {
		name   string
		mutate func(p *state.Participant)
		want   bool
	}{
		{"ready", func(p *state.Participant) {}, true},
		{"already dashing", func(p *state.Participant) { p.Dash.Active = true }, false},
		{"attacking", func(p *state.Participant) { p.Attack.Attacking = true }, false},
		{"heavy pending", func(p *state.Participant) { p.Attack.PendingHeavy = true }, false},
		{"shielding", func(p *state.Participant) { p.Shielding = true }, false},
		{"falling fast", func(p *state.Participant) { p.VY = 450 }, false},
		{"cooldown", func(p *state.Participant) { p.Dash.LastAt = now.Add(-100 * time.Millisecond) }, false},
		{"burst cap", func(p *state.Participant) {
			p.Dash.History = []time.Time{now.Add(-250 * time.Millisecond), now.Add(-280 * time.Millisecond)}
		}, false},
		{"per second cap", func(p *state.Participant) {
			p.Dash.History = []time.Time{now.Add(-500 * time.Millisecond), now.Add(-700 * time.Millisecond), now.Add(-900 * time.Millisecond)}
		}, false},
		{"old history ignored", func(p *state.Participant) {
			p.Dash.History = []time.Time{now.Add(-1500 * time.Millisecond), now.Add(-1600 * time.Millisecond), now.Add(-1700 * time.Millisecond)}
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := h.participant(300, 492)
			tc.mutate(p)
			if got := h.engine.dashAllowed(p, now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDashStopsAtExtendedBoundary(t *testing.T) {
	h := newHarness(t)
	p := h.participant(h.tuning.ExtendedRight-2, 492)
	p.Dash.Active = true
	p.Dash.Direction = 1
	p.Dash.Velocity = h.tuning.DashSpeed
	p.Dash.StartedAt = h.sched.Now()
	h.tick(p)
	if p.Dash.Active {
		t.Fatalf("expected dash to end at the boundary")
	}
	if p.X > h.tuning.ExtendedRight {
		t.Fatalf("expected clamp to extended bounds, x=%.2f", p.X)
	}
}

func TestConsistencyPassRepairsOrphanedDash(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "ground-main", 300)
	p.Dash.Velocity = 120

	res := h.tick(p)
	if p.Dash.Velocity != 0 || len(res.Repairs) != 1 || res.Repairs[0] != RepairOrphanDashVelocity {
		t.Fatalf("expected orphan velocity repair, got %+v", res)
	}

	p.Dash.Active = true
	p.Dash.Velocity = 300
	p.Dash.StartedAt = h.sched.Now().Add(-time.Second)
	res = h.tick(p)
	if p.Dash.Active || len(res.Repairs) != 1 || res.Repairs[0] != RepairStaleDash {
		t.Fatalf("expected stale dash repair, got %+v", res)
	}
	if len(h.logs.OfType(logsimulation.EventInvariantRepaired)) != 2 {
		t.Fatalf("expected repairs to be logged")
	}
	if h.metrics.Load(metricRepairsPrefix+RepairStaleDash) != 1 {
		t.Fatalf("expected stale dash metric")
	}
}

func TestEmbeddedPlayerIsTeleportedToSpawn(t *testing.T) {
	h := newHarness(t)
	p := h.participant(400, 580)
	p.JumpsRemaining = 0
	res := h.tick(p)
	if len(res.Repairs) != 1 || res.Repairs[0] != RepairEmbeddedInSolid {
		t.Fatalf("expected embedded repair, got %+v", res)
	}
	spawn, _ := h.engine.Layout().PlatformByID(p.StandingPlatformID)
	if spawn.Type != world.PlatformSpawn {
		t.Fatalf("expected teleport onto a spawn platform, got %q", p.StandingPlatformID)
	}
	if p.VX != 0 || p.VY != 0 || p.JumpsRemaining != h.tuning.MaxJumps {
		t.Fatalf("expected velocities cleared and full jumps, got %+v", p)
	}
}

func TestBoundaryCheckRespectsInvincibility(t *testing.T) {
	h := newHarness(t)
	p := h.participant(h.tuning.DeathLeft-10, 300)
	p.IsInvincible = true
	p.InvincibleUntil = h.sched.Now().Add(time.Hour)
	if h.tick(p).OutOfBounds {
		t.Fatalf("invincible players cannot die")
	}
	p.IsInvincible = false
	if !h.tick(p).OutOfBounds {
		t.Fatalf("expected boundary death signal")
	}
	p.IsDead = true
	if h.tick(p).OutOfBounds {
		t.Fatalf("dead players are not re-killed")
	}
}

func TestInvincibilityExpires(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "ground-main", 300)
	p.IsInvincible = true
	p.InvincibleUntil = h.sched.Now().Add(50 * time.Millisecond)
	for i := 0; i < 2; i++ {
		h.tick(p)
	}
	if !p.IsInvincible {
		t.Fatalf("expired too early")
	}
	for i := 0; i < 2; i++ {
		h.tick(p)
	}
	if p.IsInvincible {
		t.Fatalf("expected invincibility to expire")
	}
	if len(h.events.OfKind(events.KindInvincibilityEnded)) != 1 {
		t.Fatalf("expected one invincibility-ended event")
	}
}

func TestShieldHalvesRunSpeed(t *testing.T) {
	h := newHarness(t)
	p := h.participant(0, 0)
	h.standOn(p, "ground-main", 300)
	p.Input.Right = true
	h.tick(p)
	if p.VX != h.tuning.RunSpeed {
		t.Fatalf("expected full run speed, got %.2f", p.VX)
	}
	p.Input.Shield = true
	h.tick(p)
	if p.VX != h.tuning.RunSpeed*h.tuning.ShieldSlow || !p.Shielding {
		t.Fatalf("expected slowed run while shielding, got %.2f", p.VX)
	}
}

func TestInterruptDashEmitsReason(t *testing.T) {
	h := newHarness(t)
	p := h.participant(300, 492)
	p.Dash.Active = true
	p.Dash.Velocity = 400
	if !h.engine.InterruptDash(h.room, p, InterruptDamage) {
		t.Fatalf("expected interruption")
	}
	if h.engine.InterruptDash(h.room, p, InterruptDamage) {
		t.Fatalf("second interruption must be a no-op")
	}
	got := h.events.OfKind(events.KindDashInterrupted)
	if len(got) != 1 || got[0].Payload.(events.DashInterruptedPayload).Reason != InterruptDamage {
		t.Fatalf("unexpected events: %+v", got)
	}
}
