package state

// Phase is a room's position in the match state machine.
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseCountdown  Phase = "countdown"
	PhaseInProgress Phase = "in-progress"
	PhaseGameOver   Phase = "game-over"
)

func (p Phase) String() string {
	return string(p)
}

// Simulated reports whether members of a room in this phase are stepped by
// the tick.
func (p Phase) Simulated() bool {
	return p == PhaseInProgress
}
