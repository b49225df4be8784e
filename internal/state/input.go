package state

// InputFrame is one validated, normalized client input message.
type InputFrame struct {
	Left  bool `json:"left,omitempty"`
	Right bool `json:"right,omitempty"`
	Up    bool `json:"up,omitempty"`
	Down  bool `json:"down,omitempty"`

	Jump   bool `json:"jump,omitempty"`
	Light  bool `json:"light,omitempty"`
	Heavy  bool `json:"heavy,omitempty"`
	Shield bool `json:"shield,omitempty"`
	Dash   bool `json:"dash,omitempty"`
	Drop   bool `json:"drop,omitempty"`

	// DashDirection is -1, 1, or 0 when nothing could be resolved.
	DashDirection int    `json:"dashDirection,omitempty"`
	Seq           uint64 `json:"seq"`
}

// Horizontal collapses the movement flags into -1, 0 or 1.
func (f InputFrame) Horizontal() int {
	switch {
	case f.Left && !f.Right:
		return -1
	case f.Right && !f.Left:
		return 1
	default:
		return 0
	}
}

// Intent is what the next tick consumes. Held flags are overwritten by every
// accepted frame; discrete actions latch on a rising edge and stay set until
// the tick consumes them.
type Intent struct {
	Left   bool
	Right  bool
	Up     bool
	Down   bool
	Shield bool

	Jump  bool
	Light bool
	Heavy bool
	Dash  bool
	Drop  bool

	DashDirection int
}

// Apply merges an accepted frame. prev is the previously accepted frame and
// decides which discrete actions are new presses.
func (in *Intent) Apply(frame, prev InputFrame) {
	in.Left = frame.Left
	in.Right = frame.Right
	in.Up = frame.Up
	in.Down = frame.Down
	in.Shield = frame.Shield

	if frame.Jump && !prev.Jump {
		in.Jump = true
	}
	if frame.Light && !prev.Light {
		in.Light = true
	}
	if frame.Heavy && !prev.Heavy {
		in.Heavy = true
	}
	if frame.Dash && !prev.Dash {
		in.Dash = true
		in.DashDirection = frame.DashDirection
	}
	if frame.Drop && !prev.Drop {
		in.Drop = true
	}
}

// Horizontal collapses the held movement flags into -1, 0 or 1.
func (in Intent) Horizontal() int {
	switch {
	case in.Left && !in.Right:
		return -1
	case in.Right && !in.Left:
		return 1
	default:
		return 0
	}
}

// ClearActions drops every latched discrete action.
func (in *Intent) ClearActions() {
	in.Jump = false
	in.Light = false
	in.Heavy = false
	in.Dash = false
	in.Drop = false
	in.DashDirection = 0
}
