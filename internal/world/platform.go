package world

import "fmt"

// PlatformType tags how a platform participates in landing resolution.
type PlatformType string

const (
	PlatformSolid  PlatformType = "SOLID"
	PlatformOneWay PlatformType = "ONE_WAY"
	PlatformSpawn  PlatformType = "SPAWN"
)

// Valid reports whether the type is one of the known platform kinds.
func (t PlatformType) Valid() bool {
	switch t {
	case PlatformSolid, PlatformOneWay, PlatformSpawn:
		return true
	default:
		return false
	}
}

// Platform is an axis-aligned rectangle centered at (X, Y).
type Platform struct {
	ID     string       `json:"id" jsonschema:"required,minLength=1"`
	Type   PlatformType `json:"type" jsonschema:"required,enum=SOLID,enum=ONE_WAY,enum=SPAWN"`
	X      float64      `json:"x" jsonschema:"required"`
	Y      float64      `json:"y" jsonschema:"required"`
	Width  float64      `json:"width" jsonschema:"required,exclusiveMinimum=0"`
	Height float64      `json:"height" jsonschema:"required,exclusiveMinimum=0"`
}

// Bounds returns the platform rectangle in edge form.
func (p Platform) Bounds() Rect {
	return RectFromCenter(p.X, p.Y, p.Width, p.Height)
}

// Top is the y coordinate of the platform's upper surface.
func (p Platform) Top() float64 {
	return p.Y - p.Height/2
}

// StandingY is the center y a player of the given height has while resting on p.
func (p Platform) StandingY(playerHeight float64) float64 {
	return p.Top() - playerHeight/2
}

func (p Platform) validate() error {
	if p.ID == "" {
		return fmt.Errorf("platform without id")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("platform %s: unknown type %q", p.ID, p.Type)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("platform %s: non-positive size %.1fx%.1f", p.ID, p.Width, p.Height)
	}
	return nil
}
