package world

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Layout is the read-only level geometry shared by every room.
type Layout struct {
	Platforms []Platform `json:"platforms" jsonschema:"required,minItems=1"`
}

// DefaultLayout returns the built-in arena: one ground row, two spawn pads
// level with it, and three tiers of floating platforms.
func DefaultLayout() Layout {
	return Layout{Platforms: []Platform{
		{ID: "ground-main", Type: PlatformSolid, X: 400, Y: 580, Width: 864, Height: 96},
		{ID: "spawn-left", Type: PlatformSpawn, X: 100, Y: 580, Width: 120, Height: 96},
		{ID: "spawn-right", Type: PlatformSpawn, X: 700, Y: 580, Width: 120, Height: 96},
		{ID: "mid-center", Type: PlatformSolid, X: 400, Y: 420, Width: 150, Height: 20},
		{ID: "mid-left", Type: PlatformOneWay, X: 200, Y: 400, Width: 120, Height: 64},
		{ID: "mid-right", Type: PlatformOneWay, X: 600, Y: 400, Width: 120, Height: 64},
		{ID: "upper-left", Type: PlatformOneWay, X: 150, Y: 280, Width: 120, Height: 64},
		{ID: "upper-right", Type: PlatformOneWay, X: 650, Y: 280, Width: 120, Height: 64},
		{ID: "top-center", Type: PlatformSolid, X: 400, Y: 160, Width: 80, Height: 20},
	}}
}

// Validate checks ids are unique, sizes are positive, and at least one spawn
// platform exists.
func (l Layout) Validate() error {
	if len(l.Platforms) == 0 {
		return fmt.Errorf("layout has no platforms")
	}
	seen := make(map[string]struct{}, len(l.Platforms))
	spawns := 0
	for _, p := range l.Platforms {
		if err := p.validate(); err != nil {
			return err
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate platform id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Type == PlatformSpawn {
			spawns++
		}
	}
	if spawns == 0 {
		return fmt.Errorf("layout has no %s platform", PlatformSpawn)
	}
	return nil
}

// PlatformByID looks a platform up by id.
func (l Layout) PlatformByID(id string) (Platform, bool) {
	for _, p := range l.Platforms {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// SpawnPlatforms returns the SPAWN platforms in declared order.
func (l Layout) SpawnPlatforms() []Platform {
	spawns := make([]Platform, 0, 2)
	for _, p := range l.Platforms {
		if p.Type == PlatformSpawn {
			spawns = append(spawns, p)
		}
	}
	return spawns
}

// DecodeLayout parses and validates a JSON layout document.
func DecodeLayout(r io.Reader) (Layout, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	var layout Layout
	if err := decoder.Decode(&layout); err != nil {
		return Layout{}, fmt.Errorf("decode layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, fmt.Errorf("invalid layout: %w", err)
	}
	return layout, nil
}

// LoadLayout reads a layout file. An empty path yields the default layout.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Layout{}, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()
	return DecodeLayout(f)
}
