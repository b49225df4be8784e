package world

// PlayerBox returns the bounding box of a player centered at (x, y).
func (t Tuning) PlayerBox(x, y float64) Rect {
	return RectFromCenter(x, y, t.PlayerWidth, t.PlayerHeight)
}

// PastDeathBoundary reports whether (x, y) lies beyond the side or bottom
// death lines.
func (t Tuning) PastDeathBoundary(x, y float64) bool {
	return x < t.DeathLeft || x > t.DeathRight || y > t.DeathBottom
}

// ClampExtended pulls a position back inside the extended world bounds.
func (t Tuning) ClampExtended(x, y float64) (float64, float64) {
	return Clamp(x, t.ExtendedLeft, t.ExtendedRight), Clamp(y, t.ExtendedTop, t.ExtendedBottom)
}

// InPlayableArea is the coarse sanity window used by jump validation.
func (t Tuning) InPlayableArea(x, y float64) bool {
	return x >= 0 && x <= t.Width && y >= 0 && y <= t.Height
}
