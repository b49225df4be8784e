package world

// Rect is an axis-aligned box in edge form. Y grows downward.
type Rect struct {
	Left, Right, Top, Bottom float64
}

// RectFromCenter builds a box centered at (x, y).
func RectFromCenter(x, y, width, height float64) Rect {
	return Rect{
		Left:   x - width/2,
		Right:  x + width/2,
		Top:    y - height/2,
		Bottom: y + height/2,
	}
}

// OverlapsX reports whether the two boxes share any horizontal span.
func (r Rect) OverlapsX(o Rect) bool {
	return r.Left < o.Right && r.Right > o.Left
}

// Overlaps reports strict AABB intersection.
func (r Rect) Overlaps(o Rect) bool {
	return r.OverlapsX(o) && r.Top < o.Bottom && r.Bottom > o.Top
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.Left >= r.Left && o.Right <= r.Right && o.Top >= r.Top && o.Bottom <= r.Bottom
}

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
