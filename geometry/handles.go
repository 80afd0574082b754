package geometry

import "math"

// Corner names one of the four resize handles of a rectangle.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

// String returns the handle name used on the wire.
func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "topleft"
	case TopRight:
		return "topright"
	case BottomLeft:
		return "bottomleft"
	case BottomRight:
		return "bottomright"
	default:
		return "unknown"
	}
}

func (c Corner) left() bool   { return c == TopLeft || c == BottomLeft }
func (c Corner) top() bool    { return c == TopLeft || c == TopRight }
func (c Corner) right() bool  { return c == TopRight || c == BottomRight }
func (c Corner) bottom() bool { return c == BottomLeft || c == BottomRight }

// ResizeHandles returns the corner points indexed by Corner.
func ResizeHandles(r Rect) [4]Point {
	return [4]Point{
		TopLeft:     {X: r.X, Y: r.Y},
		TopRight:    {X: r.X + r.Width, Y: r.Y},
		BottomLeft:  {X: r.X, Y: r.Y + r.Height},
		BottomRight: {X: r.X + r.Width, Y: r.Y + r.Height},
	}
}

// Near reports whether p falls within the square hit area of radius around q.
func Near(p, q Point, radius float64) bool {
	return math.Abs(p.X-q.X) < radius && math.Abs(p.Y-q.Y) < radius
}

// HandleAt returns the first corner of r whose hit area contains p.
func HandleAt(r Rect, p Point, radius float64) (Corner, bool) {
	for c, h := range ResizeHandles(r) {
		if Near(p, h, radius) {
			return Corner(c), true
		}
	}
	return 0, false
}

// VertexAt returns the index of the first vertex whose hit area contains p.
func VertexAt(pts []Point, p Point, radius float64) (int, bool) {
	for i, v := range pts {
		if Near(p, v, radius) {
			return i, true
		}
	}
	return -1, false
}

// ResizeRect drags corner c of r to p. Left and top edges move the origin and
// absorb the inverse delta so the opposite edge stays put; right and bottom
// edges only change the size. Width and height never drop below min.
func ResizeRect(r Rect, c Corner, p Point, min float64) Rect {
	if c.right() {
		r.Width = math.Max(min, p.X-r.X)
	}
	if c.bottom() {
		r.Height = math.Max(min, p.Y-r.Y)
	}
	if c.left() {
		right := r.X + r.Width
		r.X = math.Min(p.X, right-min)
		r.Width = right - r.X
	}
	if c.top() {
		bottom := r.Y + r.Height
		r.Y = math.Min(p.Y, bottom-min)
		r.Height = bottom - r.Y
	}
	return r
}
