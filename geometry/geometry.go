// Package geometry holds the hit-testing and shape math used by the annotation engine.
// All coordinates are image-space floats.
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
)

// Point is a 2D point in image space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p scaled by f.
func (p Point) Scale(f float64) Point { return Point{X: p.X * f, Y: p.Y * f} }

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect is an axis-aligned rectangle with a top-left origin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Min returns the top-left corner.
func (r Rect) Min() Point { return Point{X: r.X, Y: r.Y} }

// Max returns the bottom-right corner.
func (r Rect) Max() Point { return Point{X: r.X + r.Width, Y: r.Y + r.Height} }

// Area returns width * height.
func (r Rect) Area() float64 { return r.Width * r.Height }

// Translate moves the rectangle by d.
func (r Rect) Translate(d Point) Rect {
	r.X += d.X
	r.Y += d.Y
	return r
}

func (r Rect) r2() r2.Rect {
	return r2.RectFromPoints(r2.Point{X: r.X, Y: r.Y}, r2.Point{X: r.X + r.Width, Y: r.Y + r.Height})
}

func fromR2(r r2.Rect) Rect {
	if r.IsEmpty() {
		return Rect{}
	}
	lo, size := r.Lo(), r.Size()
	return Rect{X: lo.X, Y: lo.Y, Width: size.X, Height: size.Y}
}

// PointInRect reports whether p lies inside r, edges included.
func PointInRect(p Point, r Rect) bool {
	if r.Width < 0 || r.Height < 0 {
		return false
	}
	return r.r2().ContainsPoint(r2.Point{X: p.X, Y: p.Y})
}

// PointInPolygon is the even-odd ray casting test. An edge only counts when
// p.Y lies in [min(yi,yj), max(yi,yj)) so horizontal edges and shared
// vertices are never counted twice.
func PointInPolygon(p Point, pts []Point) bool {
	if len(pts) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		xi, yi := pts[i].X, pts[i].Y
		xj, yj := pts[j].X, pts[j].Y
		if (yi > p.Y) != (yj > p.Y) &&
			p.X < (xj-xi)*(p.Y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// NormalizeRect builds the rectangle spanned by two arbitrary corners.
func NormalizeRect(a, b Point) Rect {
	return fromR2(r2.RectFromPoints(r2.Point{X: a.X, Y: a.Y}, r2.Point{X: b.X, Y: b.Y}))
}

// BoundingBox returns the smallest rectangle containing every point.
func BoundingBox(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	rp := make([]r2.Point, len(pts))
	for i, p := range pts {
		rp[i] = r2.Point{X: p.X, Y: p.Y}
	}
	return fromR2(r2.RectFromPoints(rp...))
}

// Translate returns a copy of pts moved by d.
func Translate(pts []Point, d Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = p.Add(d)
	}
	return out
}

// PolygonArea is the absolute shoelace area.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		sum += pts[j].X*pts[i].Y - pts[i].X*pts[j].Y
	}
	return math.Abs(sum) / 2
}
