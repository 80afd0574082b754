// Package regions holds the region data model and the per-image region store.
package regions

import (
	"labelscope/geometry"
)

// Shape is the geometry kind of a region.
type Shape string

const (
	ShapeRect    Shape = "rect"
	ShapePolygon Shape = "polygon"
)

// MinSize is the smallest width and height a rectangle may have, in image units.
const MinSize = 5.0

// MinVertices is the smallest vertex count of a finalized polygon.
const MinVertices = 3

// Attributes are the user-editable attributes of a region.
type Attributes struct {
	Class       string `json:"class"`
	Description string `json:"description"`
}

// Region is one labeled shape on one image. Rect is used for rectangles and
// Points for polygons.
type Region struct {
	ID         string           `json:"id"`
	Shape      Shape            `json:"shape"`
	Rect       geometry.Rect    `json:"rect"`
	Points     []geometry.Point `json:"points,omitempty"`
	Attributes Attributes       `json:"region_attributes"`
}

// NewRect builds a rectangle region.
func NewRect(id string, r geometry.Rect, attrs Attributes) Region {
	return Region{ID: id, Shape: ShapeRect, Rect: r, Attributes: attrs}
}

// NewPolygon builds a polygon region from a copy of pts.
func NewPolygon(id string, pts []geometry.Point, attrs Attributes) Region {
	return Region{ID: id, Shape: ShapePolygon, Points: append([]geometry.Point(nil), pts...), Attributes: attrs}
}

// Clone returns a deep copy.
func (r Region) Clone() Region {
	if r.Points != nil {
		r.Points = append([]geometry.Point(nil), r.Points...)
	}
	return r
}

// Contains reports whether p is inside the filled shape.
func (r Region) Contains(p geometry.Point) bool {
	switch r.Shape {
	case ShapeRect:
		return geometry.PointInRect(p, r.Rect)
	case ShapePolygon:
		return geometry.PointInPolygon(p, r.Points)
	}
	return false
}

// Translate returns a copy moved by d.
func (r Region) Translate(d geometry.Point) Region {
	switch r.Shape {
	case ShapeRect:
		r.Rect = r.Rect.Translate(d)
	case ShapePolygon:
		r.Points = geometry.Translate(r.Points, d)
	}
	return r
}

// Bounds returns the bounding rectangle of the shape.
func (r Region) Bounds() geometry.Rect {
	if r.Shape == ShapePolygon {
		return geometry.BoundingBox(r.Points)
	}
	return r.Rect
}

// Valid reports whether the geometry is large enough to be stored.
func (r Region) Valid() bool {
	switch r.Shape {
	case ShapeRect:
		return r.Rect.Width >= MinSize && r.Rect.Height >= MinSize
	case ShapePolygon:
		return len(r.Points) >= MinVertices
	}
	return false
}
