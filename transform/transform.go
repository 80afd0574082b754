// Package transform maps pointer positions between screen space and image space.
package transform

import (
	"math"

	"labelscope/geometry"
)

const (
	MinZoom  = 0.2
	MaxZoom  = 3.0
	ZoomStep = 0.1

	// HandleSize is the handle hit radius in screen pixels.
	HandleSize = 6.0
)

// ScreenToImage inverts the render transform image*zoom + offset.
func ScreenToImage(p geometry.Point, zoom float64, offset geometry.Point) geometry.Point {
	return p.Sub(offset).Scale(1 / zoom)
}

// ImageToScreen applies the render transform.
func ImageToScreen(p geometry.Point, zoom float64, offset geometry.Point) geometry.Point {
	return p.Scale(zoom).Add(offset)
}

// Controller owns the zoom factor and pan offset of one viewport.
type Controller struct {
	zoom    float64
	offset  geometry.Point
	panning bool
	panRef  geometry.Point
}

// New returns a controller at zoom 1 with no offset.
func New() *Controller {
	return &Controller{zoom: 1}
}

func (c *Controller) Zoom() float64          { return c.zoom }
func (c *Controller) Offset() geometry.Point { return c.offset }
func (c *Controller) Panning() bool          { return c.panning }

// OnWheel zooms out one step for a positive delta and in otherwise.
// The result is snapped to the step grid so the bounds are hit exactly.
func (c *Controller) OnWheel(deltaY float64) {
	z := c.zoom + ZoomStep
	if deltaY > 0 {
		z = c.zoom - ZoomStep
	}
	z = math.Round(z/ZoomStep) * ZoomStep
	c.zoom = math.Min(MaxZoom, math.Max(MinZoom, z))
}

// SetZoom clamps and applies z.
func (c *Controller) SetZoom(z float64) {
	c.zoom = math.Min(MaxZoom, math.Max(MinZoom, z))
}

func (c *Controller) ScreenToImage(p geometry.Point) geometry.Point {
	return ScreenToImage(p, c.zoom, c.offset)
}

func (c *Controller) ImageToScreen(p geometry.Point) geometry.Point {
	return ImageToScreen(p, c.zoom, c.offset)
}

// HitRadius is the handle radius expressed in image space, so handles stay
// HandleSize screen pixels wide at every zoom level.
func (c *Controller) HitRadius() float64 {
	return HandleSize / c.zoom
}

// BeginPan records the screen point a pan starts from.
func (c *Controller) BeginPan(p geometry.Point) {
	c.panning = true
	c.panRef = p
}

// PanTo moves the offset by the delta since the previous sample and rebases
// the reference point. It is a no-op unless a pan is in progress.
func (c *Controller) PanTo(p geometry.Point) {
	if !c.panning {
		return
	}
	c.offset = c.offset.Add(p.Sub(c.panRef))
	c.panRef = p
}

func (c *Controller) EndPan() {
	c.panning = false
	c.panRef = geometry.Point{}
}

// Reset returns to zoom 1 and a zero offset.
func (c *Controller) Reset() {
	c.zoom = 1
	c.offset = geometry.Point{}
	c.EndPan()
}
