package interaction

import "labelscope/geometry"

// state is the tagged union of interaction states. Each variant carries only
// what its gesture needs.
type state interface {
	name() string
}

type idle struct{}

type drawingRect struct {
	anchor  geometry.Point
	current geometry.Point
	// released is set when finalizing was rejected; the preview is frozen
	// until the next pointer-up retries or Escape/pointer-down drops it.
	released bool
}

type draggingRect struct {
	id   string
	grab geometry.Point
}

type resizingRect struct {
	id     string
	corner geometry.Corner
}

type drawingPolygon struct {
	points []geometry.Point
	cursor *geometry.Point
}

type draggingPolygon struct {
	id   string
	last geometry.Point
}

type resizingVertex struct {
	id    string
	index int
}

type panningView struct{}

func (idle) name() string            { return "idle" }
func (drawingRect) name() string     { return "drawing-rect" }
func (draggingRect) name() string    { return "dragging-rect" }
func (resizingRect) name() string    { return "resizing-rect" }
func (drawingPolygon) name() string  { return "drawing-polygon" }
func (draggingPolygon) name() string { return "dragging-polygon" }
func (resizingVertex) name() string  { return "resizing-vertex" }
func (panningView) name() string     { return "panning-view" }
