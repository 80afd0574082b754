package interaction

import (
	"fmt"
	"strings"

	"labelscope/geometry"
)

// Tool is the active annotation tool.
type Tool string

const (
	ToolNone    Tool = "none"
	ToolHand    Tool = "hand"
	ToolRect    Tool = "rect"
	ToolPolygon Tool = "polygon"
	ToolRepeat  Tool = "repeat"
)

// ParseTool accepts the tool names and their keyboard shortcuts.
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ToolNone, nil
	case "hand", "h":
		return ToolHand, nil
	case "rect", "b":
		return ToolRect, nil
	case "polygon", "p":
		return ToolPolygon, nil
	case "repeat", "r":
		return ToolRepeat, nil
	default:
		return "", fmt.Errorf("unknown tool: %s", s)
	}
}

const (
	KeyEscape    = "Escape"
	KeyEnter     = "Enter"
	KeyDelete    = "Delete"
	KeyBackspace = "Backspace"
)

// Event is one pointer, keyboard or wheel input. Pointer positions are in
// screen space.
type Event interface {
	isEvent()
}

type PointerDown struct {
	Screen geometry.Point
	Button int
}

type PointerMove struct {
	Screen geometry.Point
}

type PointerUp struct{}

type PointerLeave struct{}

type KeyDown struct {
	Key string
}

type Wheel struct {
	DeltaY float64
}

func (PointerDown) isEvent()  {}
func (PointerMove) isEvent()  {}
func (PointerUp) isEvent()    {}
func (PointerLeave) isEvent() {}
func (KeyDown) isEvent()      {}
func (Wheel) isEvent()        {}
