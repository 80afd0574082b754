package annotations

import (
	"bytes"
	"encoding/json"
	"fmt"

	"labelscope/geometry"
)

// ShapeAttributes is the persisted geometry of a region, in whole image
// units. Rectangles use X, Y, Width and Height; polygons use the parallel
// AllPointsX and AllPointsY arrays.
type ShapeAttributes struct {
	Name       string
	X          int
	Y          int
	Width      int
	Height     int
	AllPointsX []int
	AllPointsY []int
}

type rectShape struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type polygonShape struct {
	Name       string `json:"name"`
	AllPointsX []int  `json:"all_points_x"`
	AllPointsY []int  `json:"all_points_y"`
}

// wireShape accepts fractional coordinates written by other tools.
type wireShape struct {
	Name       string    `json:"name"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	AllPointsX []float64 `json:"all_points_x"`
	AllPointsY []float64 `json:"all_points_y"`
}

func (s ShapeAttributes) MarshalJSON() ([]byte, error) {
	if s.Name == "polygon" {
		return json.Marshal(polygonShape{Name: s.Name, AllPointsX: nonNil(s.AllPointsX), AllPointsY: nonNil(s.AllPointsY)})
	}
	return json.Marshal(rectShape{Name: s.Name, X: s.X, Y: s.Y, Width: s.Width, Height: s.Height})
}

func (s *ShapeAttributes) UnmarshalJSON(data []byte) error {
	var w wireShape
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.AllPointsX) != len(w.AllPointsY) {
		return fmt.Errorf("polygon has %d x and %d y coordinates", len(w.AllPointsX), len(w.AllPointsY))
	}
	*s = ShapeAttributes{
		Name:   w.Name,
		X:      round(w.X),
		Y:      round(w.Y),
		Width:  round(w.Width),
		Height: round(w.Height),
	}
	for i := range w.AllPointsX {
		s.AllPointsX = append(s.AllPointsX, round(w.AllPointsX[i]))
		s.AllPointsY = append(s.AllPointsY, round(w.AllPointsY[i]))
	}
	return nil
}

// Points returns the polygon vertices.
func (s ShapeAttributes) Points() []geometry.Point {
	pts := make([]geometry.Point, len(s.AllPointsX))
	for i := range s.AllPointsX {
		pts[i] = geometry.Point{X: float64(s.AllPointsX[i]), Y: float64(s.AllPointsY[i])}
	}
	return pts
}

func (s ShapeAttributes) clone() ShapeAttributes {
	s.AllPointsX = append([]int(nil), s.AllPointsX...)
	s.AllPointsY = append([]int(nil), s.AllPointsY...)
	return s
}

func nonNil(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

// UnmarshalJSON accepts region ids written as numbers, as older exports do.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	var raw struct {
		plain
		RegionID json.RawMessage `json:"region_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata(raw.plain)
	id := bytes.TrimSpace(raw.RegionID)
	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
		m.RegionID = ""
	case id[0] == '"':
		return json.Unmarshal(id, &m.RegionID)
	default:
		var n json.Number
		if err := json.Unmarshal(id, &n); err != nil {
			return fmt.Errorf("region_id: %w", err)
		}
		m.RegionID = n.String()
	}
	return nil
}
