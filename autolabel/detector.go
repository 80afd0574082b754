// Package autolabel asks an external detection service for candidate
// regions and turns its answer into stored regions.
package autolabel

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"labelscope/geometry"
	"labelscope/regions"
)

// DefaultClass is stamped onto detections that carry no label.
const DefaultClass = "auto"

var ErrDetectorFailed = errors.New("auto-label service failed")

// Request is the image sent for detection.
type Request struct {
	Filename string
	Data     []byte
}

// Detection is one candidate region in image space. Rectangles use Box as
// x1, y1, x2, y2; polygons use Points.
type Detection struct {
	Shape       regions.Shape
	Box         [4]float64
	Points      []geometry.Point
	Class       string
	Description string
}

// Detector finds regions in an image.
type Detector interface {
	Detect(ctx context.Context, req Request) ([]Detection, error)
}

// Materialize turns detections into regions with fresh ids. Inverted boxes,
// polygons with fewer than three vertices and shapes below the minimum size
// are skipped.
func Materialize(dets []Detection, ids *regions.IDGenerator) []regions.Region {
	out := make([]regions.Region, 0, len(dets))
	for _, d := range dets {
		class := d.Class
		if class == "" {
			class = DefaultClass
		}
		attrs := regions.Attributes{Class: class, Description: d.Description}

		var r regions.Region
		switch d.Shape {
		case regions.ShapeRect:
			x1, y1, x2, y2 := d.Box[0], d.Box[1], d.Box[2], d.Box[3]
			if x2 <= x1 || y2 <= y1 {
				continue
			}
			r = regions.NewRect(ids.Next(), geometry.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, attrs)
		case regions.ShapePolygon:
			r = regions.NewPolygon(ids.Next(), d.Points, attrs)
		default:
			continue
		}
		if !r.Valid() {
			continue
		}
		out = append(out, r)
	}
	if skipped := len(dets) - len(out); skipped > 0 {
		log.Debug(fmt.Sprintf("Skipped %d degenerate detections", skipped))
	}
	return out
}
