package annotations

import (
	"encoding/json"
	"io"

	"labelscope/geometry"
	"labelscope/regions"
)

type cocoDocument struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoImage struct {
	ID       int    `json:"id"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

type cocoAnnotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	Segmentation [][]float64 `json:"segmentation,omitempty"`
	BBox         []float64   `json:"bbox"`
	Area         float64     `json:"area"`
	CategoryID   int         `json:"category_id"`
	IsCrowd      int         `json:"iscrowd"`
}

type cocoCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// COCOExporter writes a COCO detection document with a single "object"
// category. Images are numbered from 1 in file table order.
type COCOExporter struct {
	// RectanglesOnly skips polygon regions.
	RectanglesOnly bool
	// Dimensions reports the pixel size of an image. Sizes are 0 when unset
	// or unknown.
	Dimensions func(name string) (width, height int, ok bool)
}

func (e *COCOExporter) Export(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e.build(doc))
}

func (e *COCOExporter) GetFileExtension() string { return ".coco.json" }
func (e *COCOExporter) GetContentType() string   { return "application/json" }

func (e *COCOExporter) build(doc *Document) cocoDocument {
	out := cocoDocument{
		Images:      []cocoImage{},
		Annotations: []cocoAnnotation{},
		Categories:  []cocoCategory{{ID: 1, Name: "object"}},
	}
	nextID := 1
	for i, key := range doc.FileKeys() {
		file := doc.Files[key]
		img := cocoImage{ID: i + 1, FileName: file.Name}
		if e.Dimensions != nil {
			if w, h, ok := e.Dimensions(file.Name); ok {
				img.Width, img.Height = w, h
			}
		}
		out.Images = append(out.Images, img)

		for _, m := range doc.metadataFor(key) {
			ann, ok := e.annotation(m)
			if !ok {
				continue
			}
			ann.ID = nextID
			ann.ImageID = img.ID
			nextID++
			out.Annotations = append(out.Annotations, ann)
		}
	}
	return out
}

func (e *COCOExporter) annotation(m Metadata) (cocoAnnotation, bool) {
	s := m.Shape
	switch s.Name {
	case string(regions.ShapeRect):
		return cocoAnnotation{
			BBox:       []float64{float64(s.X), float64(s.Y), float64(s.Width), float64(s.Height)},
			Area:       float64(s.Width * s.Height),
			CategoryID: 1,
		}, true
	case string(regions.ShapePolygon):
		if e.RectanglesOnly || len(s.AllPointsX) < regions.MinVertices {
			return cocoAnnotation{}, false
		}
		pts := s.Points()
		seg := make([]float64, 0, 2*len(pts))
		for _, p := range pts {
			seg = append(seg, p.X, p.Y)
		}
		box := geometry.BoundingBox(pts)
		return cocoAnnotation{
			Segmentation: [][]float64{seg},
			BBox:         []float64{box.X, box.Y, box.Width, box.Height},
			Area:         geometry.PolygonArea(pts),
			CategoryID:   1,
		}, true
	}
	return cocoAnnotation{}, false
}
