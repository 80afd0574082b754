package autolabel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"labelscope/geometry"
	"labelscope/regions"
)

// HTTPDetector posts the image as a multipart form to a prediction service.
type HTTPDetector struct {
	URL string
	// Field is the multipart field name of the image, "image" when empty.
	Field  string
	Client *http.Client
}

func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{URL: url, Field: "image", Client: &http.Client{Timeout: timeout}}
}

// boxesResponse is the {"boxes": [[x1, y1, x2, y2]], "labels": [...]} answer.
type boxesResponse struct {
	Boxes  [][]float64 `json:"boxes"`
	Labels []string    `json:"labels"`
}

// shapeResponse is one element of the list answer.
type shapeResponse struct {
	Shape       string           `json:"shape"`
	Points      []geometry.Point `json:"points"`
	Box         []float64        `json:"box"`
	Class       string           `json:"class"`
	Description string           `json:"description"`
}

func (d *HTTPDetector) Detect(ctx context.Context, req Request) ([]Detection, error) {
	field := d.Field
	if field == "" {
		field = "image"
	}
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile(field, req.Filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	log.Info(fmt.Sprintf("Requesting detections for %s from %s", req.Filename, d.URL))
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrDetectorFailed, resp.StatusCode, bytes.TrimSpace(raw))
	}
	dets, err := parseDetections(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorFailed, err)
	}
	return dets, nil
}

func parseDetections(raw []byte) ([]Detection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	if raw[0] == '[' {
		var shapes []shapeResponse
		if err := json.Unmarshal(raw, &shapes); err != nil {
			return nil, err
		}
		dets := make([]Detection, 0, len(shapes))
		for _, s := range shapes {
			d := Detection{Class: s.Class, Description: s.Description}
			switch {
			case s.Shape == string(regions.ShapePolygon):
				d.Shape = regions.ShapePolygon
				d.Points = s.Points
			case len(s.Box) == 4:
				d.Shape = regions.ShapeRect
				copy(d.Box[:], s.Box)
			default:
				continue
			}
			dets = append(dets, d)
		}
		return dets, nil
	}

	var boxes boxesResponse
	if err := json.Unmarshal(raw, &boxes); err != nil {
		return nil, err
	}
	dets := make([]Detection, 0, len(boxes.Boxes))
	for i, b := range boxes.Boxes {
		if len(b) != 4 {
			continue
		}
		d := Detection{Shape: regions.ShapeRect}
		copy(d.Box[:], b)
		if i < len(boxes.Labels) {
			d.Class = boxes.Labels[i]
		}
		dets = append(dets, d)
	}
	return dets, nil
}
