package autolabel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"
	log "github.com/sirupsen/logrus"

	"labelscope/regions"
	"labelscope/utils"
)

const defaultPrompt = `Find every distinct object or text block in this image.
Answer with JSON only, in the form
{"objects": [{"label": "short name", "description": "visible text or details", "box": [x1, y1, x2, y2]}]}
where box coordinates are fractions of the image width and height between 0 and 1.`

// OllamaDetector asks an Ollama vision model for bounding boxes.
type OllamaDetector struct {
	client *api.Client
	Model  string
	Prompt string
	// MaxDimension bounds the longer side of the uploaded image.
	MaxDimension int
	Timeout      time.Duration
}

type ollamaAnswer struct {
	Objects []struct {
		Label       string    `json:"label"`
		Description string    `json:"description"`
		Box         []float64 `json:"box"`
	} `json:"objects"`
}

// NewOllamaDetector creates a detector talking to the Ollama server at rawURL.
func NewOllamaDetector(rawURL, model string) (*OllamaDetector, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaDetector{
		client:       api.NewClient(base, http.DefaultClient),
		Model:        model,
		Prompt:       defaultPrompt,
		MaxDimension: 1024,
		Timeout:      300 * time.Second,
	}, nil
}

func (d *OllamaDetector) Detect(ctx context.Context, req Request) ([]Detection, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	img, err := imaging.Decode(bytes.NewReader(req.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", req.Filename, err)
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if d.MaxDimension > 0 && (width > d.MaxDimension || height > d.MaxDimension) {
		if width >= height {
			img = imaging.Resize(img, d.MaxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, d.MaxDimension, imaging.Lanczos)
		}
	}
	payload, err := utils.ImageToJpgBuffer(img, &jpeg.Options{Quality: 90})
	if err != nil {
		return nil, err
	}

	streamFalse := false
	chat := &api.ChatRequest{
		Model: d.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: d.Prompt,
				Images:  []api.ImageData{api.ImageData(payload)},
			},
		},
		Stream:  &streamFalse,
		Options: map[string]any{"temperature": 0.1},
	}

	log.Info(fmt.Sprintf("Asking %s for detections on %s (%dx%d)", d.Model, req.Filename, width, height))
	var content string
	err = d.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama chat error: %v", ErrDetectorFailed, err)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty response from ollama", ErrDetectorFailed)
	}

	var answer ollamaAnswer
	if err := json.Unmarshal([]byte(sanitizeModelJSON(content)), &answer); err != nil {
		return nil, fmt.Errorf("%w: unparseable model answer: %v", ErrDetectorFailed, err)
	}

	dets := make([]Detection, 0, len(answer.Objects))
	for _, o := range answer.Objects {
		if len(o.Box) != 4 {
			continue
		}
		dets = append(dets, Detection{
			Shape: regions.ShapeRect,
			Box: [4]float64{
				clamp01(o.Box[0]) * float64(width),
				clamp01(o.Box[1]) * float64(height),
				clamp01(o.Box[2]) * float64(width),
				clamp01(o.Box[3]) * float64(height),
			},
			Class:       o.Label,
			Description: o.Description,
		})
	}
	return dets, nil
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments and trailing commas and
// keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
