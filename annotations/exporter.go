package annotations

import (
	"fmt"
	"io"
	"strings"
)

// Format represents an export format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatCOCO Format = "coco"
)

// Exporter writes a document in one interchange format.
type Exporter interface {
	Export(w io.Writer, doc *Document) error
	// GetFileExtension returns the recommended file extension for this format
	GetFileExtension() string
	GetContentType() string
}

// NewExporter creates an exporter for the specified format
func NewExporter(format Format) (Exporter, error) {
	switch format {
	case FormatJSON:
		return &JSONExporter{}, nil
	case FormatCSV:
		return &CSVExporter{}, nil
	case FormatCOCO:
		return &COCOExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ParseFormat converts a string to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "coco", "coco.json":
		return FormatCOCO, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// GetAvailableFormats returns a list of all available export formats
func GetAvailableFormats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatCOCO}
}

// JSONExporter writes the document unchanged.
type JSONExporter struct{}

func (e *JSONExporter) Export(w io.Writer, doc *Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (e *JSONExporter) GetFileExtension() string { return ".json" }
func (e *JSONExporter) GetContentType() string   { return "application/json" }
