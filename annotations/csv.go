package annotations

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

// CSVHeader is the column layout shared by the CSV export and the preview.
var CSVHeader = []string{
	"filename",
	"file_size",
	"file_attributes",
	"region_count",
	"region_id",
	"region_shape_attributes",
	"region_attributes",
}

// CSVExporter writes one row per region, or a single row with empty region
// columns for a file without regions.
type CSVExporter struct{}

func (e *CSVExporter) Export(w io.Writer, doc *Document) error {
	rows, err := Preview(doc)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func (e *CSVExporter) GetFileExtension() string { return ".csv" }
func (e *CSVExporter) GetContentType() string   { return "text/csv; charset=utf-8" }

// Preview flattens the document into the CSV row table, without the header.
func Preview(doc *Document) ([][]string, error) {
	var rows [][]string
	for _, key := range doc.FileKeys() {
		file := doc.Files[key]
		size := strconv.FormatInt(file.Size, 10)
		metas := doc.metadataFor(key)
		if len(metas) == 0 {
			rows = append(rows, []string{file.Name, size, "{}", "0", "", "", ""})
			continue
		}
		count := strconv.Itoa(len(metas))
		for _, m := range metas {
			shape, err := json.Marshal(m.Shape)
			if err != nil {
				return nil, err
			}
			attrs, err := json.Marshal(m.Attributes)
			if err != nil {
				return nil, err
			}
			rows = append(rows, []string{file.Name, size, "{}", count, m.RegionID, string(shape), string(attrs)})
		}
	}
	return rows, nil
}
