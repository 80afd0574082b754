package annotations

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelscope/geometry"
	"labelscope/regions"
)

type cocoResult struct {
	Images []struct {
		ID       int    `json:"id"`
		FileName string `json:"file_name"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	} `json:"images"`
	Annotations []struct {
		ID           int         `json:"id"`
		ImageID      int         `json:"image_id"`
		Segmentation [][]float64 `json:"segmentation"`
		BBox         []float64   `json:"bbox"`
		Area         float64     `json:"area"`
		CategoryID   int         `json:"category_id"`
		IsCrowd      int         `json:"iscrowd"`
	} `json:"annotations"`
	Categories []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
}

func exportDocument(t *testing.T) *Document {
	t.Helper()
	doc := New()
	a := doc.EnsureFileEntry("a.jpg", 100)
	doc.EnsureFileEntry("empty.jpg", 50)
	poly := regions.NewPolygon("2", []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, regions.Attributes{Class: "figure"})
	require.NoError(t, doc.SyncRegions(a, []regions.Region{sampleRect("1", 5, 5, 10, 20), poly}))
	return doc
}

func runCOCO(t *testing.T, e *COCOExporter, doc *Document) cocoResult {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, e.Export(&buf, doc))
	var res cocoResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	return res
}

func TestCOCORectangle(t *testing.T) {
	doc := New()
	key := doc.EnsureFileEntry("a.jpg", 1)
	require.NoError(t, doc.SyncRegions(key, []regions.Region{sampleRect("1", 5, 5, 10, 20)}))

	res := runCOCO(t, &COCOExporter{}, doc)
	require.Len(t, res.Annotations, 1)
	ann := res.Annotations[0]
	assert.Equal(t, []float64{5, 5, 10, 20}, ann.BBox)
	assert.Equal(t, 200.0, ann.Area)
	assert.Equal(t, 1, ann.CategoryID)
	assert.Equal(t, 0, ann.IsCrowd)
	assert.Equal(t, 1, ann.ImageID)
	assert.Empty(t, ann.Segmentation)

	require.Len(t, res.Categories, 1)
	assert.Equal(t, "object", res.Categories[0].Name)
}

func TestCOCOPolygonsAndImages(t *testing.T) {
	res := runCOCO(t, &COCOExporter{}, exportDocument(t))

	require.Len(t, res.Images, 2)
	assert.Equal(t, 1, res.Images[0].ID)
	assert.Equal(t, "a.jpg", res.Images[0].FileName)
	assert.Equal(t, 2, res.Images[1].ID)

	require.Len(t, res.Annotations, 2)
	poly := res.Annotations[1]
	assert.Equal(t, 2, poly.ID)
	assert.Equal(t, [][]float64{{0, 0, 10, 0, 10, 10}}, poly.Segmentation)
	assert.Equal(t, []float64{0, 0, 10, 10}, poly.BBox)
	assert.Equal(t, 50.0, poly.Area)
}

func TestCOCORectanglesOnly(t *testing.T) {
	dims := func(name string) (int, int, bool) {
		if name == "a.jpg" {
			return 640, 480, true
		}
		return 0, 0, false
	}
	res := runCOCO(t, &COCOExporter{RectanglesOnly: true, Dimensions: dims}, exportDocument(t))

	require.Len(t, res.Annotations, 1)
	assert.Equal(t, []float64{5, 5, 10, 20}, res.Annotations[0].BBox)
	assert.Equal(t, 640, res.Images[0].Width)
	assert.Equal(t, 480, res.Images[0].Height)
	assert.Equal(t, 0, res.Images[1].Width)
}

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVExporter{}).Export(&buf, exportDocument(t)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"filename", "file_size", "file_attributes", "region_count", "region_id", "region_shape_attributes", "region_attributes"}, rows[0])

	assert.Equal(t, []string{"a.jpg", "100", "{}", "2", "1"}, rows[1][:5])
	assert.JSONEq(t, `{"name":"rect","x":5,"y":5,"width":10,"height":20}`, rows[1][5])
	assert.JSONEq(t, `{"class":"text","description":""}`, rows[1][6])
	assert.Equal(t, "2", rows[2][4])

	assert.Equal(t, []string{"empty.jpg", "50", "{}", "0", "", "", ""}, rows[3])
}

func TestJSONExportIsDocument(t *testing.T) {
	doc := exportDocument(t)
	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(&buf, doc))

	back, err := Load(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}

func TestNewExporter(t *testing.T) {
	for _, f := range GetAvailableFormats() {
		e, err := NewExporter(f)
		require.NoError(t, err)
		assert.NotEmpty(t, e.GetFileExtension())
		assert.NotEmpty(t, e.GetContentType())
	}
	_, err := NewExporter("xml")
	assert.Error(t, err)

	f, err := ParseFormat("COCO")
	require.NoError(t, err)
	assert.Equal(t, FormatCOCO, f)
	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}
