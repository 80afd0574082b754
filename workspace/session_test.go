package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelscope/annotations"
	"labelscope/autolabel"
	"labelscope/editor"
	"labelscope/geometry"
	"labelscope/images"
	"labelscope/interaction"
	"labelscope/regions"
	"labelscope/utils"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := utils.ImageToPngBuffer(image.NewRGBA(image.Rect(0, 0, w, h)))
	require.NoError(t, err)
	return data
}

func readySession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("p1")
	results := s.Upload([]Upload{
		{Name: "a.png", Data: pngBytes(t, 4, 3)},
		{Name: "b.png", Data: pngBytes(t, 8, 6)},
	})
	for _, r := range results {
		require.True(t, r.Added)
		require.Empty(t, r.Error)
	}
	require.NoError(t, s.SelectImage("a.png"))
	return s
}

func drawRect(t *testing.T, s *Session, from, to geometry.Point) regions.Region {
	t.Helper()
	require.NoError(t, s.SetTool(interaction.ToolRect))
	require.NoError(t, s.Dispatch(interaction.PointerDown{Screen: from}))
	require.NoError(t, s.Dispatch(interaction.PointerMove{Screen: to}))
	require.NoError(t, s.Dispatch(interaction.PointerUp{}))
	rs, err := s.Regions("")
	require.NoError(t, err)
	require.NotEmpty(t, rs)
	return rs[len(rs)-1]
}

func TestUpload(t *testing.T) {
	s := NewSession("p1")
	results := s.Upload([]Upload{
		{Name: "a.png", Data: pngBytes(t, 4, 3)},
		{Name: "broken.png", Data: []byte("not an image")},
		{Name: "a.png", Data: pngBytes(t, 4, 3)},
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].Added)
	assert.Empty(t, results[0].Error)
	assert.False(t, results[1].Added, "undecodable images are dropped")
	assert.NotEmpty(t, results[1].Error)
	assert.False(t, results[2].Added, "duplicate names are ignored")

	all := s.Images(images.FilterAll, "")
	require.Len(t, all, 1)
	assert.Equal(t, "a.png", all[0].Name)
	assert.True(t, all[0].Ready)
	assert.Equal(t, 4, all[0].Width)
	assert.Empty(t, s.DeletedImages())

	assert.ErrorIs(t, s.SelectImage("broken.png"), images.ErrImageNotFound)
	assert.ErrorIs(t, s.SelectImage("missing.png"), images.ErrImageNotFound)
	assert.NoError(t, s.SelectImage("a.png"))

	doc := s.Document()
	assert.Len(t, doc.Files, 1)
	_, ok := doc.FileKey("broken.png")
	assert.False(t, ok)
}

func TestDrawSyncsDocument(t *testing.T) {
	s := readySession(t)
	_, err := s.AddClass("text")
	require.NoError(t, err)

	r := drawRect(t, s, geometry.Point{X: 10, Y: 10}, geometry.Point{X: 50, Y: 40})
	assert.Equal(t, geometry.Rect{X: 10, Y: 10, Width: 40, Height: 30}, r.Rect)
	assert.Equal(t, "text", r.Attributes.Class)

	doc := s.Document()
	require.Len(t, doc.Metadata, 1)
	key, ok := doc.FileKey("a.png")
	require.True(t, ok)
	assert.Equal(t, []regions.Region{r}, doc.RegionsFor(key))

	unannotated := s.Images(images.FilterUnannotated, "")
	require.Len(t, unannotated, 1)
	assert.Equal(t, "b.png", unannotated[0].Name)

	snap := s.Snapshot()
	assert.Equal(t, "a.png", snap.Image)
	assert.Equal(t, interaction.ToolRect, snap.Tool)
	assert.Equal(t, "text", snap.ActiveClass)
	assert.Len(t, snap.Regions, 1)
}

func TestDrawWithoutClass(t *testing.T) {
	s := readySession(t)
	require.NoError(t, s.SetTool(interaction.ToolRect))
	require.NoError(t, s.Dispatch(interaction.PointerDown{Screen: geometry.Point{X: 10, Y: 10}}))
	require.NoError(t, s.Dispatch(interaction.PointerMove{Screen: geometry.Point{X: 50, Y: 40}}))
	assert.ErrorIs(t, s.Dispatch(interaction.PointerUp{}), interaction.ErrNoClassSelected)

	rs, err := s.Regions("")
	require.NoError(t, err)
	assert.Empty(t, rs)
	assert.Empty(t, s.Document().Metadata)
}

func TestEditAndDeleteRegion(t *testing.T) {
	s := readySession(t)
	_, err := s.AddClass("text")
	require.NoError(t, err)
	r := drawRect(t, s, geometry.Point{X: 10, Y: 10}, geometry.Point{X: 50, Y: 40})

	desc := "title block"
	edited, err := s.EditRegion(r.ID, nil, &desc)
	require.NoError(t, err)
	assert.Equal(t, "text", edited.Attributes.Class)
	assert.Equal(t, "title block", edited.Attributes.Description)
	assert.Empty(t, s.Snapshot().Selected, "saving closes the editor")

	unknown := "figure"
	_, err = s.EditRegion(r.ID, &unknown, nil)
	assert.ErrorIs(t, err, editor.ErrUnknownClass)

	doc := s.Document()
	for _, m := range doc.Metadata {
		assert.Equal(t, "title block", m.Attributes.Description)
	}

	require.NoError(t, s.DeleteRegion(r.ID))
	assert.Empty(t, s.Document().Metadata)
	assert.Len(t, s.Images(images.FilterUnannotated, ""), 2)
	assert.ErrorIs(t, s.DeleteRegion(r.ID), regions.ErrRegionNotFound)
}

func TestRenameClassRelabelsRegions(t *testing.T) {
	s := readySession(t)
	_, err := s.AddClass("text")
	require.NoError(t, err)
	r := drawRect(t, s, geometry.Point{X: 10, Y: 10}, geometry.Point{X: 50, Y: 40})

	c, err := s.RenameClass("TEXT", "body")
	require.NoError(t, err)
	assert.Equal(t, "body", c.Name)

	rs, err := s.Regions("a.png")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, r.ID, rs[0].ID)
	assert.Equal(t, "body", rs[0].Attributes.Class)
	for _, m := range s.Document().Metadata {
		assert.Equal(t, "body", m.Attributes.Class)
	}

	_, err = s.RenameClass("nope", "x")
	assert.ErrorIs(t, err, editor.ErrUnknownClass)

	require.NoError(t, s.RemoveClass("body"))
	rs, _ = s.Regions("a.png")
	assert.Equal(t, "body", rs[0].Attributes.Class, "regions keep their label")
}

func TestRemoveImage(t *testing.T) {
	s := readySession(t)
	_, err := s.AddClass("text")
	require.NoError(t, err)
	drawRect(t, s, geometry.Point{X: 10, Y: 10}, geometry.Point{X: 50, Y: 40})

	require.NoError(t, s.RemoveImage("a.png"))
	assert.Empty(t, s.Snapshot().Image)
	assert.Equal(t, []string{"a.png"}, s.DeletedImages())
	assert.Empty(t, s.Document().Metadata)
	_, ok := s.Document().FileKey("a.png")
	assert.False(t, ok)
	assert.ErrorIs(t, s.RemoveImage("a.png"), images.ErrImageNotFound)
}

func TestImport(t *testing.T) {
	s := readySession(t)

	assert.ErrorIs(t, s.Import([]byte("{")), annotations.ErrMalformedDocument)
	assert.Len(t, s.Document().Files, 2)

	doc := `{
  "files": {"file_1": {"fname": "a.png", "size": 10}, "file_2": {"fname": "c.png", "size": 5}},
  "metadata": {
    "file_1_7": {"region_id": "7", "image_id": "file_1",
      "shape_attributes": {"name": "rect", "x": 1, "y": 2, "width": 20, "height": 30},
      "region_attributes": {"class": "x", "description": ""}}
  }
}`
	require.NoError(t, s.Import([]byte(doc)))

	rs, err := s.Regions("a.png")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "7", rs[0].ID)
	assert.Equal(t, "a.png", s.Snapshot().Image, "active image stays selected")

	names := make([]string, 0)
	for _, img := range s.Images(images.FilterAll, "") {
		names = append(names, img.Name)
	}
	assert.ElementsMatch(t, []string{"a.png", "b.png", "c.png"}, names)
	assert.ErrorIs(t, s.SelectImage("c.png"), images.ErrImageNotReady)
	assert.Len(t, s.Document().Files, 3)
}

func TestImportSkipsDeletedImages(t *testing.T) {
	s := readySession(t)
	require.NoError(t, s.RemoveImage("b.png"))

	doc := `{"files": {"file_1": {"fname": "b.png", "size": 1}},
"metadata": {"file_1_1": {"region_id": "1", "image_id": "file_1",
"shape_attributes": {"name": "rect", "x": 0, "y": 0, "width": 10, "height": 10},
"region_attributes": {"class": "x", "description": ""}}}}`
	require.NoError(t, s.Import([]byte(doc)))

	all := s.Images(images.FilterAll, "")
	require.Len(t, all, 1)
	assert.Equal(t, "a.png", all[0].Name)
	got := s.Document()
	assert.Len(t, got.Files, 1)
	assert.Empty(t, got.Metadata)
}

func TestExport(t *testing.T) {
	s := readySession(t)
	_, err := s.AddClass("text")
	require.NoError(t, err)
	drawRect(t, s, geometry.Point{X: 10, Y: 10}, geometry.Point{X: 50, Y: 40})

	var csv bytes.Buffer
	require.NoError(t, s.Export(&csv, annotations.FormatCSV))
	assert.Contains(t, csv.String(), "a.png")
	assert.Contains(t, csv.String(), "b.png")

	var coco bytes.Buffer
	require.NoError(t, s.Export(&coco, annotations.FormatCOCO))
	var out struct {
		Images []struct {
			FileName string `json:"file_name"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(coco.Bytes(), &out))
	require.Len(t, out.Images, 2)
	assert.Equal(t, "a.png", out.Images[0].FileName)
	assert.Equal(t, 4, out.Images[0].Width)
	assert.Equal(t, 3, out.Images[0].Height)

	assert.Error(t, s.Export(&bytes.Buffer{}, annotations.Format("xml")))
}

type fakeDetector struct {
	req  autolabel.Request
	dets []autolabel.Detection
	err  error
}

func (f *fakeDetector) Detect(_ context.Context, req autolabel.Request) ([]autolabel.Detection, error) {
	f.req = req
	return f.dets, f.err
}

func TestAutoLabel(t *testing.T) {
	s := NewSession("p1")
	det := &fakeDetector{dets: []autolabel.Detection{
		{Shape: regions.ShapeRect, Box: [4]float64{0, 0, 20, 20}},
		{Shape: regions.ShapeRect, Box: [4]float64{10, 10, 5, 5}},
	}}
	_, err := s.AutoLabel(context.Background(), det)
	assert.ErrorIs(t, err, ErrNoActiveImage)

	data := pngBytes(t, 4, 3)
	s.Upload([]Upload{{Name: "a.png", Data: data}})
	require.NoError(t, s.SelectImage("a.png"))

	added, err := s.AutoLabel(context.Background(), det)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, autolabel.DefaultClass, added[0].Attributes.Class)
	assert.Equal(t, "a.png", det.req.Filename)
	assert.Equal(t, data, det.req.Data)
	assert.Len(t, s.Document().Metadata, 1)

	det.err = autolabel.ErrDetectorFailed
	_, err = s.AutoLabel(context.Background(), det)
	assert.ErrorIs(t, err, autolabel.ErrDetectorFailed)
	rs, _ := s.Regions("")
	assert.Len(t, rs, 1)
}

func TestRestore(t *testing.T) {
	doc := annotations.New()
	key := doc.EnsureFileEntry("a.png", 10)
	region := regions.NewRect("1", geometry.Rect{X: 0, Y: 0, Width: 10, Height: 10}, regions.Attributes{Class: "x"})
	require.NoError(t, doc.SyncRegions(key, []regions.Region{region}))

	s := Restore("p1", doc, []string{"x", "y"})
	assert.Len(t, s.Classes(), 2)
	assert.ErrorIs(t, s.SelectImage("a.png"), images.ErrImageNotReady)

	results := s.Upload([]Upload{{Name: "a.png", Data: pngBytes(t, 4, 3)}})
	require.True(t, results[0].Added, "restored images accept their data")
	require.NoError(t, s.SelectImage("a.png"))

	rs, err := s.Regions("")
	require.NoError(t, err)
	assert.Equal(t, []regions.Region{region}, rs)
	assert.True(t, s.Images(images.FilterAll, "")[0].Annotated)
}

type fakeFlusher struct {
	flushed map[string]*annotations.Document
	classes map[string][]editor.Class
	err     error
	onFlush func(project string)
}

func newFakeFlusher() *fakeFlusher {
	return &fakeFlusher{flushed: map[string]*annotations.Document{}, classes: map[string][]editor.Class{}}
}

func (f *fakeFlusher) Flush(project string, doc *annotations.Document, classes []editor.Class) error {
	if f.onFlush != nil {
		f.onFlush(project)
	}
	if f.err != nil {
		return f.err
	}
	f.flushed[project] = doc
	f.classes[project] = classes
	return nil
}

func TestFlush(t *testing.T) {
	s := readySession(t)
	_, err := s.AddClass("text")
	require.NoError(t, err)
	drawRect(t, s, geometry.Point{X: 10, Y: 10}, geometry.Point{X: 50, Y: 40})

	f := newFakeFlusher()
	require.NoError(t, s.Flush(f))
	assert.Equal(t, s.Document(), f.flushed["p1"])
	assert.Equal(t, []editor.Class{{Name: "text", Ordinal: 1}}, f.classes["p1"])

	f.err = errors.New("disk full")
	assert.Error(t, s.Flush(f))
}
