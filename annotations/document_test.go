package annotations

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelscope/geometry"
	"labelscope/regions"
)

func sampleRect(id string, x, y, w, h float64) regions.Region {
	return regions.NewRect(id, geometry.Rect{X: x, Y: y, Width: w, Height: h}, regions.Attributes{Class: "text"})
}

func TestEnsureFileEntryIsIdempotent(t *testing.T) {
	doc := New()
	assert.Equal(t, "file_1", doc.EnsureFileEntry("a.jpg", 10))
	assert.Equal(t, "file_2", doc.EnsureFileEntry("b.jpg", 20))
	assert.Equal(t, "file_1", doc.EnsureFileEntry("a.jpg", 99))
	assert.Len(t, doc.Files, 2)
	assert.Equal(t, int64(10), doc.Files["file_1"].Size)
}

func TestEnsureFileEntrySkipsUsedKeys(t *testing.T) {
	doc := New()
	doc.EnsureFileEntry("a.jpg", 1)
	doc.EnsureFileEntry("b.jpg", 1)
	require.True(t, doc.RemoveFileAndRegions("a.jpg"))

	assert.Equal(t, "file_3", doc.EnsureFileEntry("c.jpg", 1), "file_2 is still taken")
}

func TestRemoveFileAndRegions(t *testing.T) {
	doc := New()
	a := doc.EnsureFileEntry("a.jpg", 1)
	b := doc.EnsureFileEntry("b.jpg", 1)
	require.NoError(t, doc.SyncRegions(a, []regions.Region{sampleRect("1", 0, 0, 10, 10), sampleRect("2", 5, 5, 10, 10)}))
	require.NoError(t, doc.SyncRegions(b, []regions.Region{sampleRect("3", 0, 0, 10, 10)}))

	assert.True(t, doc.RemoveFileAndRegions("a.jpg"))
	assert.False(t, doc.RemoveFileAndRegions("a.jpg"))

	doc.Resync([]FileRef{{Name: "b.jpg", Size: 1}})
	for _, m := range doc.Metadata {
		assert.NotEqual(t, a, m.ImageID)
	}
	assert.Equal(t, 1, doc.RegionCount(b))
}

func TestResyncPreservesRemainingImages(t *testing.T) {
	doc := New()
	a := doc.EnsureFileEntry("a.jpg", 1)
	b := doc.EnsureFileEntry("b.jpg", 2)
	require.NoError(t, doc.SyncRegions(a, []regions.Region{sampleRect("1", 0, 0, 10, 10)}))
	require.NoError(t, doc.SyncRegions(b, []regions.Region{sampleRect("2", 0, 0, 10, 10)}))

	doc.Resync([]FileRef{{Name: "b.jpg", Size: 2}, {Name: "c.jpg", Size: 3}})

	assert.Equal(t, []string{"file_2", "file_3"}, doc.FileKeys())
	assert.Equal(t, "c.jpg", doc.Files["file_3"].Name)
	require.Len(t, doc.RegionsFor(b), 1)
	assert.Equal(t, "2", doc.RegionsFor(b)[0].ID)
	assert.Zero(t, doc.RegionCount(a))
}

func TestSyncRegionsRoundsAndRoundTrips(t *testing.T) {
	doc := New()
	key := doc.EnsureFileEntry("a.jpg", 1)
	poly := regions.NewPolygon("p", []geometry.Point{{X: 0.4, Y: 0}, {X: 10.6, Y: 0}, {X: 10, Y: 9.5}}, regions.Attributes{Class: "figure", Description: "chart"})
	require.NoError(t, doc.SyncRegions(key, []regions.Region{sampleRect("r", 1.2, 2.7, 10.5, 20), poly}))

	got := doc.RegionsFor(key)
	require.Len(t, got, 2)
	byID := map[string]regions.Region{got[0].ID: got[0], got[1].ID: got[1]}
	assert.Equal(t, geometry.Rect{X: 1, Y: 3, Width: 11, Height: 20}, byID["r"].Rect)
	assert.Equal(t, []geometry.Point{{X: 0, Y: 0}, {X: 11, Y: 0}, {X: 10, Y: 10}}, byID["p"].Points)
	assert.Equal(t, regions.Attributes{Class: "figure", Description: "chart"}, byID["p"].Attributes)

	require.NoError(t, doc.SyncRegions(key, nil))
	assert.Zero(t, doc.RegionCount(key))
	assert.ErrorIs(t, doc.SyncRegions("file_9", nil), ErrUnknownFile)
}

func TestRegionsForOrdersByID(t *testing.T) {
	doc := New()
	key := doc.EnsureFileEntry("a.jpg", 1)
	require.NoError(t, doc.SyncRegions(key, []regions.Region{sampleRect("10", 0, 0, 10, 10), sampleRect("9", 0, 0, 10, 10)}))

	got := doc.RegionsFor(key)
	assert.Equal(t, "9", got[0].ID)
	assert.Equal(t, "10", got[1].ID)
}

func TestShapeAttributesJSON(t *testing.T) {
	doc := New()
	key := doc.EnsureFileEntry("a.jpg", 1)
	poly := regions.NewPolygon("p", []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, regions.Attributes{})
	require.NoError(t, doc.SyncRegions(key, []regions.Region{sampleRect("r", 5, 5, 10, 20), poly}))

	rect, err := json.Marshal(doc.Metadata[key+"_r"].Shape)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"rect","x":5,"y":5,"width":10,"height":20}`, string(rect))

	polygon, err := json.Marshal(doc.Metadata[key+"_p"].Shape)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"polygon","all_points_x":[0,10,10],"all_points_y":[0,0,10]}`, string(polygon))
}

func TestLoad(t *testing.T) {
	data := []byte(`{
		"files": {"file_1": {"fname": "a.jpg", "size": 100}},
		"metadata": {
			"1712": {"region_id": 1712, "image_id": "file_1",
				"shape_attributes": {"name": "rect", "x": 5.4, "y": 5, "width": 10, "height": 20},
				"region_attributes": {"class": "text", "description": ""}},
			"orphan": {"region_id": "x", "image_id": "file_7",
				"shape_attributes": {"name": "rect", "x": 0, "y": 0, "width": 10, "height": 10},
				"region_attributes": {"class": "", "description": ""}}
		}
	}`)
	doc, err := Load(data)
	require.NoError(t, err)

	require.Len(t, doc.Metadata, 1)
	got := doc.RegionsFor("file_1")
	require.Len(t, got, 1)
	assert.Equal(t, "1712", got[0].ID)
	assert.Equal(t, geometry.Rect{X: 5, Y: 5, Width: 10, Height: 20}, got[0].Rect)
}

func TestLoadMalformed(t *testing.T) {
	for _, data := range []string{
		`{"files": `,
		`[1, 2]`,
		`{"files": {}, "metadata": {"a": {"image_id": "f", "shape_attributes": {"name": "polygon", "all_points_x": [1, 2, 3], "all_points_y": [1]}}}}`,
	} {
		_, err := Load([]byte(data))
		assert.ErrorIs(t, err, ErrMalformedDocument, data)
	}
}

func TestLoadEmptyObject(t *testing.T) {
	doc, err := Load([]byte(`{}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Files)
	assert.NotNil(t, doc.Metadata)
}

func TestCloneIsDeep(t *testing.T) {
	doc := New()
	key := doc.EnsureFileEntry("a.jpg", 1)
	poly := regions.NewPolygon("p", []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, regions.Attributes{})
	require.NoError(t, doc.SyncRegions(key, []regions.Region{poly}))

	c := doc.Clone()
	c.Metadata[key+"_p"].Shape.AllPointsX[0] = 99
	c.EnsureFileEntry("b.jpg", 1)

	assert.Equal(t, 0, doc.Metadata[key+"_p"].Shape.AllPointsX[0])
	assert.Len(t, doc.Files, 1)
}
