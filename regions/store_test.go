package regions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelscope/geometry"
)

func rect(id string, x, y, w, h float64) Region {
	return NewRect(id, geometry.Rect{X: x, Y: y, Width: w, Height: h}, Attributes{})
}

func TestStoreAddFind(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add("a.jpg", rect("1", 0, 0, 10, 10)))
	require.NoError(t, s.Add("b.jpg", rect("2", 0, 0, 10, 10)))

	r, ok := s.Find("a.jpg", "1")
	assert.True(t, ok)
	assert.Equal(t, ShapeRect, r.Shape)

	_, ok = s.Find("a.jpg", "2")
	assert.False(t, ok, "regions are scoped to their image bucket")
	assert.Equal(t, 1, s.Count("b.jpg"))
}

func TestStoreAddRejects(t *testing.T) {
	s := NewStore()
	assert.ErrorIs(t, s.Add("a.jpg", rect("1", 0, 0, 4, 10)), ErrDegenerateRegion)
	assert.ErrorIs(t, s.Add("a.jpg", NewPolygon("p", []geometry.Point{{0, 0}, {1, 1}}, Attributes{})), ErrDegenerateRegion)

	require.NoError(t, s.Add("a.jpg", rect("1", 0, 0, 5, 5)))
	assert.ErrorIs(t, s.Add("a.jpg", rect("1", 0, 0, 5, 5)), ErrDuplicateRegion)
	assert.Equal(t, 1, s.Count("a.jpg"))
}

func TestStoreUpdateIsFullReplacement(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add("a.jpg", NewPolygon("p", []geometry.Point{{0, 0}, {10, 0}, {10, 10}}, Attributes{Class: "text"})))

	before, _ := s.Find("a.jpg", "p")
	updated, err := s.Update("a.jpg", "p", func(prev Region) Region {
		prev.Points[0] = geometry.Point{X: -5, Y: -5}
		prev.ID = "hijacked"
		prev.Attributes.Description = "title"
		return prev
	})
	require.NoError(t, err)

	assert.Equal(t, "p", updated.ID)
	assert.Equal(t, geometry.Point{X: -5, Y: -5}, updated.Points[0])
	assert.Equal(t, "title", updated.Attributes.Description)
	assert.Equal(t, geometry.Point{X: 0, Y: 0}, before.Points[0], "earlier snapshots are not affected")

	_, err = s.Update("a.jpg", "missing", func(r Region) Region { return r })
	assert.ErrorIs(t, err, ErrRegionNotFound)
}

func TestStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add("a.jpg", NewPolygon("p", []geometry.Point{{0, 0}, {10, 0}, {10, 10}}, Attributes{})))

	snap := s.Regions("a.jpg")
	snap[0].Points[1] = geometry.Point{X: 99, Y: 99}

	r, _ := s.Find("a.jpg", "p")
	assert.Equal(t, geometry.Point{X: 10, Y: 0}, r.Points[1])
}

func TestStoreDeleteAndLast(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add("a.jpg", rect("1", 0, 0, 10, 10)))
	require.NoError(t, s.Add("a.jpg", rect("2", 20, 20, 10, 10)))

	last, ok := s.Last("a.jpg")
	require.True(t, ok)
	assert.Equal(t, "2", last.ID)

	require.NoError(t, s.Delete("a.jpg", "2"))
	last, _ = s.Last("a.jpg")
	assert.Equal(t, "1", last.ID)
	assert.ErrorIs(t, s.Delete("a.jpg", "2"), ErrRegionNotFound)

	_, ok = s.Last("empty.jpg")
	assert.False(t, ok)
}

func TestStoreRevision(t *testing.T) {
	s := NewStore()
	rev := s.Revision()
	require.NoError(t, s.Add("a.jpg", rect("1", 0, 0, 10, 10)))
	assert.Greater(t, s.Revision(), rev)

	rev = s.Revision()
	_ = s.Add("a.jpg", rect("x", 0, 0, 1, 1))
	assert.Equal(t, rev, s.Revision(), "rejected mutations do not bump the revision")

	s.DropImage("a.jpg")
	assert.Greater(t, s.Revision(), rev)
	assert.Zero(t, s.Count("a.jpg"))
}

func TestStoreReplaceDropsInvalid(t *testing.T) {
	s := NewStore()
	s.Replace("a.jpg", []Region{rect("1", 0, 0, 10, 10), rect("2", 0, 0, 1, 1), rect("1", 5, 5, 10, 10)})

	got := s.Regions("a.jpg")
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Rect.X)
	assert.Equal(t, []string{"a.jpg"}, s.Images())
}

func TestRegionContainsAndTranslate(t *testing.T) {
	poly := NewPolygon("p", []geometry.Point{{0, 0}, {10, 0}, {10, 10}}, Attributes{})
	assert.True(t, poly.Contains(geometry.Point{X: 5, Y: 5}))
	assert.False(t, poly.Contains(geometry.Point{X: 20, Y: 20}))

	moved := poly.Translate(geometry.Point{X: 10, Y: 10})
	assert.Equal(t, geometry.Point{X: 10, Y: 10}, moved.Points[0])
	assert.Equal(t, geometry.Point{X: 0, Y: 0}, poly.Points[0])
	assert.Equal(t, geometry.Rect{X: 10, Y: 10, Width: 10, Height: 10}, moved.Bounds())
}

func TestIDGeneratorMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := &IDGenerator{now: func() time.Time { return fixed }}

	a, b, c := g.Next(), g.Next(), g.Next()
	assert.Equal(t, "1700000000000000", a)
	assert.Equal(t, "1700000000000001", b)
	assert.Equal(t, "1700000000000002", c)

	fixed = fixed.Add(time.Millisecond)
	assert.Equal(t, "1700000000001000", g.Next())
}
