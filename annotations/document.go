// Package annotations keeps the durable annotation document in sync with the
// region store and exports it to interchange formats.
package annotations

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"

	"labelscope/geometry"
	"labelscope/regions"
)

var (
	ErrMalformedDocument = errors.New("malformed annotation document")
	ErrUnknownFile       = errors.New("unknown file key")
)

// File is one entry of the file table.
type File struct {
	Name string `json:"fname"`
	Size int64  `json:"size"`
}

// FileRef names an image currently present in the project.
type FileRef struct {
	Name string
	Size int64
}

// Metadata is one persisted region.
type Metadata struct {
	RegionID   string             `json:"region_id"`
	ImageID    string             `json:"image_id"`
	Shape      ShapeAttributes    `json:"shape_attributes"`
	Attributes regions.Attributes `json:"region_attributes"`
}

// Document is the persisted annotation state of a project.
type Document struct {
	Files    map[string]File     `json:"files"`
	Metadata map[string]Metadata `json:"metadata"`
}

func New() *Document {
	return &Document{Files: map[string]File{}, Metadata: map[string]Metadata{}}
}

// Load parses a document. Nothing is returned on invalid input; metadata
// that references a missing file key is dropped.
func Load(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Files == nil {
		doc.Files = map[string]File{}
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]Metadata{}
	}
	for key, meta := range doc.Metadata {
		if _, ok := doc.Files[meta.ImageID]; !ok {
			log.Warn(fmt.Sprintf("Dropping orphaned region %s of %s", key, meta.ImageID))
			delete(doc.Metadata, key)
			continue
		}
		if meta.RegionID == "" {
			meta.RegionID = key
			doc.Metadata[key] = meta
		}
	}
	return &doc, nil
}

// Marshal renders the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := New()
	for k, f := range d.Files {
		c.Files[k] = f
	}
	for k, m := range d.Metadata {
		m.Shape = m.Shape.clone()
		c.Metadata[k] = m
	}
	return c
}

// FileKeys returns the file keys in table order (file_1, file_2, ..., file_10).
func (d *Document) FileKeys() []string {
	keys := make([]string, 0, len(d.Files))
	for k := range d.Files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return naturalLess(keys[i], keys[j]) })
	return keys
}

// FileKey looks up the key of a file name.
func (d *Document) FileKey(name string) (string, bool) {
	for k, f := range d.Files {
		if f.Name == name {
			return k, true
		}
	}
	return "", false
}

// EnsureFileEntry returns the key of name, adding a file entry when there is none.
func (d *Document) EnsureFileEntry(name string, size int64) string {
	if key, ok := d.FileKey(name); ok {
		return key
	}
	key := d.nextKey(len(d.Files) + 1)
	d.Files[key] = File{Name: name, Size: size}
	return key
}

// RemoveFileAndRegions drops a file and every region that references it.
func (d *Document) RemoveFileAndRegions(name string) bool {
	key, ok := d.FileKey(name)
	if !ok {
		return false
	}
	files := make(map[string]File, len(d.Files))
	for k, f := range d.Files {
		if k != key {
			files[k] = f
		}
	}
	d.Files = files
	d.Metadata = d.metadataExcept(key)
	return true
}

// Resync rebuilds the file table from the images present. Files that remain
// keep their key and regions; new files get fresh keys; everything else is
// dropped.
func (d *Document) Resync(current []FileRef) {
	files := make(map[string]File, len(current))
	var fresh []FileRef
	for _, ref := range current {
		if key, ok := d.FileKey(ref.Name); ok {
			if _, dup := files[key]; !dup {
				files[key] = File{Name: ref.Name, Size: ref.Size}
			}
			continue
		}
		fresh = append(fresh, ref)
	}
	metadata := make(map[string]Metadata, len(d.Metadata))
	for k, m := range d.Metadata {
		if _, ok := files[m.ImageID]; ok {
			metadata[k] = m
		}
	}
	d.Files = files
	d.Metadata = metadata
	for _, ref := range fresh {
		d.EnsureFileEntry(ref.Name, ref.Size)
	}
}

// SyncRegions replaces the regions stored for a file with rs.
func (d *Document) SyncRegions(fileKey string, rs []regions.Region) error {
	if _, ok := d.Files[fileKey]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFile, fileKey)
	}
	metadata := d.metadataExcept(fileKey)
	for _, r := range rs {
		metadata[regionKey(fileKey, r.ID)] = Metadata{
			RegionID:   r.ID,
			ImageID:    fileKey,
			Shape:      shapeOf(r),
			Attributes: r.Attributes,
		}
	}
	d.Metadata = metadata
	return nil
}

// RegionsFor rebuilds the regions stored for a file, ordered by region id.
func (d *Document) RegionsFor(fileKey string) []regions.Region {
	metas := d.metadataFor(fileKey)
	out := make([]regions.Region, 0, len(metas))
	for _, m := range metas {
		r, ok := m.region()
		if !ok {
			log.Warn(fmt.Sprintf("Skipping region %s with unsupported shape %q", m.RegionID, m.Shape.Name))
			continue
		}
		out = append(out, r)
	}
	return out
}

// RegionCount returns how many regions reference fileKey.
func (d *Document) RegionCount(fileKey string) int {
	n := 0
	for _, m := range d.Metadata {
		if m.ImageID == fileKey {
			n++
		}
	}
	return n
}

func (d *Document) metadataFor(fileKey string) []Metadata {
	var out []Metadata
	for _, m := range d.Metadata {
		if m.ImageID == fileKey {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return naturalLess(out[i].RegionID, out[j].RegionID) })
	return out
}

func (d *Document) metadataExcept(fileKey string) map[string]Metadata {
	out := make(map[string]Metadata, len(d.Metadata))
	for k, m := range d.Metadata {
		if m.ImageID != fileKey {
			out[k] = m
		}
	}
	return out
}

func (d *Document) nextKey(n int) string {
	for {
		key := fmt.Sprintf("file_%d", n)
		if _, used := d.Files[key]; !used {
			return key
		}
		n++
	}
}

func regionKey(fileKey, regionID string) string {
	return fileKey + "_" + regionID
}

func (m Metadata) region() (regions.Region, bool) {
	switch m.Shape.Name {
	case string(regions.ShapeRect):
		rect := geometry.Rect{
			X:      float64(m.Shape.X),
			Y:      float64(m.Shape.Y),
			Width:  float64(m.Shape.Width),
			Height: float64(m.Shape.Height),
		}
		return regions.NewRect(m.RegionID, rect, m.Attributes), true
	case string(regions.ShapePolygon):
		return regions.NewPolygon(m.RegionID, m.Shape.Points(), m.Attributes), true
	}
	return regions.Region{}, false
}

func shapeOf(r regions.Region) ShapeAttributes {
	if r.Shape == regions.ShapePolygon {
		s := ShapeAttributes{Name: string(regions.ShapePolygon)}
		for _, p := range r.Points {
			s.AllPointsX = append(s.AllPointsX, round(p.X))
			s.AllPointsY = append(s.AllPointsY, round(p.Y))
		}
		return s
	}
	return ShapeAttributes{
		Name:   string(regions.ShapeRect),
		X:      round(r.Rect.X),
		Y:      round(r.Rect.Y),
		Width:  round(r.Rect.Width),
		Height: round(r.Rect.Height),
	}
}

func round(v float64) int {
	return int(math.Round(v))
}

// naturalLess orders keys by prefix, then by numeric suffix.
func naturalLess(a, b string) bool {
	pa, na, oka := splitNumber(a)
	pb, nb, okb := splitNumber(b)
	if oka && okb && pa == pb && na != nb {
		return na < nb
	}
	return a < b
}

func splitNumber(s string) (string, int64, bool) {
	prefix := strings.TrimRightFunc(s, unicode.IsDigit)
	n, err := strconv.ParseInt(s[len(prefix):], 10, 64)
	return prefix, n, err == nil
}
