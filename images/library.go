// Package images tracks the images of a project and decodes their headers.
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"labelscope/utils"
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrImageNotReady    = errors.New("image is still decoding")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Filter selects which images a listing shows.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterUnannotated Filter = "unannotated"
)

// ParseFilter defaults to FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(s)) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterUnannotated:
		return FilterUnannotated, nil
	}
	return "", fmt.Errorf("unknown filter: %s", s)
}

// Info is what decoding an image header yields.
type Info struct {
	Format  string `json:"format"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	DataURL string `json:"-"`
}

// Image is one image of a project.
type Image struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Format    string `json:"format,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	DataURL   string `json:"-"`
	Ready     bool   `json:"ready"`
	Annotated bool   `json:"annotated"`
}

// Decode reads the format and dimensions of an encoded image and wraps the
// payload in a data url. Pixels are not decoded.
func Decode(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return Info{
		Format:  format,
		Width:   cfg.Width,
		Height:  cfg.Height,
		DataURL: utils.DataURL(utils.MimeType(format), data),
	}, nil
}

// Library is the ordered image list of a project. It is not safe for
// concurrent use.
type Library struct {
	images  []*Image
	deleted map[string]bool
}

func NewLibrary() *Library {
	return &Library{deleted: map[string]bool{}}
}

// Add registers an image that still has to be decoded. Names already present
// are ignored.
func (l *Library) Add(name string, size int64) bool {
	if l.find(name) != nil {
		log.Debug(fmt.Sprintf("Skipping duplicate image %s", name))
		return false
	}
	delete(l.deleted, name)
	l.images = append(l.images, &Image{Name: name, Size: size})
	return true
}

// MarkReady stores the decode result and makes the image selectable.
func (l *Library) MarkReady(name string, info Info) error {
	img := l.find(name)
	if img == nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	img.Format = info.Format
	img.Width = info.Width
	img.Height = info.Height
	img.DataURL = info.DataURL
	img.Ready = true
	return nil
}

func (l *Library) Get(name string) (Image, bool) {
	if img := l.find(name); img != nil {
		return *img, true
	}
	return Image{}, false
}

// Selectable reports why an image cannot be drawn on yet.
func (l *Library) Selectable(name string) error {
	img := l.find(name)
	if img == nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	if !img.Ready {
		return fmt.Errorf("%w: %s", ErrImageNotReady, name)
	}
	return nil
}

// Remove drops an image and remembers its name as deleted.
func (l *Library) Remove(name string) bool {
	if !l.Discard(name) {
		return false
	}
	l.deleted[name] = true
	return true
}

// Discard drops an image without recording it as deleted.
func (l *Library) Discard(name string) bool {
	for i, img := range l.images {
		if img.Name == name {
			l.images = append(l.images[:i:i], l.images[i+1:]...)
			return true
		}
	}
	return false
}

// Deleted returns the names removed from the library, sorted.
func (l *Library) Deleted() []string {
	out := make([]string, 0, len(l.deleted))
	for name := range l.deleted {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (l *Library) WasDeleted(name string) bool { return l.deleted[name] }

func (l *Library) SetAnnotated(name string, annotated bool) {
	if img := l.find(name); img != nil {
		img.Annotated = annotated
	}
}

// Dimensions returns the decoded pixel size of an image.
func (l *Library) Dimensions(name string) (int, int, bool) {
	img := l.find(name)
	if img == nil || !img.Ready {
		return 0, 0, false
	}
	return img.Width, img.Height, true
}

func (l *Library) Len() int { return len(l.images) }

// All returns the images in insertion order.
func (l *Library) All() []Image {
	return l.Filter(FilterAll, "")
}

// Filter lists images matching filter whose name contains search, ignoring case.
func (l *Library) Filter(filter Filter, search string) []Image {
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]Image, 0, len(l.images))
	for _, img := range l.images {
		if filter == FilterUnannotated && img.Annotated {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(img.Name), search) {
			continue
		}
		out = append(out, *img)
	}
	return out
}

func (l *Library) find(name string) *Image {
	for _, img := range l.images {
		if img.Name == name {
			return img
		}
	}
	return nil
}
