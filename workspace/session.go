// Package workspace runs one annotation session per project: image set,
// region store, view, interaction machine, classes and document, all
// mutated under a single lock so every call behaves like one UI event.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"labelscope/annotations"
	"labelscope/autolabel"
	"labelscope/editor"
	"labelscope/geometry"
	"labelscope/images"
	"labelscope/interaction"
	"labelscope/regions"
	"labelscope/transform"
	"labelscope/utils"
)

var ErrNoActiveImage = errors.New("no active image")

// Upload is one image file handed to a session.
type Upload struct {
	Name string
	Data []byte
}

// UploadResult reports what happened to one upload.
type UploadResult struct {
	Name  string `json:"name"`
	Added bool   `json:"added"`
	Error string `json:"error,omitempty"`
}

// Snapshot is everything a client needs to render the active image.
type Snapshot struct {
	Project     string              `json:"project"`
	Image       string              `json:"image"`
	Tool        interaction.Tool    `json:"tool"`
	State       string              `json:"state"`
	Zoom        float64             `json:"zoom"`
	Offset      geometry.Point      `json:"offset"`
	Selected    string              `json:"selected,omitempty"`
	ActiveClass string              `json:"active_class,omitempty"`
	Regions     []regions.Region    `json:"regions"`
	Preview     interaction.Preview `json:"preview"`
	Revision    uint64              `json:"revision"`
}

// Session is the live state of one project.
type Session struct {
	mu sync.Mutex

	project string
	library *images.Library
	store   *regions.Store
	view    *transform.Controller
	classes *editor.ClassList
	ids     *regions.IDGenerator
	machine *interaction.Machine
	doc     *annotations.Document
}

// NewSession Create an empty session for a project
func NewSession(project string) *Session {
	s := &Session{
		project: project,
		library: images.NewLibrary(),
		store:   regions.NewStore(),
		view:    transform.New(),
		classes: editor.NewClassList(),
		ids:     regions.NewIDGenerator(),
		doc:     annotations.New(),
	}
	s.machine = interaction.New(s.store, s.view, s.classes, s.ids)
	return s
}

// Restore rebuilds a session from a persisted document. Image pixels are not
// persisted, so restored images stay unselectable until they are uploaded
// again.
func Restore(project string, doc *annotations.Document, classNames []string) *Session {
	s := NewSession(project)
	s.classes.Replace(classNames)
	s.applyDocument(doc)
	return s
}

func (s *Session) Project() string { return s.project }

// Upload registers the images and decodes them concurrently, one goroutine
// per image. Each image becomes selectable once its decode completes.
func (s *Session) Upload(uploads []Upload) []UploadResult {
	results := make([]UploadResult, len(uploads))
	var wg sync.WaitGroup
	for i, u := range uploads {
		s.mu.Lock()
		accepted, fresh := s.addImage(u.Name, int64(len(u.Data)))
		s.mu.Unlock()

		results[i] = UploadResult{Name: u.Name, Added: accepted}
		if !accepted {
			continue
		}
		wg.Add(1)
		go func(i int, u Upload, fresh bool) {
			defer wg.Done()
			info, err := images.Decode(u.Data)

			s.mu.Lock()
			defer s.mu.Unlock()
			if err != nil {
				log.Warn(fmt.Sprintf("Cannot decode %s: %v", u.Name, err))
				results[i].Error = err.Error()
				// A new image that never decoded leaves no trace.
				if fresh {
					s.library.Discard(u.Name)
					s.doc.RemoveFileAndRegions(u.Name)
					results[i].Added = false
				}
				return
			}
			if err := s.library.MarkReady(u.Name, info); err != nil {
				results[i].Error = err.Error()
			}
		}(i, u, fresh)
	}
	wg.Wait()
	return results
}

// addImage accepts new names and restored images that are waiting for data.
// fresh reports whether the name was not in the library before.
func (s *Session) addImage(name string, size int64) (accepted, fresh bool) {
	if name == "" {
		return false, false
	}
	if img, ok := s.library.Get(name); ok {
		return !img.Ready, false
	}
	s.library.Add(name, size)
	s.doc.EnsureFileEntry(name, size)
	return true, true
}

// RemoveImage deletes an image with its regions and document entries.
func (s *Session) RemoveImage(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.library.Remove(name) {
		return fmt.Errorf("%w: %s", images.ErrImageNotFound, name)
	}
	if s.machine.Image() == name {
		s.machine.SetImage("")
	}
	s.store.DropImage(name)
	s.doc.RemoveFileAndRegions(name)
	log.Info(fmt.Sprintf("Removed image %s from project %s", name, s.project))
	return nil
}

func (s *Session) Images(filter images.Filter, search string) []images.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.library.Filter(filter, search)
}

// DeletedImages lists the names removed from the project.
func (s *Session) DeletedImages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.library.Deleted()
}

// SelectImage makes a decoded image the active one.
func (s *Session) SelectImage(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.library.Selectable(name); err != nil {
		return err
	}
	s.machine.SetImage(name)
	return nil
}

func (s *Session) Classes() []editor.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes.All()
}

func (s *Session) AddClass(name string) (editor.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes.Add(name)
}

// RenameClass renames a class and relabels every region that carries it.
func (s *Session) RenameClass(old, name string) (editor.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.classes.Lookup(old)
	if !ok {
		return editor.Class{}, fmt.Errorf("%w: %s", editor.ErrUnknownClass, old)
	}
	c, err := s.classes.Rename(old, name)
	if err != nil {
		return editor.Class{}, err
	}
	for _, image := range s.store.Images() {
		changed := false
		for _, r := range s.store.Regions(image) {
			if !strings.EqualFold(r.Attributes.Class, prev.Name) {
				continue
			}
			_, err := s.store.Update(image, r.ID, func(r regions.Region) regions.Region {
				r.Attributes.Class = c.Name
				return r
			})
			if err != nil {
				return editor.Class{}, err
			}
			changed = true
		}
		if changed {
			s.syncImage(image)
		}
	}
	return c, nil
}

// RemoveClass removes a class. Regions keep their label.
func (s *Session) RemoveClass(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes.Remove(name)
}

func (s *Session) SelectClass(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classes.Select(name)
}

// SetTool activates a tool on the active image.
func (s *Session) SetTool(tool interaction.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev := s.store.Revision()
	err := s.machine.SetTool(tool)
	s.syncIfChanged(rev)
	return err
}

// Dispatch feeds one input event to the interaction machine.
func (s *Session) Dispatch(ev interaction.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev := s.store.Revision()
	err := s.machine.Handle(ev)
	s.syncIfChanged(rev)
	return err
}

// Snapshot returns the render state of the active image.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	image := s.machine.Image()
	selected, _ := s.machine.Selected()
	active, _ := s.classes.ActiveClass()
	return Snapshot{
		Project:     s.project,
		Image:       image,
		Tool:        s.machine.Tool(),
		State:       s.machine.State(),
		Zoom:        s.view.Zoom(),
		Offset:      s.view.Offset(),
		Selected:    selected,
		ActiveClass: active,
		Regions:     s.store.Regions(image),
		Preview:     s.machine.Preview(),
		Revision:    s.store.Revision(),
	}
}

// Regions lists the regions of an image, or of the active image when name is empty.
func (s *Session) Regions(name string) ([]regions.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = s.machine.Image()
	}
	if _, ok := s.library.Get(name); !ok {
		return nil, fmt.Errorf("%w: %s", images.ErrImageNotFound, name)
	}
	return s.store.Regions(name), nil
}

// SelectRegion selects a region of the active image.
func (s *Session) SelectRegion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.Image() == "" {
		return ErrNoActiveImage
	}
	return s.machine.Select(id)
}

// EditRegion opens the editor on a region of the active image and saves the
// given attributes. Nil values keep the current ones.
func (s *Session) EditRegion(id string, class, description *string) (regions.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	image := s.machine.Image()
	if image == "" {
		return regions.Region{}, ErrNoActiveImage
	}
	if err := s.machine.Select(id); err != nil {
		return regions.Region{}, err
	}
	overlay, err := editor.Open(s.store, s.classes, s.machine)
	if err != nil {
		return regions.Region{}, err
	}
	defer overlay.Close()

	if class != nil {
		if err := overlay.SetClass(*class); err != nil {
			return regions.Region{}, err
		}
	}
	if description != nil {
		if err := overlay.SetDescription(*description); err != nil {
			return regions.Region{}, err
		}
	}
	r, err := overlay.Save()
	if err != nil {
		return regions.Region{}, err
	}
	s.syncImage(image)
	return r, nil
}

// DeleteRegion removes a region of the active image.
func (s *Session) DeleteRegion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	image := s.machine.Image()
	if image == "" {
		return ErrNoActiveImage
	}
	if err := s.machine.Select(id); err != nil {
		return err
	}
	overlay, err := editor.Open(s.store, s.classes, s.machine)
	if err != nil {
		return err
	}
	if err := overlay.Delete(); err != nil {
		return err
	}
	s.syncImage(image)
	return nil
}

// AutoLabel sends the active image to the detector and stores what comes
// back. The session is not locked while the detector runs.
func (s *Session) AutoLabel(ctx context.Context, detector autolabel.Detector) ([]regions.Region, error) {
	s.mu.Lock()
	image := s.machine.Image()
	if image == "" {
		s.mu.Unlock()
		return nil, ErrNoActiveImage
	}
	if err := s.library.Selectable(image); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	img, _ := s.library.Get(image)
	_, data, err := utils.ParseDataURL(img.DataURL)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	dets, err := detector.Detect(ctx, autolabel.Request{Filename: image, Data: data})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.library.Selectable(image); err != nil {
		return nil, err
	}
	var added []regions.Region
	for _, r := range autolabel.Materialize(dets, s.ids) {
		if err := s.store.Add(image, r); err != nil {
			log.Warn(fmt.Sprintf("Dropping detection on %s: %v", image, err))
			continue
		}
		added = append(added, r)
	}
	s.syncImage(image)
	log.Info(fmt.Sprintf("Auto-labeled %s with %d regions", image, len(added)))
	return added, nil
}

// Import replaces the annotations with a document. A malformed document
// leaves the session untouched.
func (s *Session) Import(data []byte) error {
	doc, err := annotations.Load(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.machine.Image()
	s.machine.SetImage("")
	s.applyDocument(doc)
	if active != "" && s.library.Selectable(active) == nil {
		s.machine.SetImage(active)
	}
	return nil
}

// Document returns a copy of the annotation document.
func (s *Session) Document() *annotations.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Export writes the document in the given format.
func (s *Session) Export(w io.Writer, format annotations.Format) error {
	exporter, err := annotations.NewExporter(format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if coco, ok := exporter.(*annotations.COCOExporter); ok {
		coco.Dimensions = s.library.Dimensions
	}
	return exporter.Export(w, s.doc)
}

// Flush persists a snapshot of the document and classes.
func (s *Session) Flush(f Flusher) error {
	s.mu.Lock()
	doc := s.doc.Clone()
	classes := s.classes.All()
	s.mu.Unlock()
	return f.Flush(s.project, doc, classes)
}

func (s *Session) applyDocument(doc *annotations.Document) {
	for _, image := range s.store.Images() {
		s.store.DropImage(image)
	}
	for _, key := range doc.FileKeys() {
		f := doc.Files[key]
		if _, ok := s.library.Get(f.Name); !ok {
			if s.library.WasDeleted(f.Name) {
				log.Debug(fmt.Sprintf("Skipping deleted image %s", f.Name))
				continue
			}
			s.library.Add(f.Name, f.Size)
		}
		s.store.Replace(f.Name, doc.RegionsFor(key))
	}
	s.doc = doc
	var refs []annotations.FileRef
	for _, img := range s.library.All() {
		refs = append(refs, annotations.FileRef{Name: img.Name, Size: img.Size})
	}
	s.doc.Resync(refs)
	for _, img := range s.library.All() {
		s.syncImage(img.Name)
	}
}

func (s *Session) syncIfChanged(rev uint64) {
	if s.store.Revision() == rev {
		return
	}
	if image := s.machine.Image(); image != "" {
		s.syncImage(image)
	}
}

// syncImage copies the store bucket of an image into the document.
func (s *Session) syncImage(image string) {
	key, ok := s.doc.FileKey(image)
	if !ok {
		img, found := s.library.Get(image)
		if !found {
			return
		}
		key = s.doc.EnsureFileEntry(img.Name, img.Size)
	}
	bucket := s.store.Regions(image)
	if err := s.doc.SyncRegions(key, bucket); err != nil {
		log.Warn(fmt.Sprintf("Cannot sync %s: %v", image, err))
	}
	s.library.SetAnnotated(image, len(bucket) > 0)
}
