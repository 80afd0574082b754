// Package interaction turns pointer and keyboard events into region store
// mutations, one gesture at a time.
package interaction

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"labelscope/geometry"
	"labelscope/regions"
	"labelscope/transform"
)

// RepeatOffset is how far the repeat tool shifts a duplicated region.
const RepeatOffset = 10.0

var (
	ErrNoClassSelected = errors.New("select a class before labeling")
	ErrNoImage         = errors.New("no image selected")
)

// ClassSource supplies the class stamped onto manually drawn regions.
type ClassSource interface {
	ActiveClass() (string, bool)
}

// Preview is the in-progress geometry to render on top of the stored regions.
type Preview struct {
	Rect    *geometry.Rect   `json:"rect,omitempty"`
	Polygon []geometry.Point `json:"polygon,omitempty"`
	Cursor  *geometry.Point  `json:"cursor,omitempty"`
}

// Machine interprets events for the active image and tool. It is not safe
// for concurrent use; callers deliver one event at a time.
type Machine struct {
	store   *regions.Store
	view    *transform.Controller
	classes ClassSource
	ids     *regions.IDGenerator

	image    string
	tool     Tool
	state    state
	selected string
}

// New Create a machine with no image and no tool
func New(store *regions.Store, view *transform.Controller, classes ClassSource, ids *regions.IDGenerator) *Machine {
	return &Machine{
		store:   store,
		view:    view,
		classes: classes,
		ids:     ids,
		tool:    ToolNone,
		state:   idle{},
	}
}

func (m *Machine) Image() string { return m.image }
func (m *Machine) Tool() Tool    { return m.tool }
func (m *Machine) State() string { return m.state.name() }

// Selected returns the selected region id.
func (m *Machine) Selected() (string, bool) {
	return m.selected, m.selected != ""
}

// Select marks an existing region of the active image as selected.
func (m *Machine) Select(id string) error {
	if _, ok := m.store.Find(m.image, id); !ok {
		return fmt.Errorf("%w: %s", regions.ErrRegionNotFound, id)
	}
	m.selected = id
	return nil
}

func (m *Machine) Deselect() {
	m.selected = ""
}

// SetImage switches the active image. Unfinished shapes are discarded, the
// selection is cleared and the view is reset.
func (m *Machine) SetImage(name string) {
	if name == m.image {
		return
	}
	m.cancel()
	m.Deselect()
	m.view.Reset()
	m.image = name
}

// SetTool activates a tool. Switching tools abandons any in-progress shape
// without finalizing it. Activating the repeat tool duplicates the most
// recent region of the image once.
func (m *Machine) SetTool(t Tool) error {
	if t == m.tool {
		return nil
	}
	if _, ok := m.state.(idle); !ok {
		log.Debug(fmt.Sprintf("Tool switch %s -> %s discards %s", m.tool, t, m.state.name()))
	}
	m.cancel()
	m.tool = t
	if t == ToolRepeat {
		return m.repeatLast()
	}
	return nil
}

// Handle processes one event.
func (m *Machine) Handle(ev Event) error {
	switch e := ev.(type) {
	case Wheel:
		m.view.OnWheel(e.DeltaY)
		return nil
	case PointerDown:
		if e.Button != 0 {
			return nil
		}
		return m.pointerDown(e.Screen)
	case PointerMove:
		return m.pointerMove(e.Screen)
	case PointerUp:
		return m.pointerUp()
	case PointerLeave:
		m.pointerLeave()
		return nil
	case KeyDown:
		return m.keyDown(e.Key)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

// Preview returns the geometry of the gesture in progress.
func (m *Machine) Preview() Preview {
	switch s := m.state.(type) {
	case drawingRect:
		r := geometry.NormalizeRect(s.anchor, s.current)
		return Preview{Rect: &r}
	case drawingPolygon:
		p := Preview{Polygon: append([]geometry.Point(nil), s.points...)}
		if s.cursor != nil {
			c := *s.cursor
			p.Cursor = &c
		}
		return p
	}
	return Preview{}
}

// DeleteSelected removes the selected region and clears the selection.
func (m *Machine) DeleteSelected() error {
	id, ok := m.Selected()
	if !ok {
		return nil
	}
	m.Deselect()
	switch m.state.(type) {
	case draggingRect, resizingRect, draggingPolygon, resizingVertex:
		m.cancel()
	case idle, drawingRect, drawingPolygon, panningView:
	}
	return m.store.Delete(m.image, id)
}

func (m *Machine) cancel() {
	if _, ok := m.state.(panningView); ok {
		m.view.EndPan()
	}
	m.state = idle{}
}

func (m *Machine) pointerDown(screen geometry.Point) error {
	if m.tool == ToolHand {
		m.view.BeginPan(screen)
		m.state = panningView{}
		return nil
	}
	if m.image == "" {
		return ErrNoImage
	}
	p := m.view.ScreenToImage(screen)

	switch s := m.state.(type) {
	case drawingPolygon:
		if m.tool == ToolPolygon {
			m.appendVertex(s, p)
			return nil
		}
		m.state = idle{}
	case idle, drawingRect, draggingRect, resizingRect, draggingPolygon, resizingVertex, panningView:
		m.cancel()
	}

	switch m.tool {
	case ToolRect:
		m.rectDown(p)
	case ToolPolygon:
		m.polygonDown(p)
	default:
		m.selectAt(p)
	}
	return nil
}

func (m *Machine) selectAt(p geometry.Point) {
	if hit, ok := topmost(m.store.Regions(m.image), p); ok {
		m.selected = hit.ID
		return
	}
	m.Deselect()
}

func (m *Machine) rectDown(p geometry.Point) {
	all := m.store.Regions(m.image)
	radius := m.view.HitRadius()
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		if r.Shape != regions.ShapeRect {
			continue
		}
		if corner, ok := geometry.HandleAt(r.Rect, p, radius); ok {
			m.selected = r.ID
			m.state = resizingRect{id: r.ID, corner: corner}
			return
		}
	}
	if hit, ok := topmost(all, p); ok {
		m.selected = hit.ID
		if hit.Shape == regions.ShapeRect {
			m.state = draggingRect{id: hit.ID, grab: p.Sub(hit.Rect.Min())}
		}
		return
	}
	m.Deselect()
	m.state = drawingRect{anchor: p, current: p}
}

func (m *Machine) polygonDown(p geometry.Point) {
	all := m.store.Regions(m.image)
	if r, idx, ok := vertexHit(all, p, m.view.HitRadius()); ok {
		m.selected = r.ID
		m.state = resizingVertex{id: r.ID, index: idx}
		return
	}
	if hit, ok := topmost(all, p); ok {
		m.selected = hit.ID
		if hit.Shape == regions.ShapePolygon {
			m.state = draggingPolygon{id: hit.ID, last: p}
		}
		return
	}
	m.Deselect()
	m.state = drawingPolygon{points: []geometry.Point{p}}
}

// appendVertex adds a pending vertex unless the click lands on an existing
// region or vertex.
func (m *Machine) appendVertex(s drawingPolygon, p geometry.Point) {
	all := m.store.Regions(m.image)
	if _, _, ok := vertexHit(all, p, m.view.HitRadius()); ok {
		return
	}
	if _, ok := topmost(all, p); ok {
		return
	}
	s.points = append(append([]geometry.Point(nil), s.points...), p)
	s.cursor = nil
	m.state = s
}

func (m *Machine) pointerMove(screen geometry.Point) error {
	p := m.view.ScreenToImage(screen)

	switch s := m.state.(type) {
	case idle:
		return nil
	case drawingRect:
		if !s.released {
			s.current = p
			m.state = s
		}
		return nil
	case draggingRect:
		_, err := m.store.Update(m.image, s.id, func(r regions.Region) regions.Region {
			r.Rect.X = p.X - s.grab.X
			r.Rect.Y = p.Y - s.grab.Y
			return r
		})
		return m.endOnMissing(err)
	case resizingRect:
		_, err := m.store.Update(m.image, s.id, func(r regions.Region) regions.Region {
			r.Rect = geometry.ResizeRect(r.Rect, s.corner, p, regions.MinSize)
			return r
		})
		return m.endOnMissing(err)
	case drawingPolygon:
		s.cursor = &p
		m.state = s
		return nil
	case draggingPolygon:
		delta := p.Sub(s.last)
		_, err := m.store.Update(m.image, s.id, func(r regions.Region) regions.Region {
			return r.Translate(delta)
		})
		s.last = p
		m.state = s
		return m.endOnMissing(err)
	case resizingVertex:
		_, err := m.store.Update(m.image, s.id, func(r regions.Region) regions.Region {
			if s.index < len(r.Points) {
				r.Points[s.index] = p
			}
			return r
		})
		return m.endOnMissing(err)
	case panningView:
		m.view.PanTo(screen)
		return nil
	default:
		return fmt.Errorf("unhandled state %s", m.state.name())
	}
}

func (m *Machine) pointerUp() error {
	switch s := m.state.(type) {
	case drawingRect:
		return m.finishRect(s)
	case draggingRect, resizingRect, draggingPolygon, resizingVertex:
		m.state = idle{}
	case panningView:
		m.view.EndPan()
		m.state = idle{}
	case idle, drawingPolygon:
	}
	return nil
}

func (m *Machine) pointerLeave() {
	switch m.state.(type) {
	case draggingRect, resizingRect, draggingPolygon, resizingVertex, panningView:
		m.cancel()
	case idle, drawingRect, drawingPolygon:
	}
}

func (m *Machine) keyDown(key string) error {
	switch key {
	case KeyEscape:
		m.escape()
		return nil
	case KeyEnter:
		if s, ok := m.state.(drawingPolygon); ok {
			return m.finishPolygon(s)
		}
		return nil
	case KeyDelete, KeyBackspace:
		return m.DeleteSelected()
	}
	return nil
}

func (m *Machine) escape() {
	switch s := m.state.(type) {
	case drawingPolygon:
		if len(s.points) <= 1 {
			m.state = idle{}
			return
		}
		s.points = append([]geometry.Point(nil), s.points[:len(s.points)-1]...)
		m.state = s
	case drawingRect, draggingRect, resizingRect, draggingPolygon, resizingVertex, panningView:
		m.cancel()
	case idle:
	}
}

func (m *Machine) finishRect(s drawingRect) error {
	rect := geometry.NormalizeRect(s.anchor, s.current)
	if rect.Width < regions.MinSize || rect.Height < regions.MinSize {
		m.state = idle{}
		return nil
	}
	class, ok := m.classes.ActiveClass()
	if !ok {
		s.released = true
		m.state = s
		return ErrNoClassSelected
	}
	region := regions.NewRect(m.ids.Next(), rect, regions.Attributes{Class: class})
	m.state = idle{}
	return m.store.Add(m.image, region)
}

func (m *Machine) finishPolygon(s drawingPolygon) error {
	if len(s.points) < regions.MinVertices {
		return nil
	}
	class, ok := m.classes.ActiveClass()
	if !ok {
		return ErrNoClassSelected
	}
	region := regions.NewPolygon(m.ids.Next(), s.points, regions.Attributes{Class: class})
	m.state = idle{}
	return m.store.Add(m.image, region)
}

func (m *Machine) repeatLast() error {
	if m.image == "" {
		return nil
	}
	last, ok := m.store.Last(m.image)
	if !ok {
		return nil
	}
	dup := last.Translate(geometry.Point{X: RepeatOffset, Y: RepeatOffset})
	dup.ID = m.ids.Next()
	log.Debug(fmt.Sprintf("Repeating region %s as %s on %s", last.ID, dup.ID, m.image))
	return m.store.Add(m.image, dup)
}

// endOnMissing drops the gesture when its region disappeared underneath it.
func (m *Machine) endOnMissing(err error) error {
	if errors.Is(err, regions.ErrRegionNotFound) {
		m.state = idle{}
		if id, ok := m.Selected(); ok {
			if _, found := m.store.Find(m.image, id); !found {
				m.Deselect()
			}
		}
		return nil
	}
	return err
}

// topmost returns the last drawn region containing p.
func topmost(all []regions.Region, p geometry.Point) (regions.Region, bool) {
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Contains(p) {
			return all[i], true
		}
	}
	return regions.Region{}, false
}

func vertexHit(all []regions.Region, p geometry.Point, radius float64) (regions.Region, int, bool) {
	for i := len(all) - 1; i >= 0; i-- {
		r := all[i]
		if r.Shape != regions.ShapePolygon {
			continue
		}
		if idx, ok := geometry.VertexAt(r.Points, p, radius); ok {
			return r, idx, true
		}
	}
	return regions.Region{}, -1, false
}
