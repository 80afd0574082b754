package editor

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"labelscope/regions"
)

var ErrOverlayClosed = errors.New("editor is closed")

// Selection is the part of the interaction machine the overlay drives.
type Selection interface {
	Image() string
	Selected() (string, bool)
	Deselect()
}

// Overlay edits the class and description of the selected region. Edits are
// buffered until Save writes both attributes in one store update.
type Overlay struct {
	store   *regions.Store
	classes *ClassList
	sel     Selection

	image       string
	id          string
	label       string
	class       string
	description string
	closed      bool
}

// Open Start editing the selected region
func Open(store *regions.Store, classes *ClassList, sel Selection) (*Overlay, error) {
	id, ok := sel.Selected()
	if !ok {
		return nil, regions.ErrRegionNotFound
	}
	r, ok := store.Find(sel.Image(), id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", regions.ErrRegionNotFound, id)
	}
	o := &Overlay{
		store:       store,
		classes:     classes,
		sel:         sel,
		image:       sel.Image(),
		id:          id,
		label:       r.Attributes.Class,
		class:       r.Attributes.Class,
		description: r.Attributes.Description,
	}
	if c, ok := classes.Lookup(r.Attributes.Class); ok {
		o.class = c.Name
	}
	return o, nil
}

func (o *Overlay) RegionID() string { return o.id }

// Class returns the class that Save would write. A region keeps its own
// label unless exactly one class is defined and the label is not in the list.
func (o *Overlay) Class() string {
	if _, known := o.classes.Lookup(o.class); !known && o.classes.Len() == 1 {
		return o.classes.All()[0].Name
	}
	return o.class
}

func (o *Overlay) Description() string { return o.description }

func (o *Overlay) SetClass(name string) error {
	if o.closed {
		return ErrOverlayClosed
	}
	c, ok := o.classes.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	o.class = c.Name
	return nil
}

func (o *Overlay) SetDescription(text string) error {
	if o.closed {
		return ErrOverlayClosed
	}
	o.description = text
	return nil
}

// Save replaces the region's attributes and closes the overlay. Nothing is
// written when validation fails.
func (o *Overlay) Save() (regions.Region, error) {
	if o.closed {
		return regions.Region{}, ErrOverlayClosed
	}
	class := o.Class()
	if class == "" {
		return regions.Region{}, ErrClassRequired
	}
	if _, ok := o.classes.Lookup(class); !ok && class != o.label {
		return regions.Region{}, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	attrs := regions.Attributes{Class: class, Description: o.description}
	updated, err := o.store.Update(o.image, o.id, func(r regions.Region) regions.Region {
		r.Attributes = attrs
		return r
	})
	if err != nil {
		return regions.Region{}, err
	}
	log.Debug(fmt.Sprintf("Saved attributes of region %s on %s", o.id, o.image))
	o.Close()
	return updated, nil
}

// Delete removes the region and clears the selection.
func (o *Overlay) Delete() error {
	if o.closed {
		return ErrOverlayClosed
	}
	err := o.store.Delete(o.image, o.id)
	o.Close()
	return err
}

// Close clears the selection without touching the region.
func (o *Overlay) Close() {
	if o.closed {
		return
	}
	o.closed = true
	if id, ok := o.sel.Selected(); ok && id == o.id {
		o.sel.Deselect()
	}
}
