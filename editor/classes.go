// Package editor holds the project's class list and the attribute overlay
// for a selected region.
package editor

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	ErrEmptyClassName = errors.New("class name cannot be empty")
	ErrDuplicateClass = errors.New("duplicate class name")
	ErrUnknownClass   = errors.New("unknown class")
	ErrClassRequired  = errors.New("select a class before saving")
)

// Class is a project-scoped label. Ordinal is 1-based and dense.
type Class struct {
	Name    string `json:"name"`
	Ordinal int    `json:"count"`
}

// ClassList keeps classes in insertion order and tracks the active one.
type ClassList struct {
	classes []Class
	active  string
}

func NewClassList() *ClassList {
	return &ClassList{}
}

func (l *ClassList) Len() int { return len(l.classes) }

// All returns a copy of the classes in ordinal order.
func (l *ClassList) All() []Class {
	return append([]Class(nil), l.classes...)
}

// Lookup finds a class by case-insensitive name.
func (l *ClassList) Lookup(name string) (Class, bool) {
	if i := l.index(name); i >= 0 {
		return l.classes[i], true
	}
	return Class{}, false
}

// Add Append a new class
func (l *ClassList) Add(name string) (Class, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Class{}, ErrEmptyClassName
	}
	if l.index(name) >= 0 {
		return Class{}, fmt.Errorf("%w: %s", ErrDuplicateClass, name)
	}
	c := Class{Name: name, Ordinal: len(l.classes) + 1}
	l.classes = append(l.classes, c)
	log.Debug(fmt.Sprintf("Added class %s (%d)", c.Name, c.Ordinal))
	return c, nil
}

// Rename changes a class name in place. The ordinal is kept and the active
// class follows the rename.
func (l *ClassList) Rename(old, name string) (Class, error) {
	i := l.index(old)
	if i < 0 {
		return Class{}, fmt.Errorf("%w: %s", ErrUnknownClass, old)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Class{}, ErrEmptyClassName
	}
	if j := l.index(name); j >= 0 && j != i {
		return Class{}, fmt.Errorf("%w: %s", ErrDuplicateClass, name)
	}
	if strings.EqualFold(l.active, l.classes[i].Name) {
		l.active = name
	}
	l.classes[i].Name = name
	return l.classes[i], nil
}

// Remove deletes a class and renumbers the rest.
func (l *ClassList) Remove(name string) error {
	i := l.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	if strings.EqualFold(l.active, l.classes[i].Name) {
		l.active = ""
	}
	next := make([]Class, 0, len(l.classes)-1)
	next = append(next, l.classes[:i]...)
	next = append(next, l.classes[i+1:]...)
	for j := range next {
		next[j].Ordinal = j + 1
	}
	l.classes = next
	return nil
}

// Select makes a class active. An empty name clears the selection.
func (l *ClassList) Select(name string) error {
	if strings.TrimSpace(name) == "" {
		l.active = ""
		return nil
	}
	c, ok := l.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	l.active = c.Name
	return nil
}

// ActiveClass returns the class stamped onto newly drawn regions. With a
// single class defined it is used even when nothing was selected.
func (l *ClassList) ActiveClass() (string, bool) {
	if l.active != "" {
		return l.active, true
	}
	if len(l.classes) == 1 {
		return l.classes[0].Name, true
	}
	return "", false
}

// Active returns the explicitly selected class.
func (l *ClassList) Active() string { return l.active }

// Replace swaps the whole list, renumbering ordinals. Invalid and duplicate
// names are skipped.
func (l *ClassList) Replace(names []string) {
	l.classes = nil
	l.active = ""
	for _, n := range names {
		if _, err := l.Add(n); err != nil {
			log.Warn(fmt.Sprintf("Skipping class %q: %v", n, err))
		}
	}
}

func (l *ClassList) index(name string) int {
	name = strings.TrimSpace(name)
	for i, c := range l.classes {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}
