package regions

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	ErrRegionNotFound   = errors.New("region not found")
	ErrDuplicateRegion  = errors.New("region id already exists")
	ErrDegenerateRegion = errors.New("region geometry below minimum size")
)

// Store maps image names to their regions. Buckets are never modified in
// place: every mutation builds a new slice and swaps it in under the write
// lock, so readers only ever see whole regions.
type Store struct {
	mu       sync.RWMutex
	buckets  map[string][]Region
	revision uint64
}

// NewStore Create an empty store
func NewStore() *Store {
	return &Store{buckets: make(map[string][]Region)}
}

// Revision is bumped by every successful mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Regions returns a deep copy of the image's regions in insertion order.
func (s *Store) Regions(image string) []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.buckets[image]
	out := make([]Region, len(bucket))
	for i, r := range bucket {
		out[i] = r.Clone()
	}
	return out
}

// Count returns the number of regions on the image.
func (s *Store) Count(image string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets[image])
}

// Find Look up a region by id
func (s *Store) Find(image, id string) (Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.buckets[image] {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return Region{}, false
}

// Last returns the most recently added region of the image.
func (s *Store) Last(image string) (Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.buckets[image]
	if len(bucket) == 0 {
		return Region{}, false
	}
	return bucket[len(bucket)-1].Clone(), true
}

// Add Append a region to the image bucket
func (s *Store) Add(image string, r Region) error {
	if !r.Valid() {
		return ErrDegenerateRegion
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[image]
	for _, existing := range bucket {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateRegion, r.ID)
		}
	}
	next := make([]Region, len(bucket), len(bucket)+1)
	copy(next, bucket)
	s.buckets[image] = append(next, r.Clone())
	s.revision++
	log.Debug(fmt.Sprintf("Added %s region %s to %s", r.Shape, r.ID, image))
	return nil
}

// Update replaces a region with fn(previous). fn works on a private copy and
// must return the full replacement; the identifier is always kept.
func (s *Store) Update(image, id string, fn func(Region) Region) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[image]
	idx := indexOf(bucket, id)
	if idx < 0 {
		return Region{}, fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	updated := fn(bucket[idx].Clone()).Clone()
	updated.ID = id

	next := make([]Region, len(bucket))
	copy(next, bucket)
	next[idx] = updated
	s.buckets[image] = next
	s.revision++
	return updated.Clone(), nil
}

// Delete Remove a region from the image bucket
func (s *Store) Delete(image, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[image]
	idx := indexOf(bucket, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, id)
	}
	next := make([]Region, 0, len(bucket)-1)
	next = append(next, bucket[:idx]...)
	next = append(next, bucket[idx+1:]...)
	s.buckets[image] = next
	s.revision++
	log.Debug(fmt.Sprintf("Deleted region %s from %s", id, image))
	return nil
}

// Replace swaps the whole bucket. Degenerate regions are dropped.
func (s *Store) Replace(image string, regions []Region) {
	next := make([]Region, 0, len(regions))
	seen := make(map[string]bool, len(regions))
	for _, r := range regions {
		if !r.Valid() || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		next = append(next, r.Clone())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[image] = next
	s.revision++
}

// DropImage forgets every region of the image.
func (s *Store) DropImage(image string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[image]; !ok {
		return
	}
	delete(s.buckets, image)
	s.revision++
}

// Images returns the names of images that have a bucket.
func (s *Store) Images() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		out = append(out, name)
	}
	return out
}

func indexOf(bucket []Region, id string) int {
	for i, r := range bucket {
		if r.ID == id {
			return i
		}
	}
	return -1
}
