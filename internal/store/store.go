// Package store implements the in-memory collection store (spec §4.3): the
// name→Collection mapping, insertion, and dirty-flag bookkeeping. It knows
// nothing about disk or caching; those are composed on top by
// internal/engine.
package store

import (
	"sync"

	"github.com/bisondb/bison/internal/bisonerr"
	"github.com/bisondb/bison/internal/document"
)

// Collection is an ordered sequence of documents plus a dirty flag (spec
// §3).
type Collection struct {
	docs  []*document.Object
	dirty bool
}

// Documents returns the collection's documents in insertion order. The
// returned slice must not be mutated by callers; it is shared with the
// store.
func (c *Collection) Documents() []*document.Object {
	if c == nil {
		return nil
	}

	return c.docs
}

// Dirty reports whether the collection has unflushed changes.
func (c *Collection) Dirty() bool {
	return c != nil && c.dirty
}

// Store holds every collection by name, in creation order.
type Store struct {
	mu     sync.Mutex
	byName map[string]*Collection
	order  []string
}

// New creates a Store, optionally pre-populated from docs loaded by
// internal/storage on open. Every key in docs becomes a collection, marked
// clean (it matches what's already on disk).
func New(docs map[string][]*document.Object) *Store {
	s := &Store{byName: make(map[string]*Collection, len(docs))}

	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}

	// deterministic iteration order for callers that loaded from disk,
	// independent of Go's randomized map iteration.
	sortStrings(names)

	for _, name := range names {
		s.byName[name] = &Collection{docs: docs[name]}
		s.order = append(s.order, name)
	}

	return s
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Collections returns every collection name, in creation order.
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.order))
	copy(names, s.order)

	return names
}

// CreateCollection is idempotent: an existing collection keeps its
// contents.
func (s *Store) CreateCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.createLocked(name)
}

func (s *Store) createLocked(name string) *Collection {
	if c, ok := s.byName[name]; ok {
		return c
	}

	c := &Collection{}
	s.byName[name] = c
	s.order = append(s.order, name)

	return c
}

// DropCollection removes name's entry. It reports whether the collection
// existed.
func (s *Store) DropCollection(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[name]; !ok {
		return false
	}

	delete(s.byName, name)

	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return true
}

// DropAll removes every collection.
func (s *Store) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byName = make(map[string]*Collection)
	s.order = nil
}

// Documents returns collection name's documents, or a NoSuchCollection
// error if it doesn't exist (spec §3 invariant).
func (s *Store) Documents(name string) ([]*document.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byName[name]
	if !ok {
		return nil, bisonerr.New(bisonerr.NoSuchCollection, "no such collection %q", name)
	}

	return c.docs, nil
}

// Insert appends doc to name, creating the collection if absent, and marks
// it dirty.
func (s *Store) Insert(name string, doc *document.Object) {
	s.InsertMany(name, []*document.Object{doc})
}

// InsertMany appends docs, in order, to name, creating the collection if
// absent, and marks it dirty.
func (s *Store) InsertMany(name string, docs []*document.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.createLocked(name)
	c.docs = append(c.docs, docs...)
	c.dirty = true
}

// MarkDirty flags name as having unflushed changes. It is a no-op if name
// doesn't exist.
func (s *Store) MarkDirty(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byName[name]; ok {
		c.dirty = true
	}
}

// ClearDirty flags name as flushed.
func (s *Store) ClearDirty(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.byName[name]; ok {
		c.dirty = false
	}
}

// DirtyCollections returns the names of every collection with unflushed
// changes, in creation order.
func (s *Store) DirtyCollections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dirty []string

	for _, name := range s.order {
		if s.byName[name].dirty {
			dirty = append(dirty, name)
		}
	}

	return dirty
}

// Exists reports whether name has been created.
func (s *Store) Exists(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byName[name]

	return ok
}
