package cache

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrEntryNotFound represents an error where a cache entry was not found
	ErrEntryNotFound = errors.New("cache entry not found")
)

// Store is a named key-value store of cached request/response pairs,
// persisted as a single JSON file. The name carries the generation tag, so
// retiring a generation means deleting the store file wholesale.
//
// Put and Delete are atomic per key; there is no compare-and-swap. Two
// concurrent writes to the same key race and the last one wins.
type Store struct {
	name     string
	filePath string
	data     map[string]*Entry
	m        *sync.Mutex
}

// Name returns the generation-tagged store name
func (s *Store) Name() string {
	return s.name
}

// Get returns the entry stored under key, if any
func (s *Store) Get(key string) (*Entry, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	e, ok := s.data[key]

	return e, ok
}

// Put stores an entry under its key, overwriting any previous entry
func (s *Store) Put(e *Entry) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.data[e.Key()] = e

	return errors.Wrapf(s.save(), "failed to save store %s", s.name)
}

// Delete removes the entry stored under key.
// Deleting a key that is not present is a no-op.
func (s *Store) Delete(key string) error {
	s.m.Lock()
	defer s.m.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)

	return errors.Wrapf(s.save(), "failed to save store %s", s.name)
}

// Entries returns a snapshot of the stored entries.
// Concurrent writes after the snapshot is taken are not reflected.
func (s *Store) Entries() []*Entry {
	s.m.Lock()
	defer s.m.Unlock()

	entries := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		entries = append(entries, e)
	}

	return entries
}

// Len returns the number of stored entries
func (s *Store) Len() int {
	s.m.Lock()
	defer s.m.Unlock()

	return len(s.data)
}
