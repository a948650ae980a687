package cache

import (
	"os"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const storeFileExt = ".json"

// NewStorage returns a storage rooted at dir, creating dir if needed.
// Each named store maps to one <name>.json file inside dir.
func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("storage dir not provided")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.Mkdir(dir, dirPerm); err != nil {
			return nil, errors.Wrap(err, "failed to create storage dir")
		}
	}

	return &Storage{dir: dir}, nil
}

// Storage manages the named cache stores in a directory
type Storage struct {
	dir string
}

// Open opens the store with the given name, loading any persisted entries
func (s *Storage) Open(name string) (*Store, error) {
	if name == "" {
		return nil, errors.New("store name is empty")
	}
	store := &Store{
		name:     name,
		filePath: path.Join(s.dir, name+storeFileExt),
		data:     make(map[string]*Entry),
		m:        &sync.Mutex{},
	}
	if err := store.ensureFile(); err != nil {
		return nil, err
	}
	if err := store.read(); err != nil {
		return nil, errors.Wrapf(err, "failed to load store %s", name)
	}

	return store, nil
}

// Names lists the names of every store currently present in the directory
func (s *Storage) Names() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list storage dir")
	}

	names := []string{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), storeFileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(f.Name(), storeFileExt))
	}

	return names, nil
}

// Remove deletes the store file with the given name
func (s *Storage) Remove(name string) error {
	err := os.Remove(path.Join(s.dir, name+storeFileExt))
	if err != nil {
		return errors.Wrapf(err, "failed to delete store %s", name)
	}

	return nil
}
