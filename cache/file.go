package cache

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const (
	filePerm os.FileMode = 0666
	dirPerm  os.FileMode = 0700
)

// save writes the current store data to the store file
// Make sure to execute this while the store is locked
func (s *Store) save() error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.data, "", "\t")
	if err != nil {
		return errors.Wrap(err, "failed to marshal store data to json")
	}
	err = os.WriteFile(s.filePath, data, filePerm)
	if err != nil {
		return errors.Wrap(err, "failed to write store file")
	}

	return nil
}

// read reads the store file into the in-memory map
func (s *Store) read() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return errors.Wrap(err, "failed to read store file")
	}

	if string(data) == "" || string(data) == "{}" {
		return nil
	}
	err = json.Unmarshal(data, &s.data)
	if err != nil {
		return errors.Wrap(err, "failed to parse data from store file")
	}

	return nil
}

// ensureFile ensures that the store file exists
func (s *Store) ensureFile() error {
	file, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, filePerm)
	if err != nil {
		return errors.Wrap(err, "something went wrong creating/reading store file")
	}

	return file.Close()
}
