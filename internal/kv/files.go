package kv

import (
	"errors"
	"net/url"
	"os"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/storage"
)

// Files stores one value per file under a storage provider.
type Files struct {
	fs storage.Provider
}

// NewFiles wraps fs as a Store.
func NewFiles(fs storage.Provider) *Files {
	return &Files{fs: fs}
}

// fileName escapes key so it is always a single path segment.
func fileName(key string) string {
	return url.PathEscape(key) + ".json"
}

func (f *Files) Get(key string) (string, error) {
	data, err := f.fs.Read(fileName(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *Files) Set(key, value string) error {
	return f.fs.Write(fileName(key), []byte(value))
}

func (f *Files) Delete(key string) error {
	err := f.fs.Delete(fileName(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *Files) Close() error { return nil }
