package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix marks in-flight writes; List never reports them.
const tempPrefix = ".devdash-tmp-"

// FS implements Provider on the local file system.
type FS struct {
	root string // absolute
}

// NewFS creates a provider rooted at dir, creating the directory when it
// does not exist yet.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// resolve maps rel onto the root, refusing absolute paths and anything
// that climbs out of it.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, filepath.Clean(rel))
	inside, err := filepath.Rel(f.root, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// List walks dir and returns every regular file ending in ext, with a
// content checksum so callers can detect edits cheaply.
func (f *FS) List(dir, ext string) ([]Entry, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	walk := func(p string, d fs.DirEntry, walkErr error) error {
		switch {
		case walkErr != nil:
			return walkErr
		case d.IsDir(), strings.HasPrefix(d.Name(), tempPrefix):
			return nil
		case ext != "" && filepath.Ext(d.Name()) != ext:
			return nil
		}
		entry, err := f.describe(p, d)
		if err != nil {
			return err
		}
		out = append(out, entry)
		return nil
	}
	if err := filepath.WalkDir(base, walk); err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	return out, nil
}

func (f *FS) describe(p string, d fs.DirEntry) (Entry, error) {
	info, err := d.Info()
	if err != nil {
		return Entry{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return Entry{}, err
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Path:      filepath.ToSlash(rel),
		Checksum:  Checksum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Exists reports whether a regular file is present at path.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}

// Read returns the contents of path. A missing file yields an error that
// wraps os.ErrNotExist.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces path so readers observe either the old or the new content.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := writeAtomic(abs, content); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// writeAtomic writes to a sibling temp file, syncs it and renames it over
// dst. The temp file is removed on any failure.
func writeAtomic(dst string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPrefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Delete removes path. A missing file yields an error that wraps
// os.ErrNotExist.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}
