// Package storage provides a rooted, traversal-safe file store used by the
// file-backed KV store and the job catalog.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry describes one file returned by List.
type Entry struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for rooted file operations. All paths are
// relative to the provider root.
type Provider interface {
	// List returns every file under dir whose name ends in ext.
	List(dir, ext string) ([]Entry, error)
	// Exists reports whether a regular file is present at path.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
