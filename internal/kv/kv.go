// Package kv provides the durable, process-local string store used for the
// profile record and the job-match ledger.
package kv

import (
	"fmt"
	"sync"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/storage"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Store is a synchronous key-value store. Get returns apperr.ErrNotFound for
// missing keys.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Open returns the backend named by driver. path is the database file for
// sqlite and the directory for file; it is ignored for memory.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverFile:
		fs, err := storage.NewFS(path)
		if err != nil {
			return nil, fmt.Errorf("kv: %w", err)
		}
		return NewFiles(fs), nil
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", driver)
	}
}

// Memory is an in-memory Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", apperr.ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error { return nil }
