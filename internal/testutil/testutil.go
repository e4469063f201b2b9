// Package testutil provides shared test helpers for key-value stores and
// job catalogs.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/devdash/internal/kv"
	"github.com/starford/devdash/internal/storage"
)

// TestKV creates a temporary SQLite-backed store that is automatically cleaned up.
func TestKV(t *testing.T) kv.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "devdash-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := kv.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestCatalogDir creates a temporary jobs directory with a storage.Provider.
func TestCatalogDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteJob writes a job posting with the given frontmatter and body.
func WriteJob(t *testing.T, store storage.Provider, path, frontmatter, body string) {
	t.Helper()
	data := "---\n" + frontmatter + "\n---\n" + body
	if err := store.Write(path, []byte(data)); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
