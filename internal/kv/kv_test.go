package kv

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/devdash/internal/apperr"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	dbFile, err := os.CreateTemp("", "devdash-kv-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	sq, err := Open(DriverSQLite, dbFile.Name())
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	files, err := Open(DriverFile, filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}

	mem, err := Open(DriverMemory, "")
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}

	return map[string]Store{"sqlite": sq, "file": files, "memory": mem}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get("profile"); !errors.Is(err, apperr.ErrNotFound) {
				t.Fatalf("Get missing err = %v, want ErrNotFound", err)
			}
			if err := s.Set("profile", `{"name":"a"}`); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set("profile", `{"name":"b"}`); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err := s.Get("profile")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got != `{"name":"b"}` {
				t.Errorf("Get = %q", got)
			}
			if err := s.Delete("profile"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get("profile"); !errors.Is(err, apperr.ErrNotFound) {
				t.Errorf("Get after delete err = %v", err)
			}
			if err := s.Delete("profile"); err != nil {
				t.Errorf("Delete missing key: %v", err)
			}
		})
	}
}

func TestStoreKeysWithSeparators(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := "job-match-ledger:user/42"
			if err := s.Set(key, `["J1"]`); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(key)
			if err != nil || got != `["J1"]` {
				t.Errorf("Get = %q, %v", got, err)
			}
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if got, err := s2.Get("k"); err != nil || got != "v" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("redis", ""); err == nil {
		t.Error("expected error for unknown driver")
	}
}
