// Package jobs loads the jobs marketplace catalog from a directory of
// Markdown postings and keeps it current with a file watcher.
package jobs

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/parser"
	"github.com/starford/devdash/internal/storage"
)

const postingExt = ".md"

// debounce is how long the watcher waits for a burst of writes to settle.
const debounce = 200 * time.Millisecond

// Catalog is an in-memory snapshot of every valid posting.
type Catalog struct {
	store  storage.Provider
	logger *slog.Logger

	mu     sync.RWMutex
	jobs   []models.Job
	digest string
}

// NewCatalog creates an empty catalog reading from store. Call Load to
// populate it.
func NewCatalog(store storage.Provider, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, logger: logger}
}

// Load re-reads every posting. Malformed postings are logged and skipped.
// It reports whether the catalog content changed.
func (c *Catalog) Load() (bool, error) {
	entries, err := c.store.List("", postingExt)
	if err != nil {
		return false, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	var (
		out  []models.Job
		sums strings.Builder
		seen = make(map[string]string, len(entries))
	)
	for _, e := range entries {
		data, err := c.store.Read(e.Path)
		if err != nil {
			c.logger.Warn("jobs: read failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		job, err := parser.ParseJob(e.Path, data)
		if err != nil {
			c.logger.Warn("jobs: skipping posting", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		if prev, dup := seen[job.ID]; dup {
			c.logger.Warn("jobs: duplicate id, keeping first",
				slog.String("id", job.ID), slog.String("path", e.Path), slog.String("first", prev))
			continue
		}
		seen[job.ID] = e.Path
		sums.WriteString(e.Path)
		sums.WriteString(e.Checksum)
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	digest := storage.Checksum([]byte(sums.String()))

	c.mu.Lock()
	defer c.mu.Unlock()
	changed := digest != c.digest
	c.jobs = out
	c.digest = digest
	return changed, nil
}

// Jobs returns a copy of the catalog ordered by id.
func (c *Catalog) Jobs() []models.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Job, len(c.jobs))
	copy(out, c.jobs)
	return out
}

// Get returns the job with the given id.
func (c *Catalog) Get(id string) (models.Job, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, j := range c.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return models.Job{}, false
}

// Watch observes root (the directory backing the catalog store) and reloads
// after each burst of changes, calling onChange only when the content
// changed. It blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context, root string, onChange func([]models.Job)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	c.logger.Info("jobs: watcher started", slog.String("root", root))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			c.logger.Info("jobs: watcher stopped")
			return nil

		case <-fire:
			changed, err := c.Load()
			if err != nil {
				c.logger.Warn("jobs: reload failed", slog.String("error", err.Error()))
				continue
			}
			if changed && onChange != nil {
				onChange(c.Jobs())
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if isDir(ev.Name) {
					if err := addDirsRecursive(w, ev.Name); err != nil {
						c.logger.Warn("jobs: watch new dir failed",
							slog.String("path", ev.Name), slog.String("error", err.Error()))
					}
					schedule()
					continue
				}
			}
			if strings.HasSuffix(ev.Name, postingExt) {
				schedule()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("jobs: watcher error", slog.String("error", werr.Error()))
		}
	}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
