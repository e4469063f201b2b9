package jobs

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/devdash/internal/models"
	"github.com/starford/devdash/internal/storage"
)

func testCatalog(t *testing.T) (string, *storage.FS, *Catalog) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return dir, fs, NewCatalog(fs, logger)
}

func posting(id, title string, stack ...string) []byte {
	out := "---\nid: " + id + "\ntitle: " + title + "\ncreated_by: Dana\ntech_stack:\n"
	for _, s := range stack {
		out += "  - " + s + "\n"
	}
	return []byte(out + "---\nDescription.\n")
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestLoadSkipsMalformedAndDuplicates(t *testing.T) {
	_, fs, c := testCatalog(t)
	_ = fs.Write("b.md", posting("J2", "Frontend", "React"))
	_ = fs.Write("a.md", posting("J1", "Auditor", "Rust", "Solana"))
	_ = fs.Write("broken.md", []byte("no frontmatter"))
	_ = fs.Write("dup.md", posting("J1", "Duplicate", "Go"))
	_ = fs.Write("notes.txt", []byte("ignored"))

	changed, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !changed {
		t.Error("first load should report a change")
	}
	jobs := c.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2: %+v", len(jobs), jobs)
	}
	if jobs[0].ID != "J1" || jobs[0].Title != "Auditor" || jobs[1].ID != "J2" {
		t.Errorf("jobs = %+v", jobs)
	}
	if _, ok := c.Get("J2"); !ok {
		t.Error("Get(J2) not found")
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) found")
	}

	changed, err = c.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if changed {
		t.Error("reload without edits reported a change")
	}
}

func TestJobsReturnsCopy(t *testing.T) {
	_, fs, c := testCatalog(t)
	_ = fs.Write("a.md", posting("J1", "Auditor", "Rust"))
	_, _ = c.Load()

	jobs := c.Jobs()
	jobs[0].Title = "mutated"
	if got, _ := c.Get("J1"); got.Title != "Auditor" {
		t.Errorf("catalog mutated through Jobs(): %q", got.Title)
	}
}

func TestWatchReloadsOnNewPosting(t *testing.T) {
	dir, fs, c := testCatalog(t)
	_, _ = c.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen [][]models.Job
	done := make(chan struct{})
	go func() {
		_ = c.Watch(ctx, dir, func(jobs []models.Job) {
			mu.Lock()
			seen = append(seen, jobs)
			mu.Unlock()
		})
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := fs.Write("new.md", posting("J9", "New job", "Go")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && len(seen[len(seen)-1]) == 1
	}, "watcher did not report the new posting")

	cancel()
	<-done
}
