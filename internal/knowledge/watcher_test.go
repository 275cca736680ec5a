package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func startTestWatcher(t *testing.T, store *Store, dir string) *Watcher {
	t.Helper()
	w, err := NewWatcher(store, dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.debounce = 50 * time.Millisecond // keep the test fast
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcherIngestsOnWrite(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	startTestWatcher(t, store, dir)

	writeCorpusFile(t, dir, "doc.md", "# Title\n\nfresh corpus content\n")

	ok := waitFor(t, 5*time.Second, func() bool {
		n, err := store.Count()
		return err == nil && n > 0
	})
	if !ok {
		t.Fatal("written file was never ingested")
	}

	entries, err := store.Search(context.Background(), "fresh corpus", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(entries) == 0 || entries[0].Source != "doc.md" {
		t.Errorf("unexpected search results: %+v", entries)
	}
}

func TestWatcherDebouncesRapidSaves(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	startTestWatcher(t, store, dir)

	// Several saves in quick succession must land as one ingest of the
	// final content, not stack rows from intermediate versions.
	path := filepath.Join(dir, "doc.md")
	for _, body := range []string{"draft one", "draft two", "final draft"} {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ok := waitFor(t, 5*time.Second, func() bool {
		entries, err := store.Search(context.Background(), "final draft", 5)
		return err == nil && len(entries) > 0
	})
	if !ok {
		t.Fatal("final save was never ingested")
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 chunk after debounced saves, got %d", n)
	}
}

func TestWatcherRemovesDeletedSource(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	startTestWatcher(t, store, dir)

	path := writeCorpusFile(t, dir, "doc.md", "content that will go away")
	if !waitFor(t, 5*time.Second, func() bool {
		n, _ := store.Count()
		return n > 0
	}) {
		t.Fatal("file was never ingested")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 5*time.Second, func() bool {
		n, _ := store.Count()
		return n == 0
	}) {
		t.Error("deleted file's chunks were not removed")
	}
}

func TestWatcherIgnoresNonMarkdown(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	startTestWatcher(t, store, dir)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not markdown"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("non-markdown file was ingested: %d chunk(s)", n)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	w, err := NewWatcher(store, t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	w.Stop()
	w.Stop() // second stop must not panic or block
}
