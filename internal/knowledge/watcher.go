package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"planforge/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-ingests markdown files as they change on disk, so a long-lived
// process keeps its corpus current without manual re-ingest runs.
type Watcher struct {
	store   *Store
	dir     string
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	running  bool
	pending  map[string]time.Time
	debounce time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher over dir feeding the given store.
func NewWatcher(store *Store, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		store:    store,
		dir:      dir,
		watcher:  fsw,
		pending:  make(map[string]time.Time),
		debounce: 500 * time.Millisecond, // batch rapid editor saves
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		logging.Get(logging.CategoryKnowledge).Warn("watcher: failed to create corpus dir %s: %v", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		logging.Get(logging.CategoryKnowledge).Warn("watcher: initial watch failed: %v", err)
	} else {
		logging.Knowledge("watching corpus dir: %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryKnowledge).Error("watcher: close failed: %v", err)
	}
	logging.Knowledge("corpus watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryKnowledge).Error("watcher error: %v", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(strings.ToLower(event.Name), ".md") {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.mu.Lock()
		w.pending[event.Name] = time.Now()
		w.mu.Unlock()

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		source := w.sourceName(event.Name)
		if err := w.store.DeleteSource(source); err != nil {
			logging.Get(logging.CategoryKnowledge).Error("watcher: delete %s failed: %v", source, err)
		} else {
			logging.Knowledge("removed corpus source: %s", source)
		}
	}
}

// flush re-ingests files whose last event is older than the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	var ready []string
	now := time.Now()
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, err := IngestFile(ctx, w.store, w.dir, path); err != nil {
			logging.Get(logging.CategoryKnowledge).Error("watcher: re-ingest %s failed: %v", path, err)
			continue
		}
		logging.Knowledge("re-ingested %s", w.sourceName(path))
	}
}

func (w *Watcher) sourceName(path string) string {
	if rel, err := filepath.Rel(w.dir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}
