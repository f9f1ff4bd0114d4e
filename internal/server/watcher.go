package server

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/document"
)

// debounceDelay coalesces the burst of events editors produce on save.
const debounceDelay = 100 * time.Millisecond

// Watcher watches a deck directory and calls onReload with the slash path of
// every deck file that was written, created, removed or renamed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	rootDir  string
	onReload func(relPath string) error
	ignored  func(relPath string) bool
	log      *zap.Logger
	done     chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a file watcher for rootDir and its subdirectories.
// ignored may be nil.
func NewWatcher(rootDir string, onReload func(string) error, ignored func(string) bool, l *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = zap.NewNop()
	}
	if ignored == nil {
		ignored = func(string) bool { return false }
	}

	w := &Watcher{
		watcher:  fsWatcher,
		rootDir:  rootDir,
		onReload: onReload,
		ignored:  ignored,
		log:      l,
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}

	if err := w.addDirectoryRecursive(rootDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// addDirectoryRecursive adds a directory and all its subdirectories to the watcher.
func (w *Watcher) addDirectoryRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.rootDir && skipDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.log.Debug("watching directory", zap.String("dir", path))
		return nil
	})
}

// skipDir reports whether a directory is hidden from discovery and watching.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDir(info.Name()) {
				if err := w.addDirectoryRecursive(event.Name); err != nil {
					w.log.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
				}
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !document.IsDeckFile(event.Name) {
		return
	}

	relPath, err := filepath.Rel(w.rootDir, event.Name)
	if err != nil {
		relPath = event.Name
	}
	relPath = filepath.ToSlash(relPath)
	if w.ignored(relPath) {
		return
	}

	w.schedule(relPath)
}

// schedule runs onReload for relPath once no event arrived for it within
// debounceDelay.
func (w *Watcher) schedule(relPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[relPath]; ok {
		t.Reset(debounceDelay)
		return
	}
	w.pending[relPath] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.pending, relPath)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		w.log.Debug("file changed", zap.String("file", relPath))
		if err := w.onReload(relPath); err != nil {
			w.log.Warn("reload failed", zap.String("file", relPath), zap.Error(err))
		}
	})
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
