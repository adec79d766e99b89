// Package watch reports settled changes to a set of files
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jointcomp/jointcomp/pkg/logger"
)

// DefaultSettlingDelay is used when none is configured
const DefaultSettlingDelay = 100 * time.Millisecond

// Watcher watches individual files through their parent directories, so
// editors that replace a file on save are still seen
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   logger.Logger
	settling time.Duration

	mu    sync.RWMutex
	files map[string]bool
	dirs  map[string]bool
}

// New creates a watcher; a non-positive settling delay uses the default
func New(log logger.Logger, settling time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	if settling <= 0 {
		settling = DefaultSettlingDelay
	}
	return &Watcher{
		watcher:  fsw,
		logger:   log,
		settling: settling,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}, nil
}

// SetFiles replaces the watched set. Directories no longer needed are
// dropped. Missing directories are skipped with a warning.
func (w *Watcher) SetFiles(paths []string) error {
	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for dir := range w.dirs {
		if !dirs[dir] {
			if err := w.watcher.Remove(dir); err != nil {
				w.logger.Debug(fmt.Sprintf("Failed to unwatch %s: %v", dir, err))
			}
		}
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn(fmt.Sprintf("Failed to watch directory %s: %v", dir, err))
			delete(dirs, dir)
			continue
		}
		w.logger.Debug(fmt.Sprintf("Watching directory: %s", dir))
	}

	w.files = files
	w.dirs = dirs
	return nil
}

// Files returns the watched files, sorted
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Run delivers changes until ctx is done. Events are collected until none
// arrives for the settling delay, then onChange receives the changed files
// once. onChange runs on Run's goroutine and may call SetFiles.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) error {
	timer := time.NewTimer(w.settling)
	if !timer.Stop() {
		<-timer.C
	}
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || !w.watched(event.Name) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			timer.Reset(w.settling)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			onChange(changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

func (w *Watcher) watched(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.files[abs]
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
