package index

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/bzl/internal/bazel"
)

// Watcher keeps an Index in sync with BUILD file changes made outside the
// editor (generated files, branch switches). It watches every directory
// under the workspace root and applies UpdateFile/RemoveFile as events
// arrive.
type Watcher struct {
	ix        *Index
	fsWatcher *fsnotify.Watcher
	done      chan struct{}
}

// NewWatcher creates and starts a watcher for the index's workspace.
func NewWatcher(ix *Index) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		ix:        ix,
		fsWatcher: fsWatcher,
		done:      make(chan struct{}),
	}

	if err := w.addDirs(ix.Root()); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// addDirs registers the workspace directory tree, skipping the same
// directories the BUILD file walk skips.
func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "bazel-")) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			log.Printf("watcher: cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// New directories need to be registered for their own events.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addDirs(event.Name)
			return
		}
	}

	if !bazel.IsBuildFile(filepath.Base(event.Name)) {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		if err := w.ix.UpdateFile(event.Name); err != nil {
			log.Printf("watcher: reindex %s: %v", event.Name, err)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.ix.RemoveFile(event.Name)
	}
}
