// Package watcher drives the rewrite pipeline from filesystem events so the
// CLI's watch mode can keep a tree converted as files change.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce is how long a path must stay quiet before its handler runs.
// Editors commonly produce several write events per save.
const debounce = 200 * time.Millisecond

// Watcher invokes a handler for C files that are created or written under
// the watched roots.
type Watcher struct {
	w          *fsnotify.Watcher
	extensions map[string]bool
	handle     func(path string)
}

// New creates a watcher over the given roots. Directories are watched
// recursively as they appear; handle runs on the watcher goroutine.
func New(roots []string, extensions map[string]bool, handle func(path string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &Watcher{w: w, extensions: extensions, handle: handle}
	for _, root := range roots {
		if err := fw.addRecursive(root); err != nil {
			w.Close()
			return nil, err
		}
	}
	return fw, nil
}

// Run processes events until the context is cancelled.
func (fw *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, err := os.Stat(ev.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if ev.Op&fsnotify.Create != 0 {
					fw.addRecursive(ev.Name)
				}
				continue
			}
			if fw.extensions[strings.ToLower(filepath.Ext(ev.Name))] {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-fw.w.Errors:
			if !ok {
				return nil
			}
			_ = err // transient; keep watching

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) >= debounce {
					delete(pending, path)
					fw.handle(path)
				}
			}
		}
	}
}

// Close stops the underlying watcher.
func (fw *Watcher) Close() error {
	return fw.w.Close()
}

func (fw *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fw.w.Add(path)
		}
		return nil
	})
}
