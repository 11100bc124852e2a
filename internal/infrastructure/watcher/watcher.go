package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirectoryWatcher reports changes below a documents directory. Bursts of
// events are collapsed into one notification after the debounce interval.
type DirectoryWatcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

func New(root string, debounce time.Duration) (*DirectoryWatcher, error) {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	w := &DirectoryWatcher{root: root, debounce: debounce, watcher: watcher}
	if err := w.addTree(root); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *DirectoryWatcher) Close() error {
	return w.watcher.Close()
}

// Run calls onChange with the last changed path once per debounced burst and
// returns when ctx is done.
func (w *DirectoryWatcher) Run(ctx context.Context, onChange func(ctx context.Context, path string)) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := ""

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						slog.Warn("document_watch_add_failed", "path", event.Name, "error", err)
					}
				}
			}
			pending = event.Name
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("document_watch_error", "error", err)
		case <-timer.C:
			if pending != "" {
				onChange(ctx, pending)
				pending = ""
			}
		}
	}
}

func (w *DirectoryWatcher) relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

func (w *DirectoryWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
