// Package watcher rebuilds the graph when extractor inputs change on disk.
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

	"github.com/ritzau/depgraph/pkg/finder"
	"github.com/ritzau/depgraph/pkg/logging"
)

// batchWindow collects raw fsnotify events into one ChangeEvent
const batchWindow = 100 * time.Millisecond

// ChangeEvent is a batch of input changes. A path appears in at most one
// of Written and Removed; the latest operation wins.
type ChangeEvent struct {
	Written   []string
	Removed   []string
	Timestamp time.Time
}

// Empty reports whether the batch carries no paths
func (e ChangeEvent) Empty() bool {
	return len(e.Written) == 0 && len(e.Removed) == 0
}

// FileWatcher watches the workspace tree and the resolved bazel-out tree
// for created, written and removed extractor inputs.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	workspace string
	events    chan ChangeEvent
	log       *slog.Logger
}

// NewFileWatcher creates a watcher rooted at workspace
func NewFileWatcher(workspace string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		watcher:   watcher,
		workspace: workspace,
		events:    make(chan ChangeEvent, 16),
		log:       logging.New("watcher"),
	}, nil
}

// Start registers the watched directories and processes events until ctx
// is cancelled. The Events channel is closed afterwards.
func (fw *FileWatcher) Start(ctx context.Context) error {
	count, err := fw.watchTree(fw.workspace, true)
	if err != nil {
		return err
	}

	bazelOut, err := filepath.EvalSymlinks(filepath.Join(fw.workspace, "bazel-out"))
	switch {
	case err == nil:
		n, err := fw.watchTree(bazelOut, false)
		if err != nil {
			fw.log.Warn("Failed to watch bazel-out", "path", bazelOut, "error", err)
		}
		count += n
	case !os.IsNotExist(err):
		fw.log.Warn("Failed to resolve bazel-out", "error", err)
	default:
		fw.log.Info("bazel-out does not exist yet, skipping")
	}

	fw.log.Info("Started watching workspace", "path", fw.workspace, "directories", count)
	go fw.processEvents(ctx)
	return nil
}

// watchTree adds every directory below root. Within the workspace, bazel-*
// links and .git are skipped.
func (fw *FileWatcher) watchTree(root string, workspace bool) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if workspace && path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.log.Warn("Failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return count, nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, "bazel-") || name == ".git"
}

// processEvents batches relevant events for batchWindow after the first one
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := make(map[string]bool) // path -> removed
	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		event := ChangeEvent{Timestamp: time.Now()}
		for path, removed := range pending {
			if removed {
				event.Removed = append(event.Removed, path)
			} else {
				event.Written = append(event.Written, path)
			}
		}
		sortEvent(&event)
		clear(pending)

		select {
		case fw.events <- event:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.handle(event, pending) {
				flushTimer.Reset(batchWindow)
			}

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error("Watcher error", "error", err)
		}
	}
}

// handle records an input change in pending and reports whether it did.
// New directories are watched as they appear.
func (fw *FileWatcher) handle(event fsnotify.Event, pending map[string]bool) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDir(info.Name()) {
				if _, err := fw.watchTree(event.Name, true); err != nil {
					fw.log.Warn("Failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return false
		}
	}
	if !finder.IsInput(event.Name) {
		return false
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pending[event.Name] = true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		pending[event.Name] = false
	default:
		return false
	}
	logging.Trace("input changed", "path", event.Name, "op", event.Op.String())
	return true
}

// Events returns the channel of change batches
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
