// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package index

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cerebro-notes/cerebro/internal/vault"
)

// watchDebounce coalesces bursts of filesystem events into one pass.
const watchDebounce = 500 * time.Millisecond

// Watcher triggers a non-forced index pass when files under the vault
// change. Events are debounced so editors that write in several steps
// cause a single reconciliation.
type Watcher struct {
	indexer *Indexer
	root    string
	logger  *slog.Logger
}

// NewWatcher creates a watcher over the indexer's vault root.
func NewWatcher(indexer *Indexer, root string) *Watcher {
	return &Watcher{indexer: indexer, root: root, logger: slog.Default()}
}

// Run blocks until ctx is cancelled, reindexing after changes settle.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			// New directories need their own watch.
			if ev.Op.Has(fsnotify.Create) {
				_ = w.addRecursive(fw, ev.Name)
			}
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(watchDebounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("vault watcher error", "error", err)

		case <-fire:
			timer = nil
			if _, err := w.indexer.Index(ctx, false); err != nil {
				w.logger.Warn("watch-triggered index pass failed", "error", err)
			}
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree: skip, the next pass will log it
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == vault.StateDirName || (strings.HasPrefix(name, ".") && path != root) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if strings.Contains(ev.Name, string(filepath.Separator)+vault.StateDirName+string(filepath.Separator)) {
		return false
	}
	// Directories have no extension; let them through so new folders get
	// watched and their contents picked up.
	ext := strings.ToLower(filepath.Ext(ev.Name))
	return ext == "" || ext == ".md"
}
