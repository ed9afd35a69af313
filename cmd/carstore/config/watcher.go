// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jinterlante1206/carstore/pkg/logging"
)

// DefaultReloadDebounce coalesces the burst of events an editor save
// produces into one reload.
const DefaultReloadDebounce = 100 * time.Millisecond

// ReloadFunc receives each configuration that loaded and validated after
// a change on disk.
type ReloadFunc func(cfg CarstoreConfig)

// Watcher reloads the config file when it changes on disk.
//
// # Description
//
// Watches the directory holding the config file, since editors often
// replace the file rather than write it in place. Events for other files
// in the directory are ignored. A change that fails to parse or validate
// is logged and the previous configuration stays in effect.
//
// # Thread Safety
//
// Run should be called once, from one goroutine. Close is safe to call
// concurrently with Run.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	logger   *logging.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for the config file at path.
//
// # Inputs
//
//   - path: Config path, resolved the same way LoadFile resolves it.
//   - debounce: Quiet period before reloading. Zero uses DefaultReloadDebounce.
//   - onReload: Called with each new valid configuration. Must not be nil.
//   - logger: Destination for reload warnings. Nil discards them.
//
// # Outputs
//
//   - *Watcher: Ready to Run.
//   - error: Non-nil if the path cannot be resolved or watched.
func NewWatcher(path string, debounce time.Duration, onReload ReloadFunc, logger *logging.Logger) (*Watcher, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	if logger == nil {
		logger = logging.Nop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(resolved)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(resolved), err)
	}

	return &Watcher{
		path:     filepath.Clean(resolved),
		debounce: debounce,
		onReload: onReload,
		logger:   logger.With("component", "config_watcher", "path", resolved),
		watcher:  fw,
	}, nil
}

// Path returns the resolved config path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run delivers reloads until ctx is cancelled or the watcher is closed.
// It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-timer.C:
			w.reload()
		}
	}
}

// Close stops the watcher. Run returns shortly after.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous settings", "error", err)
		return
	}
	w.logger.Info("config reloaded")
	w.onReload(cfg)
}
