// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the bursts of events editors produce on save.
const DefaultWatchDebounce = 250 * time.Millisecond

// WatchOptions configures Watch. Zero values pick defaults.
type WatchOptions struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watch reloads the config file at path whenever it changes and passes the
// result to onChange. Files that fail to load or validate are logged and
// skipped. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file so that
// rename-and-replace saves are seen.
func Watch(ctx context.Context, path string, onChange func(*Config), opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultWatchDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			logger.Warn("config reload failed", "path", path, "error", err)
			return
		}
		logger.Info("config reloaded", "path", path)
		onChange(cfg)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(opts.Debounce, reload)
			} else {
				timer.Reset(opts.Debounce)
			}
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
