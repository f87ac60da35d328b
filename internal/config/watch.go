// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// SETTINGS FILE WATCHER
// =============================================================================

// Watcher reloads the settings store when the settings file is edited
// outside the application. Events are debounced: editors produce bursts
// of writes for a single save.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWatcher creates a watcher over the store's settings directory.
func NewWatcher(store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:    store,
		watcher:  fsw,
		debounce: 500 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching. The settings directory (not the file) is
// watched, so atomic rename-over saves are observed.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(w.store.Dir()); err != nil {
		return err
	}
	go w.processEvents()
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != "config.json" &&
				filepath.Base(event.Name) != "config.toml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			// A self-inflicted reload after Apply is harmless: the file
			// content matches the live settings.
			w.store.Reload()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
