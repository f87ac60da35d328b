// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"sync"
)

// =============================================================================
// SETTINGS STORE
// =============================================================================

// Store holds the live settings for the process. Components read whole-
// struct snapshots; mutation goes through the single Apply transaction,
// which swaps the struct atomically, persists it, and notifies listeners.
type Store struct {
	mu        sync.RWMutex
	dir       string
	current   Settings
	listeners []func(Settings)
}

// NewStore creates a store over the given state directory and initial
// settings.
func NewStore(dir string, initial Settings) *Store {
	initial.Validate()
	return &Store{
		dir:     dir,
		current: initial,
	}
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Dir returns the state directory the store persists into.
func (s *Store) Dir() string {
	return s.dir
}

// Subscribe registers a listener invoked after every successful apply.
// Listeners run on the applying goroutine and receive a snapshot.
func (s *Store) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Apply validates and swaps in new settings, persists them, and notifies
// subscribers. The swap happens even if persistence fails, so the running
// process honors the user's choice; the error reports the save failure.
func (s *Store) Apply(next Settings) error {
	next.Validate()

	s.mu.Lock()
	s.current = next
	listeners := make([]func(Settings), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	err := Save(s.dir, next)

	for _, fn := range listeners {
		fn(next)
	}
	return err
}

// Reload re-reads the settings file and applies the result without
// persisting again. Used by the file watcher when the settings file is
// edited externally.
func (s *Store) Reload() error {
	next, err := Load(s.dir)

	s.mu.Lock()
	s.current = next
	listeners := make([]func(Settings), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return err
}
