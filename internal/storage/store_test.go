// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "chats.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveLoadListDelete(t *testing.T) {
	store := openTestStore(t)

	// Fresh store lists nothing.
	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("expected empty list, got %d entries", len(metas))
	}

	id, err := store.Save("hello world", []StoredMessage{
		{Content: "hello world", IsUser: true},
		{Content: "hi there", IsUser: false},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != 1 {
		t.Errorf("first session id = %d, want 1", id)
	}

	title, messages, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if title != "hello world" {
		t.Errorf("title = %q, want %q", title, "hello world")
	}
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	if !messages[0].IsUser || messages[0].Content != "hello world" {
		t.Errorf("messages[0] = %+v, want user 'hello world'", messages[0])
	}
	if messages[1].IsUser || messages[1].Content != "hi there" {
		t.Errorf("messages[1] = %+v, want assistant 'hi there'", messages[1])
	}

	metas, err = store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 || metas[0].ID != id || metas[0].Title != "hello world" {
		t.Errorf("List = %+v, want single entry for session %d", metas, id)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	metas, err = store.List()
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("expected empty list after delete, got %d entries", len(metas))
	}
}

func TestLoadNotFound(t *testing.T) {
	store := openTestStore(t)

	_, _, err := store.Load(42)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load(42) error = %v, want ErrSessionNotFound", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store := openTestStore(t)

	if err := store.Delete(999); err != nil {
		t.Errorf("Delete of absent session: %v, want nil", err)
	}
}

func TestLoadDeduplicatesByContent(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Save("dup", []StoredMessage{
		{Content: "same", IsUser: true},
		{Content: "reply", IsUser: false},
		{Content: "same", IsUser: true},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, messages, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2 after dedup", len(messages))
	}
	if messages[0].Content != "same" || messages[1].Content != "reply" {
		t.Errorf("dedup lost first-seen order: %+v", messages)
	}
}

func TestListOrdering(t *testing.T) {
	store := openTestStore(t)

	first, err := store.Save("first", nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := store.Save("second", nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Touching the older session moves it to the front.
	time.Sleep(1100 * time.Millisecond)
	if err := store.Touch(first); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(metas) = %d, want 2", len(metas))
	}
	if metas[0].ID != first || metas[1].ID != second {
		t.Errorf("List order = [%d %d], want [%d %d]", metas[0].ID, metas[1].ID, first, second)
	}
}

func TestSearch(t *testing.T) {
	store := openTestStore(t)

	alpha, err := store.Save("groceries", []StoredMessage{
		{Content: "buy milk and EGGS", IsUser: true},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save("weather", []StoredMessage{
		{Content: "will it rain", IsUser: true},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tests := []struct {
		query string
		want  []int64
	}{
		{"groceries", []int64{alpha}}, // title match
		{"eggs", []int64{alpha}},      // content match, case-insensitive
		{"nothing", nil},
	}
	for _, tt := range tests {
		metas, err := store.Search(tt.query)
		if err != nil {
			t.Fatalf("Search(%q): %v", tt.query, err)
		}
		if len(metas) != len(tt.want) {
			t.Errorf("Search(%q) returned %d sessions, want %d", tt.query, len(metas), len(tt.want))
			continue
		}
		for i, meta := range metas {
			if meta.ID != tt.want[i] {
				t.Errorf("Search(%q)[%d].ID = %d, want %d", tt.query, i, meta.ID, tt.want[i])
			}
		}
	}
}

func TestSearchNoDuplicateRows(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Save("chat", []StoredMessage{
		{Content: "token here", IsUser: true},
		{Content: "token again", IsUser: false},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	metas, err := store.Search("token")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(metas) != 1 || metas[0].ID != id {
		t.Errorf("Search matched %d rows, want 1 distinct session", len(metas))
	}
}

func TestClearAll(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Save("a", []StoredMessage{{Content: "x", IsUser: true}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save("b", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("expected empty store after ClearAll, got %d sessions", len(metas))
	}
}

func TestRoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chats.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := store.Save("persisted", []StoredMessage{
		{Content: "question", IsUser: true},
		{Content: "answer", IsUser: false},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	title, messages, err := reopened.Load(id)
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if title != "persisted" || len(messages) != 2 {
		t.Errorf("round trip lost data: title=%q messages=%d", title, len(messages))
	}
}
