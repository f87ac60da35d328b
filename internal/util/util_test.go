// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		want    string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"truncated with ellipsis", "hello world", 8, "hello..."},
		{"zero length", "hello", 0, ""},
		{"tiny limit no ellipsis", "hello", 2, "he"},
		{"unicode not split", "héllo wörld", 8, "héllo..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateRunes(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestCollapseLine(t *testing.T) {
	got := CollapseLine("  one\r\ntwo\nthree  ")
	if got != "one two three" {
		t.Errorf("CollapseLine = %q", got)
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 5); got != "ab   " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("abcdef", 3); got != "abcdef" {
		t.Errorf("PadRight should not trim, got %q", got)
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "settings.json")

	if err := AtomicWriteFile(path, []byte(`{"model":"x"}`), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"model":"x"}` {
		t.Errorf("content = %q", data)
	}

	// Overwrite must replace, not append.
	if err := AtomicWriteFile(path, []byte("v2"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v2" {
		t.Errorf("content after overwrite = %q", data)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if e.Name() != "settings.json" {
			t.Errorf("leftover temp file %q", e.Name())
		}
	}
}
