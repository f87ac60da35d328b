// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	cfg := Default()

	if cfg.Model != "llama3.2:1b" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Temperature != 0.8 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	if cfg.NumCtx != 2048 {
		t.Errorf("NumCtx = %d", cfg.NumCtx)
	}
	if cfg.Seed != -1 {
		t.Errorf("Seed = %d, want -1 sentinel", cfg.Seed)
	}
	if cfg.MemoryType != MemoryFull {
		t.Errorf("MemoryType = %q", cfg.MemoryType)
	}
	if cfg.Theme != ThemeLight {
		t.Errorf("Theme = %q", cfg.Theme)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if cfg != Default() {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(PathJSON(dir), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err == nil {
		t.Error("corrupt file should report an informational error")
	}
	if cfg != Default() {
		t.Error("corrupt file should yield defaults")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Model = "mistral:7b"
	cfg.Temperature = 0.3
	cfg.MemoryType = MemoryWindowed
	cfg.MemoryK = 8
	cfg.StopSequences = "END, STOP"

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoadTOMLFallback(t *testing.T) {
	dir := t.TempDir()
	tomlBody := "model = \"phi3:mini\"\ntemperature = 0.5\n"
	if err := os.WriteFile(PathTOML(dir), []byte(tomlBody), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "phi3:mini" {
		t.Errorf("Model = %q, want TOML value", cfg.Model)
	}
	if cfg.Temperature != 0.5 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	// Keys absent from the file keep defaults.
	if cfg.NumCtx != 2048 {
		t.Errorf("NumCtx = %d, want default", cfg.NumCtx)
	}
}

func TestValidateClamps(t *testing.T) {
	cfg := Settings{
		Temperature: 9.9,
		Mirostat:    7,
		MemoryK:     0,
		Theme:       "Neon",
		MemoryType:  "infinite",
	}
	cfg.Validate()

	if cfg.Temperature != 0.8 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
	if cfg.Mirostat != 0 {
		t.Errorf("Mirostat = %d", cfg.Mirostat)
	}
	if cfg.MemoryK != 5 {
		t.Errorf("MemoryK = %d", cfg.MemoryK)
	}
	if cfg.Theme != ThemeLight {
		t.Errorf("Theme = %q", cfg.Theme)
	}
	if cfg.MemoryType != MemoryFull {
		t.Errorf("MemoryType = %q", cfg.MemoryType)
	}
}

func TestStopList(t *testing.T) {
	cfg := Settings{StopSequences: "END, STOP ,,###"}
	got := cfg.StopList()
	want := []string{"END", "STOP", "###"}
	if len(got) != len(want) {
		t.Fatalf("StopList = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StopList[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	empty := Settings{}
	if empty.StopList() != nil {
		t.Error("empty stop sequences should produce nil")
	}
}

func TestStoreApply(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, Default())

	var notified []Settings
	store.Subscribe(func(s Settings) {
		notified = append(notified, s)
	})

	next := store.Get()
	next.Model = "qwen2.5:3b"
	if err := store.Apply(next); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if store.Get().Model != "qwen2.5:3b" {
		t.Error("Apply did not swap settings")
	}
	if len(notified) != 1 || notified[0].Model != "qwen2.5:3b" {
		t.Errorf("subscriber not notified: %+v", notified)
	}

	// Apply persists to disk.
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("Apply should persist settings: %v", err)
	}
	loaded, _ := Load(dir)
	if loaded.Model != "qwen2.5:3b" {
		t.Error("persisted settings do not match applied settings")
	}
}

func TestStoreReload(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, Default())

	cfg := Default()
	cfg.Model = "external-edit"
	if err := Save(dir, cfg); err != nil {
		t.Fatal(err)
	}

	if err := store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if store.Get().Model != "external-edit" {
		t.Error("Reload did not pick up external edit")
	}
}

func TestDirHonorsEnv(t *testing.T) {
	t.Setenv("CHATLOOM_HOME", "/tmp/chatloom-test-home")
	dir, err := Dir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/chatloom-test-home" {
		t.Errorf("Dir = %q", dir)
	}
}
