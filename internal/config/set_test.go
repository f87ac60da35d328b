// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "testing"

func TestSetByKey(t *testing.T) {
	cases := []struct {
		key, value string
		check      func(Settings) bool
	}{
		{"model", "mistral:7b", func(s Settings) bool { return s.Model == "mistral:7b" }},
		{"temperature", "0.5", func(s Settings) bool { return s.Temperature == 0.5 }},
		{"num_ctx", "4096", func(s Settings) bool { return s.NumCtx == 4096 }},
		{"seed", "-1", func(s Settings) bool { return s.Seed == -1 }},
		{"f16_kv", "true", func(s Settings) bool { return s.F16KV }},
		{"theme", "Dark", func(s Settings) bool { return s.Theme == ThemeDark }},
		{"memory_type", "windowed", func(s Settings) bool { return s.MemoryType == MemoryWindowed }},
		{"memory_k", "9", func(s Settings) bool { return s.MemoryK == 9 }},
		{"stop_sequences", "END,STOP", func(s Settings) bool { return s.StopSequences == "END,STOP" }},
		{"request_timeout_secs", "120", func(s Settings) bool { return s.RequestTimeoutSecs == 120 }},
	}
	for _, tc := range cases {
		cfg := Default()
		if err := Set(&cfg, tc.key, tc.value); err != nil {
			t.Errorf("Set(%q, %q): %v", tc.key, tc.value, err)
			continue
		}
		if !tc.check(cfg) {
			t.Errorf("Set(%q, %q) did not apply", tc.key, tc.value)
		}
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	cfg := Default()
	if err := Set(&cfg, "density", "11"); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestSetRejectsUnparsableValue(t *testing.T) {
	cfg := Default()
	if err := Set(&cfg, "temperature", "warm"); err == nil {
		t.Error("non-numeric temperature accepted")
	}
	if err := Set(&cfg, "memory_k", "many"); err == nil {
		t.Error("non-integer memory_k accepted")
	}
	if err := Set(&cfg, "f16_kv", "sure"); err == nil {
		t.Error("non-boolean f16_kv accepted")
	}
}
