// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides settings loading, validation, and the apply
// transaction for chatloom.
//
// Settings live in a single JSON object at ~/.chatloom/config.json, with a
// TOML fallback at ~/.chatloom/config.toml. A missing or unparsable file
// falls back to built-in defaults; the application keeps running.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kmorrow/chatloom/internal/util"
)

// =============================================================================
// SETTINGS
// =============================================================================

// MemoryType selects how much history is forwarded to the engine per request.
type MemoryType string

const (
	MemoryFull       MemoryType = "full"
	MemoryWindowed   MemoryType = "windowed"
	MemorySummarized MemoryType = "summarized"
)

// Theme is the UI color theme.
type Theme string

const (
	ThemeLight  Theme = "Light"
	ThemeDark   Theme = "Dark"
	ThemeSystem Theme = "System"
)

// Settings is the flat key set persisted to the settings file. Sampling
// knobs are forwarded verbatim to the engine at client construction time;
// changing any of them requires a new client instance.
type Settings struct {
	Model       string  `json:"model" toml:"model"`
	Temperature float64 `json:"temperature" toml:"temperature"`
	NumCtx      int     `json:"num_ctx" toml:"num_ctx"`
	NumGPU      int     `json:"num_gpu" toml:"num_gpu"`
	NumThread   int     `json:"num_thread" toml:"num_thread"`

	TopK             int     `json:"top_k" toml:"top_k"`
	TopP             float64 `json:"top_p" toml:"top_p"`
	RepeatPenalty    float64 `json:"repeat_penalty" toml:"repeat_penalty"`
	RepeatLastN      int     `json:"repeat_last_n" toml:"repeat_last_n"`
	Seed             int     `json:"seed" toml:"seed"` // -1 means random
	Mirostat         int     `json:"mirostat" toml:"mirostat"`
	MirostatTau      float64 `json:"mirostat_tau" toml:"mirostat_tau"`
	MirostatEta      float64 `json:"mirostat_eta" toml:"mirostat_eta"`
	F16KV            bool    `json:"f16_kv" toml:"f16_kv"`
	LogitsAll        bool    `json:"logits_all" toml:"logits_all"`
	VocabOnly        bool    `json:"vocab_only" toml:"vocab_only"`
	MaxTokens        int     `json:"max_tokens" toml:"max_tokens"`
	StopSequences    string  `json:"stop_sequences" toml:"stop_sequences"` // comma-separated
	PresencePenalty  float64 `json:"presence_penalty" toml:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty" toml:"frequency_penalty"`

	FontSize int   `json:"font_size" toml:"font_size"`
	Theme    Theme `json:"theme" toml:"theme"`

	MemoryType   MemoryType `json:"memory_type" toml:"memory_type"`
	MemoryK      int        `json:"memory_k" toml:"memory_k"`
	SystemPrompt string     `json:"system_prompt" toml:"system_prompt"`

	// EngineURL is the base URL of the local inference server.
	EngineURL string `json:"engine_url" toml:"engine_url"`
	// RequestTimeoutSecs bounds a single inference request (0 = no timeout).
	RequestTimeoutSecs int `json:"request_timeout_secs" toml:"request_timeout_secs"`
}

// Default returns the built-in default settings.
func Default() Settings {
	return Settings{
		Model:       "llama3.2:1b",
		Temperature: 0.8,
		NumCtx:      2048,
		NumGPU:      1,
		NumThread:   4,

		TopK:          40,
		TopP:          0.9,
		RepeatPenalty: 1.1,
		RepeatLastN:   64,
		Seed:          -1,
		Mirostat:      0,
		MirostatTau:   5.0,
		MirostatEta:   0.1,
		MaxTokens:     2048,

		FontSize: 12,
		Theme:    ThemeLight,

		MemoryType: MemoryFull,
		MemoryK:    5,

		EngineURL:          "http://127.0.0.1:11434",
		RequestTimeoutSecs: 0,
	}
}

// StopList splits the comma-separated stop sequences, dropping empties.
func (s Settings) StopList() []string {
	if strings.TrimSpace(s.StopSequences) == "" {
		return nil
	}
	parts := strings.Split(s.StopSequences, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate clamps out-of-range values and normalizes enums. It never
// fails outright: a bad settings file degrades to safe values so startup
// can continue.
func (s *Settings) Validate() {
	if s.Model == "" {
		s.Model = Default().Model
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		s.Temperature = 0.8
	}
	if s.NumCtx <= 0 {
		s.NumCtx = 2048
	}
	if s.TopP <= 0 || s.TopP > 1 {
		s.TopP = 0.9
	}
	if s.TopK <= 0 {
		s.TopK = 40
	}
	if s.Mirostat < 0 || s.Mirostat > 2 {
		s.Mirostat = 0
	}
	if s.MemoryK < 1 {
		s.MemoryK = 5
	}
	if s.FontSize < 6 {
		s.FontSize = 12
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = 2048
	}
	if s.RequestTimeoutSecs < 0 {
		s.RequestTimeoutSecs = 0
	}
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		s.Theme = ThemeLight
	}
	switch s.MemoryType {
	case MemoryFull, MemoryWindowed, MemorySummarized:
	default:
		s.MemoryType = MemoryFull
	}
	if s.EngineURL == "" {
		s.EngineURL = Default().EngineURL
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the chatloom state directory, honoring CHATLOOM_HOME.
func Dir() (string, error) {
	if dir := os.Getenv("CHATLOOM_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatloom"), nil
}

// PathJSON returns the path to the JSON settings file.
func PathJSON(dir string) string {
	return filepath.Join(dir, "config.json")
}

// PathTOML returns the path to the TOML settings file.
func PathTOML(dir string) string {
	return filepath.Join(dir, "config.toml")
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads settings from dir, trying JSON then TOML, and falls back to
// defaults on any failure. The returned error is informational only: the
// settings are always usable.
func Load(dir string) (Settings, error) {
	cfg := Default()

	jsonPath := PathJSON(dir)
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			cfg = Default()
			cfg.applyEnvOverrides()
			cfg.Validate()
			return cfg, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
		cfg.applyEnvOverrides()
		cfg.Validate()
		return cfg, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		cfg.applyEnvOverrides()
		cfg.Validate()
		return cfg, fmt.Errorf("failed to read %s: %w", jsonPath, err)
	}

	tomlPath := PathTOML(dir)
	if _, err := os.Stat(tomlPath); err == nil {
		if _, err := toml.DecodeFile(tomlPath, &cfg); err != nil {
			cfg = Default()
			cfg.applyEnvOverrides()
			cfg.Validate()
			return cfg, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.Validate()
	return cfg, nil
}

// Save persists settings to the JSON file with an atomic write.
// Settings files are 0600: they may carry a private system prompt.
func Save(dir string, cfg Settings) error {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := util.AtomicWriteFile(PathJSON(dir), data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Useful for
// pointing at a non-default engine without editing the settings file.
func (s *Settings) applyEnvOverrides() {
	if v := os.Getenv("CHATLOOM_MODEL"); v != "" {
		s.Model = v
	}
	if v := os.Getenv("CHATLOOM_ENGINE_URL"); v != "" {
		s.EngineURL = v
	}
}
