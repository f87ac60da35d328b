// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strconv"
)

// =============================================================================
// KEY-VALUE SETTER
// =============================================================================

// Set assigns a settings field by its persisted key name, parsing the
// value to the field's type. Backs `chatloom config set`. The caller runs
// Validate (usually via Store.Apply) after setting; Set itself only
// rejects unknown keys and unparsable values.
func Set(s *Settings, key, value string) error {
	switch key {
	case "model":
		s.Model = value
	case "engine_url":
		s.EngineURL = value
	case "system_prompt":
		s.SystemPrompt = value
	case "stop_sequences":
		s.StopSequences = value
	case "theme":
		s.Theme = Theme(value)
	case "memory_type":
		s.MemoryType = MemoryType(value)

	case "temperature":
		return setFloat(&s.Temperature, key, value)
	case "top_p":
		return setFloat(&s.TopP, key, value)
	case "repeat_penalty":
		return setFloat(&s.RepeatPenalty, key, value)
	case "mirostat_tau":
		return setFloat(&s.MirostatTau, key, value)
	case "mirostat_eta":
		return setFloat(&s.MirostatEta, key, value)
	case "presence_penalty":
		return setFloat(&s.PresencePenalty, key, value)
	case "frequency_penalty":
		return setFloat(&s.FrequencyPenalty, key, value)

	case "num_ctx":
		return setInt(&s.NumCtx, key, value)
	case "num_gpu":
		return setInt(&s.NumGPU, key, value)
	case "num_thread":
		return setInt(&s.NumThread, key, value)
	case "top_k":
		return setInt(&s.TopK, key, value)
	case "repeat_last_n":
		return setInt(&s.RepeatLastN, key, value)
	case "seed":
		return setInt(&s.Seed, key, value)
	case "mirostat":
		return setInt(&s.Mirostat, key, value)
	case "max_tokens":
		return setInt(&s.MaxTokens, key, value)
	case "font_size":
		return setInt(&s.FontSize, key, value)
	case "memory_k":
		return setInt(&s.MemoryK, key, value)
	case "request_timeout_secs":
		return setInt(&s.RequestTimeoutSecs, key, value)

	case "f16_kv":
		return setBool(&s.F16KV, key, value)
	case "logits_all":
		return setBool(&s.LogitsAll, key, value)
	case "vocab_only":
		return setBool(&s.VocabOnly, key, value)

	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", key, value)
	}
	*dst = f
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, value)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, value)
	}
	*dst = b
	return nil
}
