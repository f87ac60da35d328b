// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama inference
// engine.
package ollama

import (
	"time"

	"github.com/kmorrow/chatloom/internal/config"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Message roles as the engine expects them.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message in a request or response.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options carries the model parameters sent with every request. The JSON
// field names follow the engine's options object.
type Options struct {
	Temperature      float64  `json:"temperature"`
	NumCtx           int      `json:"num_ctx"`
	NumGPU           int      `json:"num_gpu"`
	NumThread        int      `json:"num_thread"`
	TopK             int      `json:"top_k"`
	TopP             float64  `json:"top_p"`
	RepeatPenalty    float64  `json:"repeat_penalty"`
	RepeatLastN      int      `json:"repeat_last_n"`
	Seed             int      `json:"seed"`
	Mirostat         int      `json:"mirostat"`
	MirostatTau      float64  `json:"mirostat_tau"`
	MirostatEta      float64  `json:"mirostat_eta"`
	F16KV            bool     `json:"f16_kv"`
	LogitsAll        bool     `json:"logits_all"`
	VocabOnly        bool     `json:"vocab_only"`
	NumPredict       int      `json:"num_predict,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
}

// OptionsFromSettings maps the persisted settings onto engine options.
// max_tokens <= 0 means unlimited and is omitted from the request.
func OptionsFromSettings(s config.Settings) Options {
	opts := Options{
		Temperature:      s.Temperature,
		NumCtx:           s.NumCtx,
		NumGPU:           s.NumGPU,
		NumThread:        s.NumThread,
		TopK:             s.TopK,
		TopP:             s.TopP,
		RepeatPenalty:    s.RepeatPenalty,
		RepeatLastN:      s.RepeatLastN,
		Seed:             s.Seed,
		Mirostat:         s.Mirostat,
		MirostatTau:      s.MirostatTau,
		MirostatEta:      s.MirostatEta,
		F16KV:            s.F16KV,
		LogitsAll:        s.LogitsAll,
		VocabOnly:        s.VocabOnly,
		PresencePenalty:  s.PresencePenalty,
		FrequencyPenalty: s.FrequencyPenalty,
		Stop:             s.StopList(),
	}
	if s.MaxTokens > 0 {
		opts.NumPredict = s.MaxTokens
	}
	return opts
}

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// ChatRequest is the body for /api/chat.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// ChatResponse is the body of a non-streaming /api/chat reply.
type ChatResponse struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   Message   `json:"message"`
	Done      bool      `json:"done"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
}

// StreamChunk is one piece of a streaming reply.
type StreamChunk struct {
	Content string
	Done    bool
	Model   string
	Error   error

	// Populated on the final chunk.
	TotalDuration    time.Duration
	EvalDuration     time.Duration
	PromptTokens     int
	CompletionTokens int
}

// ModelInfo describes one locally installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListModelsResponse is the body of /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// PullRequest is the body for /api/pull.
type PullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullProgress is one line of the streaming /api/pull reply.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// Percent returns download progress in [0,100], or 0 when total is unknown.
func (p PullProgress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

type apiError struct {
	Error string `json:"error"`
}
