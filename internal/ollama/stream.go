// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses the newline-delimited JSON body of a streaming
// chat response.
type StreamReader struct {
	reader      *bufio.Reader
	accumulator strings.Builder
	model       string
}

// NewStreamReader creates a stream reader over a response body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Process reads the stream and calls the callback for each chunk.
// Blocks until the stream completes or the context is cancelled.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk, err := s.readChunk()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if chunk == nil {
			continue
		}

		if callback != nil {
			callback(*chunk)
		}
		if chunk.Done {
			return nil
		}
	}
}

// readChunk reads and parses one line. Returns (nil, nil) for blank or
// malformed lines, which the engine occasionally emits mid-stream.
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	if len(strings.TrimSpace(string(line))) == 0 {
		return nil, nil
	}

	var response struct {
		Model   string `json:"model"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		Done          bool  `json:"done"`
		TotalDuration int64 `json:"total_duration,omitempty"`
		EvalDuration  int64 `json:"eval_duration,omitempty"`
		PromptCount   int   `json:"prompt_eval_count,omitempty"`
		EvalCount     int   `json:"eval_count,omitempty"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, nil
	}

	if response.Model != "" {
		s.model = response.Model
	}
	if response.Message.Content != "" {
		s.accumulator.WriteString(response.Message.Content)
	}

	chunk := &StreamChunk{
		Content: response.Message.Content,
		Done:    response.Done,
		Model:   s.model,
	}
	if response.Done {
		chunk.TotalDuration = time.Duration(response.TotalDuration)
		chunk.EvalDuration = time.Duration(response.EvalDuration)
		chunk.PromptTokens = response.PromptCount
		chunk.CompletionTokens = response.EvalCount
	}
	return chunk, nil
}

// Accumulated returns all content seen so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}
