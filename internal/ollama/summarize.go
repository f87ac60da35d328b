// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// =============================================================================
// SUMMARIZATION
// =============================================================================

// summarizeSystemPrompt steers the model toward a dense, reusable summary.
const summarizeSystemPrompt = `You are a conversation summarizer. Create a concise summary of the conversation you are given.

Guidelines:
- Keep the summary under 200 words
- Preserve names, numbers, decisions, and open questions
- Omit pleasantries and repetition
- Write it so the conversation can be continued from the summary alone`

// summarizeOptions overrides the chat sampling for summaries: low
// temperature for focus, bounded length.
func summarizeOptions() *Options {
	return &Options{
		Temperature: 0.3,
		NumPredict:  500,
	}
}

// Summarize condenses a transcript into a short summary using a
// non-streaming chat call with dedicated sampling options.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}

	body, err := json.Marshal(ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: RoleSystem, Content: summarizeSystemPrompt},
			{Role: RoleUser, Content: "Summarize the following conversation:\n---\n" + transcript},
		},
		Stream:  false,
		Options: summarizeOptions(),
	})
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp, "summarize")
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	summary := strings.TrimSpace(result.Message.Content)
	if summary == "" {
		return "", fmt.Errorf("received empty summary")
	}
	return summary, nil
}
