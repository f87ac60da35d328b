// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kmorrow/chatloom/internal/config"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the inference client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeUnavailable
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrUnavailable   = &ClientError{Type: ErrTypeUnavailable, Message: "engine temporarily unavailable"}
)

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeModelNotFound
	}
	return false
}

// IsNotRunning checks if an error indicates the engine is not reachable.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning || clientErr.Type == ErrTypeConnection
	}
	return false
}

// IsUnavailable checks if an error is a 503 from the engine. When the
// engine URL resolves through a proxy this usually means the proxy, not
// Ollama, answered.
func IsUnavailable(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeUnavailable
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a local Ollama server. Model name and options are fixed
// at construction from the settings snapshot; rebuild the client after a
// settings change. Safe for concurrent use.
type Client struct {
	baseURL string
	model   string
	opts    Options

	httpClient *http.Client
	// Streaming responses outlive any fixed timeout; cancellation is the
	// caller's context.
	streamClient *http.Client
}

// New builds a client from a settings snapshot.
func New(settings config.Settings) *Client {
	timeout := time.Duration(settings.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      settings.EngineURL,
		model:        settings.Model,
		opts:         OptionsFromSettings(settings),
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// Model returns the model name this client sends requests for.
func (c *Client) Model() string {
	return c.model
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the engine is reachable.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp, "health check")
	}
	return nil
}

// EnsureRunning checks reachability and starts the engine if it is not
// running. The start logic is platform-specific.
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}
	return c.startEngineProcess(ctx)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves the locally installed models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, "list models")
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return result.Models, nil
}

// PullCallback receives progress updates while a model downloads.
type PullCallback func(progress PullProgress)

// Pull downloads a model, reporting progress through the callback. Blocks
// until the download completes or fails.
func (c *Client) Pull(ctx context.Context, model string, callback PullCallback) error {
	body, err := json.Marshal(PullRequest{Name: model, Stream: true})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp, "pull")
	}

	dec := json.NewDecoder(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var progress PullProgress
		if err := dec.Decode(&progress); err != nil {
			// Stream ends without an explicit done marker.
			return nil
		}
		if callback != nil {
			callback(progress)
		}
		if progress.Status == "success" {
			return nil
		}
	}
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat sends a chat request and returns the complete response.
// No retries: the caller decides whether to resubmit.
func (c *Client) Chat(ctx context.Context, messages []Message) (*ChatResponse, error) {
	body, err := json.Marshal(ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  &c.opts,
	})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, "chat")
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// StreamCallback is called for each chunk received during streaming,
// synchronously in arrival order.
type StreamCallback func(chunk StreamChunk)

// ChatStream sends a streaming chat request and calls the callback for
// each chunk. Returns the full accumulated reply text once the stream
// completes. The reply in the final done chunk is authoritative only for
// stats; content is the concatenation of the fragment chunks.
func (c *Client) ChatStream(ctx context.Context, messages []Message, callback StreamCallback) (string, error) {
	body, err := json.Marshal(ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
		Options:  &c.opts,
	})
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", ErrTimeout
		}
		return "", ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp, "chat stream")
	}

	reader := NewStreamReader(resp.Body)
	if err := reader.Process(ctx, callback); err != nil {
		return reader.Accumulated(), err
	}
	return reader.Accumulated(), nil
}

// =============================================================================
// STATUS CLASSIFICATION
// =============================================================================

// classifyStatus maps a non-200 response onto the error taxonomy, pulling
// the engine's error message out of the body when there is one.
func classifyStatus(resp *http.Response, op string) error {
	var detail string
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		detail = apiErr.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		if detail != "" {
			return &ClientError{Type: ErrTypeModelNotFound, Message: detail}
		}
		return ErrModelNotFound
	case http.StatusServiceUnavailable:
		return ErrUnavailable
	default:
		msg := op + " failed: " + resp.Status
		if detail != "" {
			msg = op + " failed: " + detail
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}
}
