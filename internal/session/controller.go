// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates the chat loop: it owns the active
// conversation, drives inference requests, streams reply fragments to the
// UI, and persists completed turns.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kmorrow/chatloom/internal/config"
	"github.com/kmorrow/chatloom/internal/memory"
	"github.com/kmorrow/chatloom/internal/model"
	"github.com/kmorrow/chatloom/internal/ollama"
	"github.com/kmorrow/chatloom/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyInput is returned when a submitted prompt is blank.
	ErrEmptyInput = errors.New("empty input")

	// ErrBusy is returned when a prompt arrives while a reply is still
	// in flight. The caller should surface a notice, not queue.
	ErrBusy = errors.New("a response is already in progress")
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's position in the request lifecycle. The
// controller is back to StateIdle once a request completes or fails; the
// outcome itself travels on the terminal event.
type State int

const (
	StateIdle State = iota
	StateSending
	StateAwaitingResponse
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateAwaitingResponse:
		return "awaiting response"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// Event is a notification from the controller's worker to the UI. Each
// event carries the generation of the request that produced it. The
// controller checks the generation under its lock before every delivery,
// so a superseded worker goes quiet rather than emitting stale events.
type Event interface {
	Generation() uint64
}

type eventBase struct {
	Gen uint64
}

func (e eventBase) Generation() uint64 { return e.Gen }

// StartedEvent fires when the request is accepted and the assistant
// placeholder message exists.
type StartedEvent struct {
	eventBase
	MessageID string
}

// FragmentEvent carries one streamed piece of the reply.
type FragmentEvent struct {
	eventBase
	MessageID string
	Content   string
}

// CompletedEvent fires when the reply finished and was persisted.
// Final is the authoritative full reply text.
type CompletedEvent struct {
	eventBase
	MessageID string
	Final     string
}

// FailedEvent fires when the request failed. Notice is user-facing;
// OfferPull indicates the model is missing locally and a pull would help.
type FailedEvent struct {
	eventBase
	Notice    string
	OfferPull bool
	Err       error
}

// =============================================================================
// INFERENCE CLIENT
// =============================================================================

// InferenceClient is the slice of the engine client the controller needs.
type InferenceClient interface {
	ChatStream(ctx context.Context, messages []ollama.Message, callback ollama.StreamCallback) (string, error)
	Summarize(ctx context.Context, transcript string) (string, error)
	Model() string
}

// =============================================================================
// CONTROLLER
// =============================================================================

const eventBuffer = 256

// Controller owns one active conversation at a time. All exported methods
// are safe for concurrent use; inference runs on a single worker goroutine
// per request.
type Controller struct {
	mu sync.Mutex

	state  State
	gen    uint64
	cancel context.CancelFunc

	conv   *model.Conversation
	buffer *memory.Buffer

	client   InferenceClient
	store    *storage.Store
	settings config.Settings
	logger   *slog.Logger

	events chan Event
}

// New creates a controller with a fresh unsaved conversation.
func New(client InferenceClient, store *storage.Store, settings config.Settings, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		state:    StateIdle,
		conv:     model.NewConversation(),
		buffer:   memory.New(settings.MemoryType, settings.MemoryK),
		client:   client,
		store:    store,
		settings: settings,
		logger:   logger,
		events:   make(chan Event, eventBuffer),
	}
}

// Events returns the channel the UI drains for streaming updates.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Conversation returns a deep copy of the active conversation, taken
// under the controller's lock. The worker goroutine keeps appending to
// the live transcript while a reply streams, so callers get a snapshot
// they can read at leisure rather than a handle into shared state.
func (c *Controller) Conversation() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Clone()
}

// busyLocked reports whether a request is in flight.
func (c *Controller) busyLocked() bool {
	return c.state != StateIdle
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit sends a prompt. Whitespace-only input returns ErrEmptyInput; a
// submit while a reply is in flight returns ErrBusy and changes nothing.
// On success the user message is in the conversation immediately and the
// reply streams through the events channel.
func (c *Controller) Submit(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}

	userMsg := model.NewUserMessage(trimmed)
	c.conv.AddMessage(userMsg)
	c.buffer.AddUserMessage(trimmed)

	assistantMsg := model.NewAssistantMessage()
	c.conv.AddMessage(assistantMsg)

	c.gen++
	gen := c.gen
	c.state = StateSending

	ctx, cancel := context.WithCancel(context.Background())
	if secs := c.settings.RequestTimeoutSecs; secs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(secs)*time.Second)
	}
	c.cancel = cancel

	request := c.requestMessagesLocked()
	modelName := c.client.Model()
	// Started is emitted here, inside the critical section that bumped the
	// generation, so it can never arrive tagged with a superseded one.
	c.emitLocked(StartedEvent{eventBase{gen}, assistantMsg.ID})
	c.mu.Unlock()

	c.logger.Info("submitting prompt",
		"generation", gen, "model", modelName, "context_len", len(request))

	go c.run(ctx, gen, assistantMsg, request)
	return nil
}

// requestMessagesLocked builds the wire messages for the next request:
// optional system prompt, then the memory buffer's context window. The
// just-added empty assistant placeholder never reaches the wire because
// the buffer only learns of assistant turns on completion.
func (c *Controller) requestMessagesLocked() []ollama.Message {
	window := c.buffer.ContextWindow()
	msgs := make([]ollama.Message, 0, len(window)+1)
	if sp := strings.TrimSpace(c.settings.SystemPrompt); sp != "" {
		msgs = append(msgs, ollama.Message{Role: ollama.RoleSystem, Content: sp})
	}
	for _, entry := range window {
		role := ollama.RoleAssistant
		if entry.IsUser {
			role = ollama.RoleUser
		}
		msgs = append(msgs, ollama.Message{Role: role, Content: entry.Content})
	}
	return msgs
}

// =============================================================================
// WORKER
// =============================================================================

func (c *Controller) run(ctx context.Context, gen uint64, assistantMsg *model.Message, request []ollama.Message) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateAwaitingResponse
	client := c.client
	c.mu.Unlock()

	final, err := client.ChatStream(ctx, request, func(chunk ollama.StreamChunk) {
		if chunk.Done || chunk.Content == "" {
			return
		}
		c.mu.Lock()
		if gen == c.gen {
			c.state = StateStreaming
			assistantMsg.AppendFragment(chunk.Content)
			c.emitLocked(FragmentEvent{eventBase{gen}, assistantMsg.ID, chunk.Content})
		}
		c.mu.Unlock()
	})

	c.mu.Lock()
	if gen != c.gen {
		// Superseded while streaming; the new owner already reset state.
		c.mu.Unlock()
		return
	}
	// Detach the cancel func but keep the context alive: the memory
	// compaction below still uses it.
	cancel := c.cancel
	c.cancel = nil
	if cancel != nil {
		defer cancel()
	}

	if err != nil {
		c.conv.RemoveMessage(assistantMsg.ID)
		c.state = StateIdle
		notice, offerPull := classifyFailure(err, client.Model())
		delivered := c.emitLocked(FailedEvent{eventBase{gen}, notice, offerPull, err})
		c.mu.Unlock()

		c.logger.Error("inference failed", "generation", gen, "error", err)
		if !delivered {
			c.events <- FailedEvent{eventBase{gen}, notice, offerPull, err}
		}
		return
	}

	assistantMsg.FinalizeStream(final)
	c.buffer.AddAIMessage(final)
	c.state = StateIdle
	c.mu.Unlock()

	if err := c.persist(); err != nil {
		c.logger.Error("failed to persist turn", "error", err)
	}

	c.mu.Lock()
	delivered := gen != c.gen || c.emitLocked(CompletedEvent{eventBase{gen}, assistantMsg.ID, final})
	c.mu.Unlock()
	if !delivered {
		c.events <- CompletedEvent{eventBase{gen}, assistantMsg.ID, final}
	}

	c.compactMemory(ctx, client)
}

// emitLocked delivers an event without blocking, with c.mu held so no
// generation bump can interleave between the check and the send. Reports
// whether the event made it onto the channel; terminal events a full
// buffer rejected are retried by the caller outside the lock.
func (c *Controller) emitLocked(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// compactMemory asks the engine to summarize older history once the
// summarized strategy's tail outgrows its threshold. Runs after the
// completed turn is already delivered, so the extra round trip never
// delays the reply. A failed summarization keeps the verbatim history.
func (c *Controller) compactMemory(ctx context.Context, client InferenceClient) {
	if !c.buffer.NeedsCompaction() {
		return
	}
	if err := c.buffer.Compact(ctx, client); err != nil {
		c.logger.Warn("history summarization failed, keeping verbatim context", "error", err)
	}
}

// classifyFailure maps a client error onto the notice shown to the user.
func classifyFailure(err error, modelName string) (notice string, offerPull bool) {
	switch {
	case ollama.IsModelNotFound(err):
		return "Model '" + modelName + "' is not installed. Pull it to continue.", true
	case ollama.IsUnavailable(err):
		return "The engine returned 503. If you are behind a VPN or proxy, it may be intercepting localhost traffic - try disabling it.", false
	case ollama.IsNotRunning(err):
		return "Could not reach Ollama. Make sure it is running, and check for a VPN or proxy intercepting the connection.", false
	case ollama.IsTimeout(err):
		return "The request timed out. The model may still be loading; try again.", false
	default:
		return "Request failed: " + err.Error(), false
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist writes the conversation as a full re-save: the previous rows for
// this session are deleted and the current message set inserted, keeping
// the stored form canonical even after edits.
func (c *Controller) persist() error {
	c.mu.Lock()
	oldID := c.conv.SessionID
	title := c.conv.TitleHint()
	stored := make([]storage.StoredMessage, 0, len(c.conv.Messages))
	for _, msg := range c.conv.Messages {
		if msg.IsStreaming {
			continue
		}
		stored = append(stored, storage.StoredMessage{
			Content: msg.Content,
			IsUser:  msg.Role == model.RoleUser,
		})
	}
	c.mu.Unlock()

	if len(stored) == 0 {
		return nil
	}

	if oldID != 0 {
		if err := c.store.Delete(oldID); err != nil {
			return err
		}
	}
	newID, err := c.store.Save(title, stored)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conv.SessionID = newID
	c.mu.Unlock()
	return nil
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

// NewChat abandons the active conversation and starts a fresh unsaved one.
// An in-flight request is cancelled and its remaining events dropped.
func (c *Controller) NewChat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.conv = model.NewConversation()
	c.buffer.Clear()
	c.state = StateIdle
}

// LoadSession replaces the active conversation with a stored one and
// refreshes its recency, so reopened sessions surface first in the list.
func (c *Controller) LoadSession(sessionID int64) error {
	title, stored, err := c.store.Load(sessionID)
	if err != nil {
		return err
	}
	if err := c.store.Touch(sessionID); err != nil {
		c.logger.Warn("could not refresh session recency", "session", sessionID, "error", err)
	}

	conv := model.NewConversation()
	conv.SessionID = sessionID
	conv.Title = title
	entries := make([]memory.Entry, 0, len(stored))
	for _, sm := range stored {
		role := model.RoleAssistant
		if sm.IsUser {
			role = model.RoleUser
		}
		conv.AddMessage(model.NewMessage(role, sm.Content))
		entries = append(entries, memory.Entry{Content: sm.Content, IsUser: sm.IsUser})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.conv = conv
	c.buffer.Replace(entries)
	c.state = StateIdle
	return nil
}

// DeleteSession removes a stored session. Deleting the active session
// keeps the in-memory conversation but detaches it from storage.
func (c *Controller) DeleteSession(sessionID int64) error {
	if err := c.store.Delete(sessionID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv.SessionID == sessionID {
		c.conv.SessionID = 0
	}
	return nil
}

// Sessions lists stored sessions, newest first.
func (c *Controller) Sessions() ([]storage.SessionMeta, error) {
	return c.store.List()
}

// SearchSessions finds stored sessions matching the query.
func (c *Controller) SearchSessions(query string) ([]storage.SessionMeta, error) {
	return c.store.Search(query)
}

// EditMessage rewrites a message's content in place, keeping its identity
// and position, then re-persists the conversation.
func (c *Controller) EditMessage(messageID, content string) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}
	msg := c.conv.MessageByID(messageID)
	if msg == nil {
		c.mu.Unlock()
		return errors.New("message not found")
	}
	msg.SetContent(content)
	for i, m := range c.conv.Messages {
		if m.ID == messageID {
			c.buffer.EditMessage(i, content)
			break
		}
	}
	saved := c.conv.SessionID != 0
	c.mu.Unlock()

	if saved {
		return c.persist()
	}
	return nil
}

// ApplySettings swaps the inference client and per-request parameters,
// e.g. after the settings file changed on disk. Rejected while a reply is
// in flight. History is kept; only the context-window strategy changes.
func (c *Controller) ApplySettings(settings config.Settings, client InferenceClient) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busyLocked() {
		return ErrBusy
	}
	c.settings = settings
	c.client = client
	c.buffer.SetStrategy(settings.MemoryType, settings.MemoryK)
	return nil
}

// supersedeLocked cancels any in-flight request and bumps the generation
// so late events from it are dropped.
func (c *Controller) supersedeLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
