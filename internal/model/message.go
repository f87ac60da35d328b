// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and the
// active conversation.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kmorrow/chatloom/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "AI"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single message in a conversation. The ID is unique within
// a process lifetime; it is not required to survive across stores.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Streaming state, not persisted. Content being streamed is kept in
	// a strings.Builder and merged into Content on finalize.
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateMessageID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant message in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateMessageID(),
		Role:        RoleAssistant,
		CreatedAt:   time.Now(),
		IsStreaming: true,
	}
}

// AppendFragment appends an incremental fragment to a streaming message.
func (m *Message) AppendFragment(fragment string) {
	if m.IsStreaming {
		m.streamContent.WriteString(fragment)
	}
}

// FinalizeStream completes streaming with the final text. The engine may
// revise fragments, so the caller passes the final response as ground
// truth rather than relying on fragment concatenation.
func (m *Message) FinalizeStream(final string) {
	if !m.IsStreaming {
		return
	}
	m.Content = final
	m.streamContent.Reset()
	m.IsStreaming = false
}

// DisplayContent returns the content to display (streaming or final).
func (m *Message) DisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// Clone returns an independent copy of the message. Make the copy under
// the same lock that guards streaming writes to the original; the clone
// is then safe to read while the original keeps streaming.
func (m *Message) Clone() *Message {
	clone := &Message{
		ID:          m.ID,
		Role:        m.Role,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		IsStreaming: m.IsStreaming,
	}
	if m.IsStreaming {
		clone.streamContent.WriteString(m.streamContent.String())
	}
	return clone
}

// SetContent replaces the message content in place. Identity is preserved;
// this backs the edit-message operation.
func (m *Message) SetContent(content string) {
	m.Content = content
}

// Preview returns a single-line truncated preview of the content.
func (m *Message) Preview(maxRunes int) string {
	return util.TruncateRunes(util.CollapseLine(m.DisplayContent()), maxRunes)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateMessageID creates a unique message ID.
func generateMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
