// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and the
// active conversation.
package model

import (
	"time"

	"github.com/kmorrow/chatloom/internal/util"
)

// TitleRunes is the maximum title length derived from the first message.
const TitleRunes = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the in-memory view of a chat session. SessionID is the
// store-assigned row id, or zero while the session has never been saved.
type Conversation struct {
	SessionID int64      `json:"session_id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages"`
}

// NewConversation creates an empty, unsaved conversation.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
	}
}

// AddMessage appends a message and refreshes the updated timestamp.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// LastMessage returns the most recent message, or nil if empty.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// MessageByID returns the message with the given ID, or nil.
func (c *Conversation) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// RemoveMessage deletes the message with the given ID, preserving order.
// Removing an unknown ID is a no-op.
func (c *Conversation) RemoveMessage(id string) {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			c.UpdatedAt = time.Now()
			return
		}
	}
}

// Clone returns a deep copy of the conversation. See Message.Clone for
// the locking contract around streaming messages.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		SessionID: c.SessionID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  make([]*Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		clone.Messages[i] = msg.Clone()
	}
	return clone
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// TitleHint derives a title from the first message. The title is a cached
// field recomputed at save time only; edits do not keep it in sync.
func (c *Conversation) TitleHint() string {
	for _, msg := range c.Messages {
		if !msg.IsEmpty() {
			return util.TruncateRunes(util.CollapseLine(msg.DisplayContent()), TitleRunes)
		}
	}
	return "New chat"
}
