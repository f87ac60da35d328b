// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and the
// active conversation.
//
// A Message is immutable once persisted except for the explicit
// edit-in-place operation (SetContent), which replaces content while
// preserving identity. A Conversation is the in-memory view of a session:
// an ordered, append-only message list plus derived metadata.
package model
