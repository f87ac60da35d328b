// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/kmorrow/chatloom/internal/model"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

// TextExporter writes a plain transcript: one "User:"/"AI:" line pair per
// turn, blank line between turns.
type TextExporter struct{}

// NewTextExporter creates a plain-text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Export converts a conversation to a plain-text transcript.
func (e *TextExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if conv.IsEmpty() {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder
	for _, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		sb.WriteString(msg.Role.DisplayName())
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
		if msg.Role == model.RoleAssistant {
			sb.WriteString("\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension returns ".txt".
func (e *TextExporter) FileExtension() string {
	return ".txt"
}
