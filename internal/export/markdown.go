// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/kmorrow/chatloom/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown.
type MarkdownExporter struct {
	// Model name recorded in the metadata header; may be empty.
	Model string
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(modelName string) *MarkdownExporter {
	return &MarkdownExporter{Model: modelName}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if conv.IsEmpty() {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(conv.TitleHint())
	sb.WriteString("\n\n")

	if e.Model != "" {
		sb.WriteString(fmt.Sprintf("- **Model**: %s\n", e.Model))
	}
	sb.WriteString(fmt.Sprintf("- **Created**: %s\n", formatTimestamp(conv.CreatedAt)))
	sb.WriteString(fmt.Sprintf("- **Messages**: %d\n\n---\n\n", len(conv.Messages)))

	for _, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		sb.WriteString("### ")
		sb.WriteString(msg.Role.DisplayName())
		sb.WriteString("\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}
