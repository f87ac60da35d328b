// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out of the application: plain-text
// transcripts, Markdown, and a JSON chat file format that round-trips.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kmorrow/chatloom/internal/model"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a conversation into one target format.
type Exporter interface {
	// Export converts a conversation to the target format.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the extension for the format (e.g. ".txt").
	FileExtension() string
}

// =============================================================================
// FILE EXPORT
// =============================================================================

// ExportToFile renders the conversation and writes it to outputDir, named
// after the conversation title and a timestamp. Returns the file path.
func ExportToFile(conv *model.Conversation, exporter Exporter, outputDir string) (string, error) {
	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("chat_%s_%s%s",
		sanitizeFilename(conv.TitleHint()), timestamp, exporter.FileExtension())

	outputPath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames on
// Windows or Unix.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		s = string(runes[:50])
	}

	var result []rune
	for _, r := range s {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			result = append(result, '-')
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return "chat"
	}
	return string(result)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
