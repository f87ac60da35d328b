// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory maintains the rolling conversation context sent to the
// inference engine. Three strategies: full history, a window of the most
// recent exchanges, or a running summary plus recent messages.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kmorrow/chatloom/internal/config"
	"github.com/kmorrow/chatloom/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// Entry is one remembered message.
type Entry struct {
	Content string
	IsUser  bool
}

// Summarizer condenses a transcript of older turns into a short summary.
// The inference client implements it with a dedicated model call.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// Buffer accumulates conversation history and produces the context window
// for the next request according to the configured strategy. Safe for
// concurrent use.
type Buffer struct {
	mu       sync.Mutex
	strategy config.MemoryType
	window   int

	entries []Entry

	// summarized strategy state
	summary      string
	summarizedTo int // entries[:summarizedTo] are folded into summary
}

// New creates a buffer using the given strategy and window size.
// The window is clamped to at least 1.
func New(strategy config.MemoryType, window int) *Buffer {
	if window < 1 {
		window = 1
	}
	return &Buffer{strategy: strategy, window: window}
}

// =============================================================================
// MUTATION
// =============================================================================

// AddUserMessage appends a user turn.
func (b *Buffer) AddUserMessage(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{Content: content, IsUser: true})
}

// AddAIMessage appends an assistant turn.
func (b *Buffer) AddAIMessage(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{Content: content, IsUser: false})
}

// EditMessage replaces the content of the entry at index. Out-of-range
// indexes are ignored.
func (b *Buffer) EditMessage(index int, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.entries) {
		return
	}
	b.entries[index].Content = content
	// Edits inside the summarized prefix invalidate the summary.
	if index < b.summarizedTo {
		b.summary = ""
		b.summarizedTo = 0
	}
}

// Clear drops all remembered history.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
	b.summary = ""
	b.summarizedTo = 0
}

// Replace swaps in a full history, e.g. after loading a saved session.
// Entries are copied verbatim regardless of strategy; the strategy only
// shapes ContextWindow output.
func (b *Buffer) Replace(entries []Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make([]Entry, len(entries))
	copy(b.entries, entries)
	b.summary = ""
	b.summarizedTo = 0
}

// SetStrategy switches the strategy in place. History is kept verbatim;
// only the view produced by ContextWindow changes.
func (b *Buffer) SetStrategy(strategy config.MemoryType, window int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if window < 1 {
		window = 1
	}
	b.strategy = strategy
	b.window = window
	b.summary = ""
	b.summarizedTo = 0
}

// =============================================================================
// VIEWS
// =============================================================================

// Messages returns a copy of the full remembered history.
func (b *Buffer) Messages() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of remembered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// ContextWindow returns the entries to send with the next request,
// shaped by the strategy:
//
//   - full: the entire history.
//   - windowed: the last window entries.
//   - summarized: a synthetic summary entry for the compacted prefix,
//     followed by the entries since the last compaction.
func (b *Buffer) ContextWindow() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.strategy {
	case config.MemoryWindowed:
		start := len(b.entries) - b.window
		if start < 0 {
			start = 0
		}
		out := make([]Entry, len(b.entries)-start)
		copy(out, b.entries[start:])
		return out

	case config.MemorySummarized:
		var out []Entry
		if b.summary != "" {
			out = append(out, Entry{
				Content: "Summary of earlier conversation: " + b.summary,
				IsUser:  false,
			})
		}
		tail := b.entries[b.summarizedTo:]
		out = append(out, tail...)
		return out

	default: // config.MemoryFull
		out := make([]Entry, len(b.entries))
		copy(out, b.entries)
		return out
	}
}

// =============================================================================
// COMPACTION
// =============================================================================

// Per-message cap for the transcript handed to the summarizer. Very long
// messages would crowd out the rest of the span.
const transcriptEntryRunes = 2000

// NeedsCompaction reports whether the summarized strategy's uncompacted
// tail has grown past twice the window.
func (b *Buffer) NeedsCompaction() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.strategy != config.MemorySummarized {
		return false
	}
	return len(b.entries)-b.summarizedTo > 2*b.window
}

// Compact folds everything except the last window entries into the
// running summary, delegating the actual summarization to s. The
// summarizer call runs without the buffer lock; if the buffer is cleared
// or replaced meanwhile, the result is discarded. On error the buffer is
// left unchanged and the verbatim history keeps flowing. A nil summarizer
// falls back to an extractive fold of truncated first lines.
func (b *Buffer) Compact(ctx context.Context, s Summarizer) error {
	b.mu.Lock()
	if b.strategy != config.MemorySummarized || len(b.entries)-b.summarizedTo <= 2*b.window {
		b.mu.Unlock()
		return nil
	}
	cut := len(b.entries) - b.window
	prevTo := b.summarizedTo

	if s == nil {
		b.compactExtractiveLocked(cut)
		b.mu.Unlock()
		return nil
	}

	transcript := b.transcriptLocked(cut)
	b.mu.Unlock()

	summary, err := s.Summarize(ctx, transcript)
	if err != nil {
		return err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return fmt.Errorf("summarizer returned empty summary")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.summarizedTo != prevTo || cut > len(b.entries) {
		// Cleared, replaced, or re-strategized while summarizing.
		return nil
	}
	b.summary = summary
	b.summarizedTo = cut
	return nil
}

// transcriptLocked renders entries[summarizedTo:cut], prefixed by the
// previous summary so the new one subsumes it.
func (b *Buffer) transcriptLocked(cut int) string {
	var sb strings.Builder
	if b.summary != "" {
		sb.WriteString("Summary so far: ")
		sb.WriteString(b.summary)
		sb.WriteString("\n\n")
	}
	for _, e := range b.entries[b.summarizedTo:cut] {
		who := "AI"
		if e.IsUser {
			who = "User"
		}
		sb.WriteString(who)
		sb.WriteString(": ")
		sb.WriteString(util.TruncateRunes(e.Content, transcriptEntryRunes))
		sb.WriteString("\n")
	}
	return sb.String()
}

// compactExtractiveLocked is the offline fold: truncated first lines
// joined into a single summary string.
func (b *Buffer) compactExtractiveLocked(cut int) {
	var lines []string
	if b.summary != "" {
		lines = append(lines, b.summary)
	}
	for _, e := range b.entries[b.summarizedTo:cut] {
		who := "AI"
		if e.IsUser {
			who = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", who,
			util.TruncateRunes(util.CollapseLine(e.Content), 120)))
	}
	b.summary = strings.Join(lines, " | ")
	b.summarizedTo = cut
}
