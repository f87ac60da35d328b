// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kmorrow/chatloom/internal/config"
)

func fill(b *Buffer, turns int) {
	for i := 0; i < turns; i++ {
		b.AddUserMessage(fmt.Sprintf("question %d", i))
		b.AddAIMessage(fmt.Sprintf("answer %d", i))
	}
}

func TestFullKeepsEverything(t *testing.T) {
	b := New(config.MemoryFull, 5)
	fill(b, 20)

	window := b.ContextWindow()
	if len(window) != 40 {
		t.Fatalf("len(window) = %d, want 40", len(window))
	}
	if window[0].Content != "question 0" || window[39].Content != "answer 19" {
		t.Errorf("window lost ordering: first=%q last=%q",
			window[0].Content, window[39].Content)
	}
}

func TestWindowedReturnsExactlyLastK(t *testing.T) {
	b := New(config.MemoryWindowed, 6)
	fill(b, 10)

	window := b.ContextWindow()
	if len(window) != 6 {
		t.Fatalf("len(window) = %d, want 6", len(window))
	}
	if window[0].Content != "question 7" {
		t.Errorf("window[0] = %q, want %q", window[0].Content, "question 7")
	}
	if window[5].Content != "answer 9" {
		t.Errorf("window[5] = %q, want %q", window[5].Content, "answer 9")
	}

	// Fewer entries than the window: return them all.
	short := New(config.MemoryWindowed, 6)
	short.AddUserMessage("only")
	if got := short.ContextWindow(); len(got) != 1 {
		t.Errorf("short window len = %d, want 1", len(got))
	}
}

func TestWindowedDoesNotTruncateHistory(t *testing.T) {
	b := New(config.MemoryWindowed, 2)
	fill(b, 5)

	if b.Len() != 10 {
		t.Errorf("Len = %d, want full history of 10", b.Len())
	}
	if len(b.Messages()) != 10 {
		t.Errorf("Messages lost history under windowed strategy")
	}
}

// scriptedSummarizer returns a fixed summary and records the transcripts
// it was asked to condense.
type scriptedSummarizer struct {
	summary     string
	err         error
	transcripts []string
}

func (s *scriptedSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	s.transcripts = append(s.transcripts, transcript)
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func TestNeedsCompactionThreshold(t *testing.T) {
	b := New(config.MemorySummarized, 4)
	fill(b, 4) // 8 entries, exactly 2*4
	if b.NeedsCompaction() {
		t.Error("NeedsCompaction true at the threshold, want strictly past it")
	}
	b.AddUserMessage("one more")
	if !b.NeedsCompaction() {
		t.Error("NeedsCompaction false past the threshold")
	}

	full := New(config.MemoryFull, 4)
	fill(full, 20)
	if full.NeedsCompaction() {
		t.Error("full strategy never needs compaction")
	}
}

func TestSummarizedCompaction(t *testing.T) {
	b := New(config.MemorySummarized, 4)
	fill(b, 10) // 20 entries, well past 2*4

	s := &scriptedSummarizer{summary: "they discussed ten questions"}
	if err := b.Compact(context.Background(), s); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(s.transcripts) != 1 {
		t.Fatalf("summarizer called %d times, want 1", len(s.transcripts))
	}
	if !strings.Contains(s.transcripts[0], "question 0") {
		t.Errorf("transcript missing oldest turn: %q", s.transcripts[0])
	}
	if strings.Contains(s.transcripts[0], "answer 9") {
		t.Errorf("transcript includes the tail kept verbatim: %q", s.transcripts[0])
	}

	window := b.ContextWindow()
	if len(window) != 5 { // summary entry + last 4
		t.Fatalf("len(window) = %d, want 5", len(window))
	}
	if window[0].Content != "Summary of earlier conversation: they discussed ten questions" {
		t.Errorf("window[0] = %q, want the model summary", window[0].Content)
	}
	last := window[len(window)-1]
	if last.Content != "answer 9" {
		t.Errorf("last window entry = %q, want most recent answer", last.Content)
	}
	// Full history stays intact.
	if b.Len() != 20 {
		t.Errorf("Len = %d, compaction must not drop history", b.Len())
	}
}

func TestCompactBelowThresholdIsNoOp(t *testing.T) {
	b := New(config.MemorySummarized, 4)
	fill(b, 3)

	s := &scriptedSummarizer{summary: "unused"}
	if err := b.Compact(context.Background(), s); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(s.transcripts) != 0 {
		t.Error("summarizer called below the threshold")
	}
}

func TestCompactErrorLeavesBufferUnchanged(t *testing.T) {
	b := New(config.MemorySummarized, 2)
	fill(b, 5)

	s := &scriptedSummarizer{err: fmt.Errorf("engine down")}
	if err := b.Compact(context.Background(), s); err == nil {
		t.Fatal("Compact should surface the summarizer error")
	}
	if got := b.ContextWindow(); len(got) != 10 {
		t.Errorf("failed compaction changed the window: len = %d, want 10 verbatim", len(got))
	}
}

func TestCompactDiscardsResultAfterClear(t *testing.T) {
	b := New(config.MemorySummarized, 2)
	fill(b, 5)

	// Clear the buffer while the summarizer is "running" by doing it from
	// inside the summarize call.
	s := &clearingSummarizer{buffer: b}
	if err := b.Compact(context.Background(), s); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d after Clear", b.Len())
	}
	if got := b.ContextWindow(); len(got) != 0 {
		t.Errorf("stale summary applied to a cleared buffer: %+v", got)
	}
}

type clearingSummarizer struct {
	buffer *Buffer
}

func (s *clearingSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	s.buffer.Clear()
	return "stale summary", nil
}

func TestSwitchStrategyCopiesVerbatim(t *testing.T) {
	b := New(config.MemoryWindowed, 2)
	fill(b, 5)

	b.SetStrategy(config.MemoryFull, 2)
	if got := b.ContextWindow(); len(got) != 10 {
		t.Errorf("after switch to full, window len = %d, want 10", len(got))
	}
}

func TestEditAndClear(t *testing.T) {
	b := New(config.MemoryFull, 5)
	b.AddUserMessage("original")
	b.AddAIMessage("reply")

	b.EditMessage(0, "edited")
	if got := b.Messages(); got[0].Content != "edited" {
		t.Errorf("EditMessage did not apply: %q", got[0].Content)
	}
	b.EditMessage(99, "ignored") // out of range, no panic

	b.Clear()
	if b.Len() != 0 {
		t.Errorf("Clear left %d entries", b.Len())
	}
}

func TestReplace(t *testing.T) {
	b := New(config.MemoryWindowed, 3)
	fill(b, 2)

	loaded := []Entry{
		{Content: "restored question", IsUser: true},
		{Content: "restored answer", IsUser: false},
	}
	b.Replace(loaded)

	got := b.Messages()
	if len(got) != 2 || got[0].Content != "restored question" {
		t.Errorf("Replace produced %+v", got)
	}

	// Mutating the input slice after Replace must not leak in.
	loaded[0].Content = "mutated"
	if b.Messages()[0].Content != "restored question" {
		t.Error("Replace aliased caller slice")
	}
}
