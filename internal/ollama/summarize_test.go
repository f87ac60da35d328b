// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	var gotReq ChatRequest
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model:   gotReq.Model,
			Message: Message{Role: RoleAssistant, Content: "  They planned a trip.  "},
			Done:    true,
		})
	})

	summary, err := client.Summarize(context.Background(), "User: let's plan a trip\nAI: sure\n")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "They planned a trip." {
		t.Errorf("summary = %q", summary)
	}

	if gotReq.Stream {
		t.Error("summarize request had stream=true")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != RoleSystem {
		t.Fatalf("messages = %+v, want system prompt then transcript", gotReq.Messages)
	}
	if !strings.Contains(gotReq.Messages[1].Content, "let's plan a trip") {
		t.Error("transcript missing from request")
	}
	if gotReq.Options == nil || gotReq.Options.Temperature != 0.3 {
		t.Error("summarize should use its own low-temperature options")
	}
}

func TestSummarizeEmptyTranscript(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty transcript")
	})

	summary, err := client.Summarize(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "" {
		t.Errorf("summary = %q, want empty", summary)
	}
}

func TestSummarizeEmptyReply(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{Message: Message{Role: RoleAssistant, Content: " "}, Done: true})
	})

	if _, err := client.Summarize(context.Background(), "User: hi\n"); err == nil {
		t.Error("empty model reply should be an error")
	}
}
