// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kmorrow/chatloom/internal/model"
	"github.com/kmorrow/chatloom/internal/util"
)

// =============================================================================
// JSON CHAT FILE
// =============================================================================

// Chat file message type tags.
const (
	typeHuman = "human"
	typeAI    = "ai"
)

// ChatFile is the on-disk JSON form of a conversation, used for manual
// save/open of individual chats outside the session store.
type ChatFile struct {
	Messages []ChatFileMessage `json:"messages"`
	Model    string            `json:"model,omitempty"`
}

// ChatFileMessage is one message in a chat file.
type ChatFileMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	ID      string `json:"id,omitempty"`
}

// SaveChatFile writes the conversation to path as JSON, atomically.
func SaveChatFile(path string, conv *model.Conversation, modelName string) error {
	if conv == nil {
		return fmt.Errorf("conversation is nil")
	}

	file := ChatFile{Model: modelName}
	for _, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		typ := typeAI
		if msg.Role == model.RoleUser {
			typ = typeHuman
		}
		file.Messages = append(file.Messages, ChatFileMessage{
			Type:    typ,
			Content: msg.Content,
			ID:      msg.ID,
		})
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chat file: %w", err)
	}
	return util.AtomicWriteFile(path, data, 0644)
}

// LoadChatFile reads a chat file and rebuilds a conversation. Unknown
// message types are skipped. Returns the recorded model name alongside.
func LoadChatFile(path string) (*model.Conversation, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read chat file: %w", err)
	}

	var file ChatFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, "", fmt.Errorf("parse chat file: %w", err)
	}

	conv := model.NewConversation()
	for _, cm := range file.Messages {
		var role model.Role
		switch cm.Type {
		case typeHuman:
			role = model.RoleUser
		case typeAI:
			role = model.RoleAssistant
		default:
			continue
		}
		msg := model.NewMessage(role, cm.Content)
		if cm.ID != "" {
			msg.ID = cm.ID
		}
		conv.AddMessage(msg)
	}
	return conv, file.Model, nil
}
