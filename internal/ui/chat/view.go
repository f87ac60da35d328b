// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/kmorrow/chatloom/internal/model"
)

// =============================================================================
// VIEW
// =============================================================================

func (m *Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	if m.mode == modePicker {
		sb.WriteString(m.renderPicker())
	} else {
		sb.WriteString(m.viewport.View())
	}
	sb.WriteString("\n")

	sb.WriteString(m.renderNotice())
	sb.WriteString("\n")
	sb.WriteString(m.theme.InputContainer.Width(m.width).Render(m.input.View()))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())
	return sb.String()
}

func (m *Model) renderHeader() string {
	title := m.controller.Conversation().TitleHint()
	left := m.theme.HeaderTitle.Render("chatloom")
	right := m.theme.SessionMeta.Render(m.client.Model())
	middle := runewidth.Truncate(title, m.width/2, "...")
	return m.theme.Header.Width(m.width).Render(
		left + "  " + middle + "  " + right)
}

func (m *Model) renderNotice() string {
	switch {
	case m.mode == modePulling:
		return m.theme.NoticeBox.Render(m.spinner.View() + " " + m.pullStatus)
	case m.errNotice != "":
		text := m.errNotice
		if m.offerPull {
			text += "  (ctrl+p to pull)"
		}
		return m.theme.ErrorBox.Render(text)
	case m.notice != "":
		return m.theme.NoticeBox.Render(m.notice)
	case m.busy:
		return m.theme.NoticeBox.Render(m.spinner.View() + " thinking...")
	default:
		return ""
	}
}

func (m *Model) renderStatusBar() string {
	shortcuts := []struct{ k, desc string }{
		{"enter", "send"},
		{"ctrl+n", "new"},
		{"ctrl+o", "sessions"},
		{"ctrl+s", "export"},
		{"ctrl+c", "quit"},
	}
	parts := make([]string, len(shortcuts))
	for i, s := range shortcuts {
		parts[i] = m.theme.ShortcutKey.Render(s.k) + " " + m.theme.ShortcutDesc.Render(s.desc)
	}
	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript re-renders the conversation into the viewport.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	conv := m.controller.Conversation()
	if conv.IsEmpty() {
		m.viewport.SetContent(m.theme.SessionMeta.Render(
			"\n  Start chatting with " + m.client.Model() + ".\n"))
		return
	}

	var sb strings.Builder
	for _, msg := range conv.Messages {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	m.viewport.SetContent(sb.String())
}

func (m *Model) renderMessage(msg *model.Message) string {
	label := m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleUser {
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	}

	if msg.IsStreaming {
		content := msg.DisplayContent()
		if content == "" {
			return label + "\n"
		}
		return label + "\n" + m.theme.MessageBody.Render(content) +
			m.theme.StreamCursor.Render("▋") + "\n"
	}

	content := msg.Content
	// Final assistant replies get markdown rendering; user text stays raw.
	if msg.Role == model.RoleAssistant && m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return label + "\n" + strings.TrimRight(rendered, "\n") + "\n"
		}
	}
	return label + "\n" + m.theme.MessageBody.Render(content) + "\n"
}

// =============================================================================
// SESSION PICKER
// =============================================================================

func (m *Model) renderPicker() string {
	height := m.viewport.Height
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderTitle.Render("  Saved sessions") +
		m.theme.SessionMeta.Render("  (enter open, d delete, esc back)"))
	sb.WriteString("\n\n")

	if len(m.entries) == 0 {
		sb.WriteString(m.theme.SessionMeta.Render("  No saved sessions yet."))
	}

	titleWidth := m.width - 24
	if titleWidth < 10 {
		titleWidth = 10
	}
	for i, entry := range m.entries {
		line := fmt.Sprintf("%s  %s",
			runewidth.FillRight(runewidth.Truncate(entry.Title, titleWidth, "..."), titleWidth),
			entry.When)
		if i == m.cursor {
			sb.WriteString(m.theme.SessionItemSelected.Render(line))
		} else {
			sb.WriteString(m.theme.SessionItem.Render(line))
		}
		sb.WriteString("\n")
	}

	content := sb.String()
	if lines := strings.Count(content, "\n"); lines < height {
		content += strings.Repeat("\n", height-lines)
	}
	return lipgloss.NewStyle().Height(height).Render(content)
}
