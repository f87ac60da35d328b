// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmorrow/chatloom/internal/config"
	"github.com/kmorrow/chatloom/internal/ollama"
	"github.com/kmorrow/chatloom/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// streamMsg wraps a controller event for the Bubble Tea update loop.
type streamMsg struct {
	event session.Event
}

// pullProgressMsg reports model download progress.
type pullProgressMsg struct {
	progress ollama.PullProgress
}

// pullDoneMsg fires when a model pull finishes.
type pullDoneMsg struct {
	err error
}

// exportDoneMsg fires when an export finishes.
type exportDoneMsg struct {
	path string
	err  error
}

// sessionsLoadedMsg delivers the stored session list for the picker.
type sessionsLoadedMsg struct {
	metas []sessionEntry
	err   error
}

// settingsReloadedMsg carries settings re-read from disk by the watcher.
type settingsReloadedMsg struct {
	settings config.Settings
}

// SettingsReloaded builds the message the config watcher sends into the
// program when the settings file changes.
func SettingsReloaded(settings config.Settings) tea.Msg {
	return settingsReloadedMsg{settings: settings}
}

// =============================================================================
// COMMANDS
// =============================================================================

// waitForEvent blocks on the controller's events channel and converts the
// next event into a tea.Msg. The update loop re-issues it after every
// streamMsg, keeping exactly one reader on the channel.
func waitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return streamMsg{event: ev}
	}
}

// pullModel downloads a model, forwarding progress through the program.
func pullModel(client *ollama.Client, modelName string, send func(tea.Msg)) tea.Cmd {
	return func() tea.Msg {
		err := client.Pull(context.Background(), modelName, func(p ollama.PullProgress) {
			send(pullProgressMsg{progress: p})
		})
		return pullDoneMsg{err: err}
	}
}

func formatPullProgress(p ollama.PullProgress) string {
	if p.Total > 0 {
		return fmt.Sprintf("%s %.0f%%", p.Status, p.Percent())
	}
	return p.Status
}
