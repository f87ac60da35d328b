// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/kmorrow/chatloom/internal/config"
)

// Theme holds the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	StreamCursor   lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Notices
	ErrorBox  lipgloss.Style
	NoticeBox lipgloss.Style
	Spinner   lipgloss.Style

	// Session picker
	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style
	SessionMeta         lipgloss.Style
}

// NewTheme builds a theme honoring the configured preference: Light and
// Dark force the palette side, System keeps the detected background.
func NewTheme(pref config.Theme) *Theme {
	switch pref {
	case config.ThemeLight:
		lipgloss.SetHasDarkBackground(false)
	case config.ThemeDark:
		lipgloss.SetHasDarkBackground(true)
	}

	t := &Theme{
		IsDark:       lipgloss.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Violet)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.StreamCursor = lipgloss.NewStyle().
		Foreground(Violet).
		Bold(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Border).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ErrorBox = lipgloss.NewStyle().
		Foreground(Red).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Red).
		PaddingLeft(1)

	t.NoticeBox = lipgloss.NewStyle().
		Foreground(Amber).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Amber).
		PaddingLeft(1)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Violet)

	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.SessionItemSelected = lipgloss.NewStyle().
		Background(Violet).
		Foreground(TextInverse).
		Bold(true).
		Padding(0, 1)

	t.SessionMeta = lipgloss.NewStyle().
		Foreground(TextMuted)
}
