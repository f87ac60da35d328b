// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the terminal chat interface. The model drives a
// viewport over the transcript, a single-line prompt, and a session picker
// overlay, all fed by streaming events from the session controller.
package chat

import (
	"errors"
	"path/filepath"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/kmorrow/chatloom/internal/config"
	"github.com/kmorrow/chatloom/internal/export"
	"github.com/kmorrow/chatloom/internal/ollama"
	"github.com/kmorrow/chatloom/internal/session"
	"github.com/kmorrow/chatloom/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// mode selects which surface has focus.
type mode int

const (
	modeChat mode = iota
	modePicker
	modePulling
)

// sessionEntry is one row in the session picker.
type sessionEntry struct {
	ID    int64
	Title string
	When  string
}

// Model is the root Bubble Tea model.
type Model struct {
	controller *session.Controller
	client     *ollama.Client
	settings   config.Settings
	theme      *styles.Theme
	keys       keyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	mode    mode
	busy    bool
	ready   bool
	width   int
	height  int

	// Session picker state.
	entries []sessionEntry
	cursor  int

	// Transient notices shown above the input.
	notice     string
	errNotice  string
	offerPull  bool
	pullStatus string

	// Settings that arrived while a reply was in flight.
	pendingSettings *config.Settings

	// send lets background commands inject messages; set after the
	// program is created.
	send func(tea.Msg)
}

// New creates the chat model.
func New(controller *session.Controller, client *ollama.Client, settings config.Settings) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 0
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	theme := styles.NewTheme(settings.Theme)
	spin.Style = theme.Spinner

	return &Model{
		controller: controller,
		client:     client,
		settings:   settings,
		theme:      theme,
		keys:       defaultKeyMap(),
		input:      input,
		spinner:    spin,
		send:       func(tea.Msg) {},
	}
}

// SetSend installs the program's message injector for background
// commands. Call once after tea.NewProgram.
func (m *Model) SetSend(send func(tea.Msg)) {
	m.send = send
}

// Init starts the input cursor blink and the event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForEvent(m.controller.Events()),
	)
}

// =============================================================================
// UPDATE
// =============================================================================

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		switch m.mode {
		case modePicker:
			return m.updatePicker(msg)
		case modePulling:
			// Ignore keys while a pull is running, except quit above.
			return m, nil
		default:
			return m.updateChat(msg)
		}

	case streamMsg:
		return m.handleStreamEvent(msg)

	case sessionsLoadedMsg:
		if msg.err != nil {
			m.errNotice = "Could not list sessions: " + msg.err.Error()
			m.mode = modeChat
			return m, nil
		}
		m.entries = msg.metas
		m.cursor = 0
		m.mode = modePicker
		return m, nil

	case pullProgressMsg:
		m.pullStatus = formatPullProgress(msg.progress)
		return m, nil

	case pullDoneMsg:
		m.mode = modeChat
		m.pullStatus = ""
		if msg.err != nil {
			m.errNotice = "Pull failed: " + msg.err.Error()
		} else {
			m.notice = "Model downloaded. Send your message again."
			m.errNotice = ""
			m.offerPull = false
		}
		return m, nil

	case settingsReloadedMsg:
		if m.applySettings(msg.settings) {
			m.notice = "Settings reloaded."
		} else {
			// Busy; retried when the in-flight reply ends.
			m.pendingSettings = &msg.settings
			m.notice = "Settings changed on disk; applying after the current reply."
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.errNotice = "Export failed: " + msg.err.Error()
		} else {
			m.notice = "Exported to " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	footerHeight := 4 // notice line + input box + status bar
	contentHeight := msg.Height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = contentHeight
	}
	m.input.Width = msg.Width - 4

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(msg.Width-2),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.refreshTranscript()
	return m, nil
}

// updateChat handles keys while the prompt has focus.
func (m *Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewChat):
		m.controller.NewChat()
		m.busy = false
		m.clearNotices()
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.Sessions):
		return m, m.loadSessions()

	case key.Matches(msg, m.keys.Export):
		return m, m.exportTranscript()

	case key.Matches(msg, m.keys.PullModel):
		if !m.offerPull {
			return m, nil
		}
		m.mode = modePulling
		m.pullStatus = "starting download..."
		return m, pullModel(m.client, m.client.Model(), m.send)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	err := m.controller.Submit(text)
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		return m, nil
	case errors.Is(err, session.ErrBusy):
		m.notice = "Still responding - wait for the reply to finish."
		return m, nil
	case err != nil:
		m.errNotice = err.Error()
		return m, nil
	}

	m.input.Reset()
	m.clearNotices()
	m.busy = true
	m.refreshTranscript()
	return m, m.spinner.Tick
}

// updatePicker handles keys while the session picker is open.
func (m *Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = modeChat
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if len(m.entries) == 0 {
			m.mode = modeChat
			return m, nil
		}
		entry := m.entries[m.cursor]
		if err := m.controller.LoadSession(entry.ID); err != nil {
			m.errNotice = "Could not open session: " + err.Error()
		} else {
			m.clearNotices()
			m.busy = false
		}
		m.mode = modeChat
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if len(m.entries) == 0 {
			return m, nil
		}
		entry := m.entries[m.cursor]
		if err := m.controller.DeleteSession(entry.ID); err != nil {
			m.errNotice = "Could not delete session: " + err.Error()
			return m, nil
		}
		m.entries = append(m.entries[:m.cursor], m.entries[m.cursor+1:]...)
		if m.cursor >= len(m.entries) && m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	}
	return m, nil
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

func (m *Model) handleStreamEvent(msg streamMsg) (tea.Model, tea.Cmd) {
	next := waitForEvent(m.controller.Events())

	switch ev := msg.event.(type) {
	case session.StartedEvent:
		// A Started that crossed paths with a new-chat or session switch
		// must not resurrect the spinner.
		m.busy = m.controller.State() != session.StateIdle

	case session.FragmentEvent:
		m.refreshTranscript()
		m.viewport.GotoBottom()

	case session.CompletedEvent:
		m.busy = false
		m.refreshTranscript()
		m.viewport.GotoBottom()
		m.applyPendingSettings()

	case session.FailedEvent:
		m.busy = false
		m.errNotice = ev.Notice
		m.offerPull = ev.OfferPull
		m.refreshTranscript()
		m.applyPendingSettings()
	}
	return m, next
}

// applySettings swaps in new settings when the controller is idle.
func (m *Model) applySettings(settings config.Settings) bool {
	client := ollama.New(settings)
	if err := m.controller.ApplySettings(settings, client); err != nil {
		return false
	}
	m.settings = settings
	m.client = client
	return true
}

func (m *Model) applyPendingSettings() {
	if m.pendingSettings == nil {
		return
	}
	if m.applySettings(*m.pendingSettings) {
		m.pendingSettings = nil
		m.notice = "Settings reloaded."
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m *Model) loadSessions() tea.Cmd {
	return func() tea.Msg {
		metas, err := m.controller.Sessions()
		if err != nil {
			return sessionsLoadedMsg{err: err}
		}
		entries := make([]sessionEntry, len(metas))
		for i, meta := range metas {
			entries[i] = sessionEntry{
				ID:    meta.ID,
				Title: meta.Title,
				When:  meta.UpdatedAt.Format("2006-01-02 15:04"),
			}
		}
		return sessionsLoadedMsg{metas: entries}
	}
}

func (m *Model) exportTranscript() tea.Cmd {
	conv := m.controller.Conversation()
	if conv.IsEmpty() {
		m.notice = "Nothing to export yet."
		return nil
	}
	stateDir, err := config.Dir()
	if err != nil {
		stateDir = "."
	}
	outputDir := filepath.Join(stateDir, "exports")
	return func() tea.Msg {
		path, err := export.ExportToFile(conv, export.NewTextExporter(), outputDir)
		return exportDoneMsg{path: path, err: err}
	}
}

func (m *Model) clearNotices() {
	m.notice = ""
	m.errNotice = ""
	m.offerPull = false
}
