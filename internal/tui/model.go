// Package tui is the terminal chat front end for an assistant session.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/casa/internal/assistant"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/tui/themes"
)

// Chat is the part of an assistant session the TUI drives.
type Chat interface {
	Messages() []model.Message
	Send(ctx context.Context, text string) (model.Message, error)
	Confirm(ctx context.Context, messageID string) (assistant.ExecutionResult, error)
	Cancel(messageID string) (model.Message, error)
	InterviewActive() bool
}

var _ Chat = (*assistant.Session)(nil)

// chromeHeight is the header, input and status lines around the viewport.
const chromeHeight = 5

// Model holds the chat TUI state.
type Model struct {
	ctx       context.Context
	chat      Chat
	lastError error
	status    assistant.ExecutionStatus
	theme     themes.Theme
	config    Config
	keymap    KeyMap
	help      help.Model
	input     textinput.Model
	viewport  viewport.Model
	width     int
	height    int
	busy      bool
	quitting  bool
}

func newModel(ctx context.Context, chat Chat, cfg Config) Model {
	input := textinput.New()
	input.Placeholder = "Pergunte algo ou diga o que já resolveu..."
	input.Prompt = "› "
	input.CharLimit = 2000
	input.Focus()

	m := Model{
		ctx:      ctx,
		chat:     chat,
		config:   cfg,
		theme:    cfg.Theme,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		input:    input,
		viewport: viewport.New(cfg.Width, max(1, cfg.Height-chromeHeight)),
		width:    cfg.Width,
		height:   cfg.Height,
	}
	m.handleResize()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.handleResize()
		return m, nil

	case replyMsg:
		m.busy = false
		m.lastError = msg.err
		m.status = msg.status
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey processes the chat shortcuts. It reports false for keys that
// belong to the input field.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return tea.Quit, true

	case key.Matches(msg, m.keymap.Send):
		text := strings.TrimSpace(m.input.Value())
		if m.busy || text == "" {
			return nil, true
		}
		m.input.Reset()
		m.busy = true
		m.lastError = nil
		m.status = ""
		return m.sendCmd(text), true

	case key.Matches(msg, m.keymap.Confirm):
		id, ok := m.latestPending()
		if m.busy || !ok {
			return nil, true
		}
		m.busy = true
		return m.confirmCmd(id), true

	case key.Matches(msg, m.keymap.Cancel):
		id, ok := m.latestPending()
		if m.busy || !ok {
			return nil, true
		}
		m.busy = true
		return m.cancelCmd(id), true

	case key.Matches(msg, m.keymap.PageUp):
		m.viewport.HalfViewUp()
		return nil, true

	case key.Matches(msg, m.keymap.PageDown):
		m.viewport.HalfViewDown()
		return nil, true
	}
	return nil, false
}

// latestPending returns the newest message still carrying an action.
func (m Model) latestPending() (string, bool) {
	msgs := m.chat.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].HasPendingAction() {
			return msgs[i].ID, true
		}
	}
	return "", false
}

func (m *Model) handleResize() {
	m.viewport.Width = m.width
	m.viewport.Height = max(1, m.height-chromeHeight)
	m.input.Width = max(10, m.width-4)
	m.help.Width = m.width
	m.refresh()
}

// refresh re-renders the conversation and scrolls to the newest message.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation(m.chat.Messages()))
	m.viewport.GotoBottom()
}
