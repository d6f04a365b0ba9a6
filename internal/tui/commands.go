package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// requestTimeout bounds one round trip to the assistant.
const requestTimeout = 2 * time.Minute

func (m Model) sendCmd(text string) tea.Cmd {
	chat, parent := m.chat, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		_, err := chat.Send(ctx, text)
		return replyMsg{err: err}
	}
}

func (m Model) confirmCmd(messageID string) tea.Cmd {
	chat, parent := m.chat, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, requestTimeout)
		defer cancel()
		result, err := chat.Confirm(ctx, messageID)
		return replyMsg{err: err, status: result.Status}
	}
}

func (m Model) cancelCmd(messageID string) tea.Cmd {
	chat := m.chat
	return func() tea.Msg {
		_, err := chat.Cancel(messageID)
		return replyMsg{err: err}
	}
}
