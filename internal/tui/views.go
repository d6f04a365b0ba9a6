package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/casa/internal/assistant"
	"github.com/Veraticus/casa/internal/model"
)

// View renders the chat.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := m.theme.Title.Render(m.config.Title)
	if m.chat.InterviewActive() {
		header += "  " + m.theme.StatusInfo.Render("entrevista de defesa em andamento")
	}

	status := ""
	switch {
	case m.busy:
		status = m.theme.StatusPending.Render("pensando...")
	case m.lastError != nil:
		status = m.theme.StatusError.Render("erro: " + m.lastError.Error())
	case m.status == assistant.StatusExecuted:
		status = m.theme.StatusSuccess.Render("ação executada")
	case m.status == assistant.StatusExpired:
		status = m.theme.StatusWarning.Render("a confirmação expirou")
	case m.status == assistant.StatusFailed:
		status = m.theme.StatusError.Render("a ação falhou, tente confirmar de novo")
	}

	sections := []string{header, m.viewport.View(), m.input.View(), status}
	if m.config.ShowHelp {
		sections = append(sections, m.help.ShortHelpView(m.keymap.ShortHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderConversation renders every message for the viewport.
func (m Model) renderConversation(msgs []model.Message) string {
	if len(msgs) == 0 {
		return m.theme.StatusPending.Render("Olá! Como posso ajudar com a casa hoje?")
	}

	width := max(20, m.width-2)
	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	body := lipgloss.NewStyle().Width(width).Render(msg.Text)

	var label string
	switch msg.Sender {
	case model.SenderUser:
		label = m.theme.UserLabel.Render("Você")
	case model.SenderSystem:
		return m.theme.StatusPending.Render("• " + msg.Text)
	default:
		label = m.theme.BotLabel.Render("Casa")
		if msg.IsCached {
			label += " " + m.theme.StatusPending.Render("(memória)")
		}
	}

	lines := []string{label + " " + m.theme.StatusPending.Render(msg.Timestamp.Local().Format("15:04")), body}

	if msg.ImageURL != "" {
		lines = append(lines, m.theme.StatusPending.Render("anexo: "+msg.ImageURL))
	}
	for _, src := range msg.Sources {
		title := src.Title
		if title == "" {
			title = src.URL
		}
		lines = append(lines, m.theme.StatusPending.Render("fonte: "+title))
	}
	if len(msg.Suggestions) > 0 {
		chips := make([]string, 0, len(msg.Suggestions))
		for _, s := range msg.Suggestions {
			chips = append(chips, m.theme.Chip.Render(s))
		}
		lines = append(lines, strings.Join(chips, " "))
	}
	if msg.PendingAction != nil {
		action := msg.PendingAction
		text := action.Summary + "\n" + m.theme.StatusWarning.Render("ctrl+y confirma · ctrl+n cancela") +
			m.theme.StatusPending.Render(" (até "+action.ExpiresAt.Local().Format("15:04")+")")
		lines = append(lines, m.theme.ActionBox.Render(text))
	}

	return strings.Join(lines, "\n")
}
