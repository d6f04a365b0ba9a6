package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/casa/internal/assistant"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/tui/themes"
)

var chatNow = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

// fakeChat proposes an action for any message starting with "paguei".
type fakeChat struct {
	sendErr   error
	confirmed []string
	cancelled []string
	messages  []model.Message
	mu        sync.Mutex
}

func (f *fakeChat) Messages() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...)
}

func (f *fakeChat) Send(_ context.Context, text string) (model.Message, error) {
	if f.sendErr != nil {
		return model.Message{}, f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, model.Message{ID: "u", Sender: model.SenderUser, Text: text, Timestamp: chatNow})
	reply := model.Message{ID: "a", Sender: model.SenderAssistant, Text: "Certo!", Timestamp: chatNow}
	if strings.HasPrefix(text, "paguei") {
		action, err := model.NewPendingAction("act-1", "task-1", "Marcar \"Conta de luz\" como concluída", model.CompleteTaskPayload{}, chatNow)
		if err != nil {
			return model.Message{}, err
		}
		reply.PendingAction = action
		reply.Suggestions = []string{"O que vence esta semana?"}
	}
	f.messages = append(f.messages, reply)
	return reply, nil
}

func (f *fakeChat) Confirm(_ context.Context, messageID string) (assistant.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, messageID)
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			f.messages[i].PendingAction = nil
		}
	}
	done := model.Message{ID: "done", Sender: model.SenderAssistant, Text: "Pronto, tarefa concluída.", Timestamp: chatNow}
	f.messages = append(f.messages, done)
	return assistant.ExecutionResult{Status: assistant.StatusExecuted, Messages: []model.Message{done}}, nil
}

func (f *fakeChat) Cancel(messageID string) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, messageID)
	for i := range f.messages {
		if f.messages[i].ID == messageID {
			f.messages[i].PendingAction = nil
		}
	}
	notice := model.Message{ID: "n", Sender: model.SenderSystem, Text: "Ação cancelada.", Timestamp: chatNow}
	f.messages = append(f.messages, notice)
	return notice, nil
}

func (f *fakeChat) InterviewActive() bool { return false }

func testModel(chat Chat) Model {
	cfg := defaultConfig()
	cfg.Width = 100
	cfg.Height = 30
	return newModel(context.Background(), chat, cfg)
}

// step feeds msg to m and runs the resulting command once, feeding back a
// replyMsg when one is produced.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	updated, ok := next.(Model)
	require.True(t, ok)
	if cmd == nil {
		return updated
	}
	if reply, isReply := cmd().(replyMsg); isReply {
		assert.True(t, updated.busy)
		next, _ = updated.Update(reply)
		updated, ok = next.(Model)
		require.True(t, ok)
	}
	return updated
}

func TestModel_SendAndConfirm(t *testing.T) {
	chat := &fakeChat{}
	m := testModel(chat)

	assert.Contains(t, m.View(), "Olá!")

	m.input.SetValue("paguei a conta de luz")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.busy)
	assert.Empty(t, m.input.Value())
	view := m.View()
	assert.Contains(t, view, "paguei a conta de luz")
	assert.Contains(t, view, "Conta de luz")
	assert.Contains(t, view, "ctrl+y confirma")
	assert.Contains(t, view, "O que vence esta semana?")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, []string{"a"}, chat.confirmed)
	assert.Equal(t, assistant.StatusExecuted, m.status)
	view = m.View()
	assert.Contains(t, view, "Pronto, tarefa concluída.")
	assert.Contains(t, view, "ação executada")
	assert.NotContains(t, view, "ctrl+y confirma")

	// Nothing left to confirm.
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Nil(t, cmd)
}

func TestModel_Cancel(t *testing.T) {
	chat := &fakeChat{}
	m := testModel(chat)

	m.input.SetValue("paguei")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})

	assert.Equal(t, []string{"a"}, chat.cancelled)
	assert.Empty(t, chat.confirmed)
	assert.Contains(t, m.View(), "Ação cancelada.")
}

func TestModel_IgnoresBlankInput(t *testing.T) {
	chat := &fakeChat{}
	m := testModel(chat)

	m.input.SetValue("   ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).busy)
	assert.Empty(t, chat.Messages())
}

func TestModel_ShowsErrors(t *testing.T) {
	chat := &fakeChat{sendErr: errors.New("serviço indisponível")}
	m := testModel(chat)

	m.input.SetValue("qual o limite do cartão?")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Error(t, m.lastError)
	assert.Contains(t, m.View(), "erro: serviço indisponível")
}

func TestModel_BusyBlocksSecondSend(t *testing.T) {
	m := testModel(&fakeChat{})
	m.busy = true
	m.input.SetValue("oi")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_ResizeAndQuit(t *testing.T) {
	m := testModel(&fakeChat{})

	m = step(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.Equal(t, 60, m.viewport.Width)
	assert.Equal(t, 20-chromeHeight, m.viewport.Height)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, next.(Model).View())
}

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []Option{WithTheme("catppuccin-mocha"), WithSize(120, 40), WithTitle("Casa Silva"), WithHelp(false)} {
		opt(&cfg)
	}

	assert.Equal(t, 120, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
	assert.Equal(t, "Casa Silva", cfg.Title)
	assert.False(t, cfg.ShowHelp)
	assert.Equal(t, themes.CatppuccinMocha.Palette, cfg.Theme.Palette)
	assert.Equal(t, themes.Default.Palette, themes.GetTheme("desconhecido").Palette)

	m := newModel(context.Background(), &fakeChat{}, cfg)
	assert.Contains(t, m.View(), "Casa Silva")
	assert.NotContains(t, m.View(), "enviar")
}

func TestRun_RequiresChat(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil))
}
