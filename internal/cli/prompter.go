package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/casa/internal/assistant"
	"github.com/Veraticus/casa/internal/model"
)

// Chat is the part of an assistant session the line-mode prompter drives.
type Chat interface {
	Send(ctx context.Context, text string) (model.Message, error)
	Confirm(ctx context.Context, messageID string) (assistant.ExecutionResult, error)
	Cancel(messageID string) (model.Message, error)
	InterviewActive() bool
}

// Quit commands end a line-mode chat.
var quitCommands = map[string]bool{"/sair": true, "/quit": true, "/exit": true}

// ChatStats summarizes a line-mode chat.
type ChatStats struct {
	StartTime time.Time
	Duration  time.Duration
	Messages  int
	Confirmed int
	Cancelled int
	Failed    int
	Expired   int
	CacheHits int
	Proposals int
}

// Prompter runs a chat session on plain stdin/stdout, asking for explicit
// confirmation whenever a reply carries an action.
type Prompter struct {
	chat   Chat
	writer io.Writer
	reader *NonBlockingReader
	stats  ChatStats
	mu     sync.RWMutex
}

// NewCLIPrompter creates a prompter for chat.
func NewCLIPrompter(chat Chat, reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		chat:   chat,
		reader: NewNonBlockingReader(reader),
		writer: writer,
		stats:  ChatStats{StartTime: time.Now()},
	}
}

// Run reads lines until a quit command, EOF or ctx ends. Send failures are
// shown and the loop continues.
func (p *Prompter) Run(ctx context.Context) error {
	p.println(FormatTitle("Casa"))
	p.println(SubtleStyle.Render("Digite sua pergunta. /sair encerra."))

	for {
		line, err := p.prompt(ctx, "Você")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrInputCancelled) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		if quitCommands[strings.ToLower(line)] {
			return nil
		}

		reply, err := p.chat.Send(ctx, line)
		if err != nil {
			p.println(FormatError(err.Error()))
			continue
		}
		p.count(func(s *ChatStats) {
			s.Messages++
			if reply.IsCached {
				s.CacheHits++
			}
		})
		p.showMessage(reply)

		if reply.HasPendingAction() {
			if err := p.resolveAction(ctx, reply); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, ErrInputCancelled) {
					return nil
				}
				return err
			}
		}
	}
}

// resolveAction asks the user to confirm or cancel the action on msg.
func (p *Prompter) resolveAction(ctx context.Context, msg model.Message) error {
	p.count(func(s *ChatStats) { s.Proposals++ })

	action := msg.PendingAction
	p.println(RenderBox("Confirmar ação?", action.Summary+"\n"+
		SubtleStyle.Render("válida até "+action.ExpiresAt.Local().Format("15:04"))))

	choice, err := p.promptChoice(ctx, "[s] confirmar  [n] cancelar", []string{"s", "n"})
	if err != nil {
		return err
	}

	if choice == "n" {
		notice, err := p.chat.Cancel(msg.ID)
		if err != nil {
			return fmt.Errorf("failed to cancel action: %w", err)
		}
		p.count(func(s *ChatStats) { s.Cancelled++ })
		p.showMessage(notice)
		return nil
	}

	result, err := p.chat.Confirm(ctx, msg.ID)
	if err != nil {
		p.println(FormatError(err.Error()))
		return nil
	}
	p.count(func(s *ChatStats) {
		switch result.Status {
		case assistant.StatusExecuted:
			s.Confirmed++
		case assistant.StatusExpired:
			s.Expired++
		case assistant.StatusFailed:
			s.Failed++
		}
	})
	if result.Err != nil {
		slog.Debug("Confirmed action failed", "message_id", msg.ID, "error", result.Err)
	}
	for _, m := range result.Messages {
		p.showMessage(m)
	}
	return nil
}

func (p *Prompter) showMessage(msg model.Message) {
	switch msg.Sender {
	case model.SenderSystem:
		p.println(SubtleStyle.Render("• " + msg.Text))
		return
	case model.SenderUser:
		return
	}

	label := PromptStyle.Render("Casa")
	if msg.IsCached {
		label += SubtleStyle.Render(" (memória)")
	}
	p.println(label + " " + msg.Text)
	for _, src := range msg.Sources {
		p.println(SubtleStyle.Render("  fonte: " + firstNonEmpty(src.Title, src.URL)))
	}
	if len(msg.Suggestions) > 0 {
		p.println(InfoStyle.Render("  sugestões: " + strings.Join(msg.Suggestions, " · ")))
	}
	if p.chat.InterviewActive() {
		p.println(SubtleStyle.Render("  (responda sim ou não)"))
	}
}

func (p *Prompter) prompt(ctx context.Context, label string) (string, error) {
	if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}
	return p.reader.ReadLine(ctx)
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		input, err := p.prompt(ctx, prompt)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}
		p.println(FormatError("Opção inválida. Tente de novo."))
	}
}

// Stats returns a snapshot of the session counters.
func (p *Prompter) Stats() ChatStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	stats := p.stats
	stats.Duration = time.Since(stats.StartTime)
	return stats
}

// ShowSummary prints the session counters.
func (p *Prompter) ShowSummary() {
	stats := p.Stats()
	if stats.Messages == 0 {
		return
	}
	summary := fmt.Sprintf("  • Mensagens: %d\n", stats.Messages) +
		fmt.Sprintf("  • Respostas da memória: %d\n", stats.CacheHits) +
		fmt.Sprintf("  • Ações propostas: %d\n", stats.Proposals) +
		fmt.Sprintf("  • Confirmadas: %d  Canceladas: %d  Expiradas: %d  Falhas: %d\n",
			stats.Confirmed, stats.Cancelled, stats.Expired, stats.Failed) +
		fmt.Sprintf("  • Duração: %s", stats.Duration.Round(time.Second))
	p.println(RenderBox("Resumo da conversa", summary))
}

func (p *Prompter) count(fn func(*ChatStats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.stats)
}

func (p *Prompter) println(text string) {
	if _, err := fmt.Fprintln(p.writer, text); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
