package assistant

import (
	"errors"
	"strings"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/textnorm"
)

// ErrInterviewInactive is returned when a reply arrives with no interview running.
var ErrInterviewInactive = errors.New("no defense interview in progress")

// DefenseQuestions are asked in order before a defense is generated.
var DefenseQuestions = []string{
	"Você era o condutor do veículo no momento da infração?",
	"A notificação chegou em até 30 dias depois da data da infração?",
	"Os dados do veículo na notificação (placa, modelo, cor) estão corretos?",
	"Havia sinalização visível no local da infração?",
	"Você tem fotos, testemunhas ou outros documentos que ajudem na defesa?",
}

// interview is the state of a running defense interview.
type interview struct {
	fine       model.TrafficFinePayload
	messageIDs []string
	answers    []model.InterviewAnswer
}

func newInterview(originID string, fine model.TrafficFinePayload) *interview {
	return &interview{fine: fine, messageIDs: []string{originID}}
}

// track records a message that belongs to the interview.
func (iv *interview) track(messageID string) {
	iv.messageIDs = append(iv.messageIDs, messageID)
}

// owns reports whether messageID started or was asked by the interview.
func (iv *interview) owns(messageID string) bool {
	for _, id := range iv.messageIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// question returns the current question, or "" once every answer is in.
func (iv *interview) question() string {
	if iv.done() {
		return ""
	}
	return DefenseQuestions[len(iv.answers)]
}

func (iv *interview) done() bool {
	return len(iv.answers) >= len(DefenseQuestions)
}

// answer appends a reply to the current question.
func (iv *interview) answer(yes bool) error {
	if iv.done() {
		return ErrInterviewInactive
	}
	iv.answers = append(iv.answers, model.InterviewAnswer{Question: iv.question(), Answer: yes})
	return nil
}

func (iv *interview) payload() model.GenerateDefensePayload {
	answers := make([]model.InterviewAnswer, len(iv.answers))
	copy(answers, iv.answers)
	return model.GenerateDefensePayload{Fine: iv.fine, Answers: answers}
}

// parseYesNo reads a binary reply. ok is false when the text is neither.
func parseYesNo(text string) (yes, ok bool) {
	switch strings.TrimSpace(textnorm.Normalize(text)) {
	case "sim", "s", "yes", "claro", "isso", "sim sim":
		return true, true
	case "nao", "no", "negativo", "nao nao":
		return false, true
	default:
		return false, false
	}
}
