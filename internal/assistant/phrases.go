package assistant

import (
	"math/rand/v2"
	"sync"
)

// Picker chooses one of n phrase variants.
type Picker interface {
	Pick(n int) int
}

// RandomPicker picks uniformly from a seeded source. It is safe for concurrent use.
type RandomPicker struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewRandomPicker creates a picker seeded with seed.
func NewRandomPicker(seed uint64) *RandomPicker {
	return &RandomPicker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Pick returns an index in [0, n). It returns 0 when n <= 1.
func (p *RandomPicker) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// FirstPicker always picks the first variant.
type FirstPicker struct{}

// Pick returns 0.
func (FirstPicker) Pick(int) int { return 0 }

func pick(p Picker, options []string) string {
	i := p.Pick(len(options))
	if i < 0 || i >= len(options) {
		i = 0
	}
	return options[i]
}

var leadIns = []string{
	"Boa pergunta!",
	"Posso te ajudar com isso.",
	"Vamos lá.",
	"Entendi sua dúvida.",
	"Olha só:",
}

// disclaimer follows every answer taken from the local corpus.
const disclaimer = "Essas informações são educativas e não substituem a orientação de um profissional. Confira sempre as fontes oficiais."

var nonAnswers = []string{
	"Ainda não sei responder isso. Pode reformular a pergunta ou conferir o painel da casa?",
	"Não tenho uma resposta segura para isso agora. Tente perguntar de outro jeito ou veja o painel.",
	"Essa eu fico devendo. Que tal reformular ou dar uma olhada no painel com suas pendências?",
}

const (
	msgCancelled      = "Ação cancelada."
	msgExpired        = "Essa ação expirou. Por segurança, confirmações valem por 5 minutos. Peça de novo e eu preparo uma nova proposta."
	msgActionFailed   = "Desculpe, não consegui concluir essa ação agora. Você pode tentar confirmar de novo em instantes."
	msgDefenseFailed  = "Desculpe, não consegui gerar a defesa agora. Tente confirmar novamente em alguns minutos."
	msgUploadFailed   = "Desculpe, não consegui enviar o arquivo. Tente novamente."
	msgYesNo          = "Responda apenas com Sim ou Não, por favor."
	msgInterviewStart = "Vou te fazer algumas perguntas rápidas sobre a multa."
	msgInterviewDone  = "Obrigado! Com essas respostas já consigo montar uma defesa prévia. Quer que eu gere o documento?"
	msgUploadGuidance = "Para enviar um documento, use o botão de anexo e mande a foto ou o PDF. Eu leio o conteúdo e sugiro o próximo passo."
	msgFineGuidance   = "Me envie a foto da notificação da multa ou diga o valor (por exemplo: multa de R$ 195,23) que eu registro para você."
	msgDeductionHelp  = "Despesas com saúde, educação, previdência e dependentes podem ser dedutíveis. Diga o valor e o tipo (por exemplo: consulta médica de R$ 350,00) que eu guardo para a declaração."
	msgNoOpenTasks    = "Você não tem tarefas pendentes no momento."
	msgClarify        = "Não encontrei essa tarefa. Qual destas você quer concluir?"
)

const (
	chipYes = "Sim"
	chipNo  = "Não"
)
