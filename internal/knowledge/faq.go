// Package knowledge answers questions from a static FAQ corpus and a validated,
// TTL-bound cache of remote answers.
package knowledge

import (
	"math"
	"sort"
	"strings"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/textnorm"
)

const (
	substringBonus = 2.0
	coverageRatio  = 0.6
	minScore       = 2.5
)

type indexedItem struct {
	item       model.FaqItem
	normalized string
	tokens     map[string]struct{}
}

// Matcher scores free text against a fixed question/answer corpus.
type Matcher struct {
	items []indexedItem
}

// NewMatcher indexes corpus. The corpus order is the tie-break order.
func NewMatcher(corpus []model.FaqItem) *Matcher {
	m := &Matcher{items: make([]indexedItem, 0, len(corpus))}
	for _, item := range corpus {
		normalized := textnorm.Normalize(item.Question)
		tokens := make(map[string]struct{})
		for _, w := range strings.Fields(normalized) {
			tokens[w] = struct{}{}
		}
		m.items = append(m.items, indexedItem{item: item, normalized: normalized, tokens: tokens})
	}
	return m
}

type candidate struct {
	item  model.FaqItem
	score float64
}

// FindBestMatch returns the corpus item that best matches text. The second
// result is false when nothing clears the threshold and the caller should fall
// through to the remote pipeline.
func (m *Matcher) FindBestMatch(text string) (model.FaqItem, bool) {
	query := textnorm.Normalize(text)
	if query == "" {
		return model.FaqItem{}, false
	}

	for _, it := range m.items {
		if it.normalized == query {
			return it.item, true
		}
	}

	tokens := textnorm.Tokens(query, 2)
	var candidates []candidate
	for _, it := range m.items {
		score := 0.0
		for _, tok := range tokens {
			if _, ok := it.tokens[tok]; ok {
				score++
			}
		}
		if strings.Contains(it.normalized, query) || strings.Contains(query, it.normalized) {
			score += substringBonus
		}
		if score == 0 {
			continue
		}
		candidates = append(candidates, candidate{item: it.item, score: score})
	}
	if len(candidates) == 0 {
		return model.FaqItem{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	threshold := math.Max(coverageRatio*float64(len(tokens)), minScore)
	if candidates[0].score >= threshold {
		return candidates[0].item, true
	}
	return model.FaqItem{}, false
}

// DefaultCorpus is the built-in FAQ shipped with the assistant.
func DefaultCorpus() []model.FaqItem {
	return []model.FaqItem{
		{
			Category: "ir",
			Question: "Quem é obrigado a declarar imposto de renda?",
			Answer: "Em regra, precisa declarar quem recebeu rendimentos tributáveis acima do limite anual definido pela Receita Federal, " +
				"teve rendimentos isentos acima do teto, possui bens acima do valor fixado ou obteve ganho de capital. " +
				"Confira as regras do ano no site da Receita.",
		},
		{
			Category: "ir",
			Question: "Posso deduzir despesas médicas no imposto de renda?",
			Answer: "Sim. Consultas, exames, internações e planos de saúde do titular e dependentes são dedutíveis sem limite de valor, " +
				"desde que haja recibo ou nota com CPF ou CNPJ do prestador.",
		},
		{
			Category: "ir",
			Question: "Posso deduzir gastos com escola no imposto de renda?",
			Answer: "Despesas com educação formal (ensino infantil, fundamental, médio, superior e técnico) são dedutíveis até o limite anual por pessoa. " +
				"Cursos livres, idiomas e material escolar não entram.",
		},
		{
			Category: "ir",
			Question: "Como consultar a restituição do imposto de renda?",
			Answer: "A consulta é feita no site ou no aplicativo da Receita Federal informando CPF e data de nascimento. " +
				"Os lotes são pagos em datas fixas divulgadas no início do ano.",
		},
		{
			Category: "ir",
			Question: "O que acontece se eu cair na malha fina?",
			Answer: "A declaração fica retida até que as pendências sejam esclarecidas. Você pode consultar o motivo no e-CAC " +
				"e enviar uma declaração retificadora se encontrar erro.",
		},
		{
			Category: "transito",
			Question: "Como recorrer de uma multa de trânsito?",
			Answer: "O primeiro passo é a defesa prévia junto ao órgão autuador, dentro do prazo indicado na notificação de autuação. " +
				"Se for negada, cabe recurso à JARI e depois ao CETRAN.",
		},
		{
			Category: "transito",
			Question: "Quantos pontos suspendem a CNH?",
			Answer: "A suspensão ocorre ao atingir 20 pontos em 12 meses se houver duas ou mais infrações gravíssimas, " +
				"30 pontos com uma gravíssima, ou 40 pontos sem gravíssimas.",
		},
		{
			Category: "transito",
			Question: "Pagar a multa com desconto impede o recurso?",
			Answer: "Não. Você pode pagar com desconto e ainda assim recorrer; se o recurso for aceito, o valor é devolvido.",
		},
		{
			Category: "cartao",
			Question: "Como funciona o limite do cartão em compras parceladas?",
			Answer: "Na compra parcelada o limite é ocupado pelo valor total das parcelas que ainda não foram pagas, " +
				"e vai sendo liberado a cada fatura quitada.",
		},
		{
			Category: "cartao",
			Question: "Qual a diferença entre data de fechamento e vencimento do cartão?",
			Answer: "O fechamento é o dia em que a fatura para de receber compras; o vencimento é o dia do pagamento. " +
				"Compras feitas logo após o fechamento só entram na fatura seguinte.",
		},
		{
			Category: "geral",
			Question: "Como cadastrar uma conta para pagar?",
			Answer: "Envie a foto do boleto ou descreva a conta com valor e vencimento que eu sugiro o cadastro para você confirmar.",
		},
	}
}
