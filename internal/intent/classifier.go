// Package intent routes free text to a closed set of intent tags using keyword groups.
package intent

import (
	"strings"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/textnorm"
)

// rule pairs an intent with the predicate that selects it.
type rule struct {
	match  func(text string) bool
	intent model.Intent
}

var (
	taxTerms = []string{
		" imposto de renda ", " irpf ", " ir ", " leao ", " receita federal ",
		" declaracao ", " declarar ", " carne leao ",
	}
	trafficTerms = []string{
		" multa", " infracao", " detran", " radar", " cnh ", " pontos na carteira",
		" autuacao", " transito", " recurso de multa", " lombada", " estacionamento proibido",
	}
	deadlineTerms = []string{
		" prazo", " ate quando", " data limite", " quando entregar", " quando devo entregar",
		" vencimento", " ultimo dia", " quando termina",
	}
	refundTerms = []string{
		" restituicao", " restituir", " malha fina",
	}
	refundWithTaxTerms = []string{
		" lote", " receber de volta", " devolucao",
	}
	deductionTerms = []string{
		" deducao", " deducoes", " deduzir", " dedutivel", " dedutiveis", " abater",
	}
	deductionWithTaxTerms = []string{
		" medico", " consulta", " escola", " faculdade", " plano de saude", " dentista",
		" despesa", " previdencia", " dependente",
	}
	uploadTerms = []string{
		" enviar arquivo", " anexar", " anexo", " upload", " foto do", " foto da",
		" mandar foto", " enviar documento", " escanear", " enviar a foto", " subir arquivo",
	}
	actionTerms = []string{
		" concluir", " conclui", " marcar como", " ja paguei", " paguei", " finalizar",
		" resolvi", " dar baixa", " quitei", " quitar",
	}
	statusTerms = []string{
		" pendencia", " pendente", " resumo", " status", " o que falta", " atrasad",
		" tarefas", " minhas contas", " contas a pagar",
	}
	financialTerms = []string{
		" quanto", " saldo", " gastei", " gasto", " limite", " cartao", " cartoes", " renda",
		" economia", " poupanca", " meta", " dinheiro", " financ", " salario",
	}
)

// rules are evaluated in order; specific domains come before generic financial keywords.
var rules = []rule{
	{intent: model.IntentTrafficAnalysis, match: func(s string) bool { return containsAny(s, trafficTerms) }},
	{intent: model.IntentIRDeadline, match: func(s string) bool {
		return containsAny(s, taxTerms) && containsAny(s, deadlineTerms)
	}},
	{intent: model.IntentIRRefund, match: func(s string) bool {
		return containsAny(s, refundTerms) || (containsAny(s, taxTerms) && containsAny(s, refundWithTaxTerms))
	}},
	{intent: model.IntentIRDeduction, match: func(s string) bool {
		return containsAny(s, deductionTerms) || (containsAny(s, taxTerms) && containsAny(s, deductionWithTaxTerms))
	}},
	{intent: model.IntentIRGeneral, match: func(s string) bool { return containsAny(s, taxTerms) }},
	{intent: model.IntentUpload, match: func(s string) bool { return containsAny(s, uploadTerms) }},
	{intent: model.IntentActionProposal, match: func(s string) bool { return containsAny(s, actionTerms) }},
	{intent: model.IntentStatusReport, match: func(s string) bool { return containsAny(s, statusTerms) }},
	{intent: model.IntentFinancialStatus, match: func(s string) bool { return containsAny(s, financialTerms) }},
}

// Classify maps text to exactly one intent. Unmatched input, including the empty
// string, yields model.IntentUnknown.
func Classify(text string) model.Intent {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return model.IntentUnknown
	}

	padded := " " + normalized + " "
	for _, r := range rules {
		if r.match(padded) {
			return r.intent
		}
	}
	return model.IntentUnknown
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
