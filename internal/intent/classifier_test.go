package intent

import (
	"testing"

	"github.com/Veraticus/casa/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Intent
	}{
		{"traffic fine", "Recebi uma multa de trânsito ontem", model.IntentTrafficAnalysis},
		{"traffic before financial", "quanto custa recorrer da multa?", model.IntentTrafficAnalysis},
		{"tax deadline", "Qual o prazo do imposto de renda?", model.IntentIRDeadline},
		{"tax beats generic quanto", "Quanto vou pagar de imposto de renda?", model.IntentIRGeneral},
		{"refund", "Quando sai minha restituição?", model.IntentIRRefund},
		{"refund batch", "qual lote do IRPF eu caio", model.IntentIRRefund},
		{"deduction", "Posso deduzir a escola do meu filho?", model.IntentIRDeduction},
		{"deduction with tax context", "consulta no dentista entra no imposto de renda?", model.IntentIRDeduction},
		{"upload", "quero anexar o boleto", model.IntentUpload},
		{"action", "Já paguei a conta de luz", model.IntentActionProposal},
		{"status", "Me dá um resumo das pendências", model.IntentStatusReport},
		{"financial", "Qual o saldo do cartão?", model.IntentFinancialStatus},
		{"abbreviation expands", "qto gastei esse mes", model.IntentFinancialStatus},
		{"unknown", "bom dia!", model.IntentUnknown},
		{"empty", "", model.IntentUnknown},
		{"punctuation only", "?!...", model.IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassify_IsTotal(t *testing.T) {
	valid := make(map[model.Intent]bool)
	for _, i := range model.AllIntents() {
		valid[i] = true
	}

	inputs := []string{"", " ", "\x00", "ááááá", "IR", "ir", "🚗💸", "multa multa multa", "12345", "vc pq q n"}
	for _, in := range inputs {
		got := Classify(in)
		assert.True(t, valid[got], "input %q produced %q", in, got)
	}
}
