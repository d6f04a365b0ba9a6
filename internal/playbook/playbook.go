// Package playbook holds the static remediation plans for household tasks and
// selects the consequence stage a task has reached.
package playbook

import (
	"time"

	"github.com/Veraticus/casa/internal/model"
)

type planKey struct {
	category model.TaskCategory
	health   model.HealthStatus
}

var plans = map[planKey]model.ActionPlan{
	{model.CategoryVehicle, model.HealthRisk}: {
		Title: "Multa ou débito do veículo em aberto",
		Steps: []string{
			"Confira a notificação e o prazo de defesa prévia",
			"Avalie se cabe recurso antes de pagar",
			"Pague com desconto se não for recorrer",
			"Guarde o comprovante junto aos documentos do veículo",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: 0, Title: "Vencimento", Description: "Último dia para pagar com desconto ou apresentar defesa."},
			{DaysOffset: 3, Title: "Juros", Description: "O valor passa a ter multa e juros de mora."},
			{DaysOffset: 15, Title: "Licenciamento bloqueado", Description: "Débitos vencidos impedem o licenciamento anual."},
			{DaysOffset: 30, Title: "Dívida ativa", Description: "O débito pode ser inscrito em dívida ativa e protestado."},
		},
	},
	{model.CategoryVehicle, model.HealthWarning}: {
		Title: "Obrigação do veículo próxima do prazo",
		Steps: []string{
			"Verifique IPVA, licenciamento e seguro obrigatório",
			"Separe o valor no orçamento do mês",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: 0, Title: "Vencimento", Description: "Pague até a data para evitar acréscimos."},
			{DaysOffset: 30, Title: "Acréscimos", Description: "Multa e juros começam a pesar no valor."},
		},
	},
	{model.CategoryTax, model.HealthRisk}: {
		Title: "Pendência com a Receita Federal",
		Steps: []string{
			"Consulte a situação no e-CAC",
			"Reúna recibos e informes de rendimento",
			"Envie a declaração ou a retificadora",
			"Emita o DARF da multa se houver atraso",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: 0, Title: "Prazo final", Description: "Último dia de entrega sem multa."},
			{DaysOffset: 1, Title: "Multa por atraso", Description: "Multa mínima aplicada e calculada por mês de atraso."},
			{DaysOffset: 60, Title: "CPF pendente", Description: "O CPF pode ficar com situação pendente de regularização."},
		},
	},
	{model.CategoryTax, model.HealthWarning}: {
		Title: "Declaração do imposto de renda se aproximando",
		Steps: []string{
			"Baixe o programa ou use a declaração pré-preenchida",
			"Confira as deduções cadastradas",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: -30, Title: "Preparação", Description: "Organize documentos com antecedência."},
			{DaysOffset: 0, Title: "Prazo final", Description: "Último dia de entrega sem multa."},
		},
	},
	{model.CategoryHousing, model.HealthRisk}: {
		Title: "Aluguel ou condomínio atrasado",
		Steps: []string{
			"Fale com o locador ou a administradora",
			"Negocie o parcelamento do atraso",
			"Registre o acordo por escrito",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: 0, Title: "Vencimento", Description: "Pagamento em dia."},
			{DaysOffset: 1, Title: "Multa contratual", Description: "Incidem multa e juros previstos no contrato."},
			{DaysOffset: 30, Title: "Notificação", Description: "O locador pode notificar formalmente a inadimplência."},
			{DaysOffset: 90, Title: "Ação judicial", Description: "Risco de ação de cobrança ou despejo."},
		},
	},
	{model.CategoryUtilities, model.HealthRisk}: {
		Title: "Conta de consumo vencida",
		Steps: []string{
			"Pague a fatura vencida ou negocie com a concessionária",
			"Ative o débito automático para os próximos meses",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: 0, Title: "Vencimento", Description: "Pagamento em dia."},
			{DaysOffset: 15, Title: "Aviso de corte", Description: "A concessionária envia o aviso de suspensão."},
			{DaysOffset: 30, Title: "Suspensão", Description: "O serviço pode ser suspenso."},
		},
	},
	{model.CategoryHealth, model.HealthWarning}: {
		Title: "Plano ou despesa de saúde pendente",
		Steps: []string{
			"Confira a mensalidade do plano",
			"Guarde recibos para dedução no imposto de renda",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: 0, Title: "Vencimento", Description: "Pagamento em dia."},
			{DaysOffset: 60, Title: "Suspensão do plano", Description: "Atrasos longos permitem a suspensão da cobertura."},
		},
	},
	{model.CategoryEducation, model.HealthWarning}: {
		Title: "Mensalidade escolar pendente",
		Steps: []string{
			"Confirme o valor com a escola",
			"Guarde o recibo para dedução no imposto de renda",
		},
		Timeline: []model.TimelineStage{
			{DaysOffset: 0, Title: "Vencimento", Description: "Pagamento em dia."},
			{DaysOffset: 90, Title: "Rematrícula", Description: "A escola pode recusar a rematrícula com débitos."},
		},
	},
}

// PlanFor returns the plan for category at health.
func PlanFor(category model.TaskCategory, health model.HealthStatus) (model.ActionPlan, bool) {
	plan, ok := plans[planKey{category, health}]
	if !ok {
		return model.ActionPlan{}, false
	}
	plan.Category = category
	plan.HealthStatus = health
	return plan, true
}

// DaysSince returns the whole calendar days from due to today, comparing
// midnight to midnight. It is negative before the due date.
func DaysSince(due, today time.Time) int {
	dy, dm, dd := due.Date()
	ty, tm, td := today.Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b) / (24 * time.Hour))
}

// ActiveStage returns the index of the last stage whose offset has been reached
// by today, or 0 when none has. stages must be sorted by DaysOffset.
func ActiveStage(stages []model.TimelineStage, due, today time.Time) int {
	diff := DaysSince(due, today)
	active := 0
	for i, stage := range stages {
		if stage.DaysOffset <= diff {
			active = i
		}
	}
	return active
}
