package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/casa/internal/credit"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
)

// Household is a read-only snapshot of the data the intent handlers summarize.
type Household struct {
	LoadedAt  time.Time
	CardTxns  map[string][]model.CreditCardTransaction
	OpenTasks []model.Task
	Cards     []model.CreditCard
	Incomes   []model.Income
	Goals     []model.SavingsGoal
}

// HouseholdSource supplies the snapshot for a conversation.
type HouseholdSource interface {
	Household(ctx context.Context) (*Household, error)
}

// householdReader is the subset of storage a snapshot is built from.
type householdReader interface {
	service.TaskStore
	service.CardStore
	service.FinanceStore
}

func loadHousehold(ctx context.Context, store householdReader, householdID string, now time.Time) (*Household, error) {
	pending := model.TaskPending
	tasks, err := store.ListTasks(ctx, householdID, service.TaskFilter{Status: &pending})
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	cards, err := store.ListCards(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	txns := make(map[string][]model.CreditCardTransaction, len(cards))
	for _, card := range cards {
		list, err := store.ListCardTransactions(ctx, card.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions for card %s: %w", card.ID, err)
		}
		txns[card.ID] = list
	}

	incomes, err := store.ListIncomes(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load incomes: %w", err)
	}
	goals, err := store.ListSavingsGoals(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load savings goals: %w", err)
	}

	return &Household{
		LoadedAt:  now,
		OpenTasks: tasks,
		Cards:     cards,
		CardTxns:  txns,
		Incomes:   incomes,
		Goals:     goals,
	}, nil
}

// MonthlyIncome sums recurring incomes plus one-off incomes received in now's month.
func (h *Household) MonthlyIncome(now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, inc := range h.Incomes {
		switch {
		case inc.Frequency == model.IncomeMonthly:
			total = total.Add(inc.Amount)
		case credit.MonthsDiff(inc.ReceivedAt, now) == 0:
			total = total.Add(inc.Amount)
		}
	}
	return total
}

// Overdue returns the open tasks due before today.
func (h *Household) Overdue(now time.Time) []model.Task {
	var out []model.Task
	for _, t := range h.OpenTasks {
		if t.IsOverdue(now) {
			out = append(out, t)
		}
	}
	return out
}

// NextDue returns the open task with the earliest due date on or after today.
func (h *Household) NextDue(now time.Time) (model.Task, bool) {
	today := model.StartOfDay(now)
	var best model.Task
	found := false
	for _, t := range h.OpenTasks {
		if t.DueDate == nil || t.DueDate.Before(today) {
			continue
		}
		if !found || t.DueDate.Before(*best.DueDate) {
			best, found = t, true
		}
	}
	return best, found
}
