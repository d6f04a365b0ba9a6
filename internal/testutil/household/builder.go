// Package household provides test infrastructure for seeding household data.
// It offers a fluent API for creating tasks, cards, card transactions, incomes
// and savings goals in a test database.
//
// Example usage:
//
//	h := household.NewBuilder(t, "house-1").
//		WithTask(household.Task("Conta de luz").DueIn(now, 3)).
//		WithCard(household.Card("Nubank", 5000)).
//		Build(ctx, db.Storage)
package household

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
)

// DefaultID is the household used when a builder is given an empty ID.
const DefaultID = "house-test"

// Household is the seeded data, in creation order.
type Household struct {
	ID           string
	Tasks        []model.Task
	Cards        []model.CreditCard
	Transactions []model.CreditCardTransaction
	Incomes      []model.Income
	Goals        []model.SavingsGoal
}

// MustTask returns the seeded task with title or fails the test.
func (h Household) MustTask(t *testing.T, title string) model.Task {
	t.Helper()
	for _, task := range h.Tasks {
		if task.Title == title {
			return task
		}
	}
	t.Fatalf("task %q not found in test data", title)
	return model.Task{}
}

// MustCard returns the seeded card with name or fails the test.
func (h Household) MustCard(t *testing.T, name string) model.CreditCard {
	t.Helper()
	for _, card := range h.Cards {
		if card.Name == name {
			return card
		}
	}
	t.Fatalf("card %q not found in test data", name)
	return model.CreditCard{}
}

// Builder collects records and creates them in storage.
type Builder struct {
	t     *testing.T
	id    string
	tasks []*TaskSpec
	cards []*CardSpec
	incs  []model.Income
	goals []model.SavingsGoal
}

// NewBuilder creates a builder for householdID.
func NewBuilder(t *testing.T, householdID string) *Builder {
	t.Helper()
	if householdID == "" {
		householdID = DefaultID
	}
	return &Builder{t: t, id: householdID}
}

// WithTask adds a task.
func (b *Builder) WithTask(spec *TaskSpec) *Builder {
	b.tasks = append(b.tasks, spec)
	return b
}

// WithCard adds a card and its transactions.
func (b *Builder) WithCard(spec *CardSpec) *Builder {
	b.cards = append(b.cards, spec)
	return b
}

// WithMonthlyIncome adds a recurring income.
func (b *Builder) WithMonthlyIncome(description string, amount int64) *Builder {
	b.incs = append(b.incs, model.Income{
		Description: description,
		Amount:      decimal.NewFromInt(amount),
		Frequency:   model.IncomeMonthly,
	})
	return b
}

// WithGoal adds a savings goal.
func (b *Builder) WithGoal(name string, current, target int64) *Builder {
	b.goals = append(b.goals, model.SavingsGoal{
		Name:          name,
		CurrentAmount: decimal.NewFromInt(current),
		TargetAmount:  decimal.NewFromInt(target),
	})
	return b
}

// Build creates every record in store and fails the test on the first error.
func (b *Builder) Build(ctx context.Context, store service.Storage) Household {
	b.t.Helper()
	h, err := b.build(ctx, store)
	if err != nil {
		b.t.Fatalf("failed to seed household: %v", err)
	}
	return h
}

func (b *Builder) build(ctx context.Context, store service.Storage) (Household, error) {
	h := Household{ID: b.id}

	for _, spec := range b.tasks {
		task := spec.task
		task.ID = uuid.NewString()
		task.HouseholdID = b.id
		if err := store.CreateTask(ctx, &task); err != nil {
			return h, fmt.Errorf("failed to create task %q: %w", task.Title, err)
		}
		h.Tasks = append(h.Tasks, task)
	}

	for _, spec := range b.cards {
		card := spec.card
		card.ID = uuid.NewString()
		card.HouseholdID = b.id
		if err := store.CreateCard(ctx, &card); err != nil {
			return h, fmt.Errorf("failed to create card %q: %w", card.Name, err)
		}
		for _, txn := range spec.txns {
			txn.ID = uuid.NewString()
			txn.CardID = card.ID
			if _, err := store.PostCardTransaction(ctx, &txn); err != nil {
				return h, fmt.Errorf("failed to post %q: %w", txn.Description, err)
			}
			h.Transactions = append(h.Transactions, txn)
		}
		posted, err := store.GetCard(ctx, card.ID)
		if err != nil {
			return h, fmt.Errorf("failed to reload card %q: %w", card.Name, err)
		}
		h.Cards = append(h.Cards, *posted)
	}

	for _, inc := range b.incs {
		inc.ID = uuid.NewString()
		inc.HouseholdID = b.id
		if inc.ReceivedAt.IsZero() {
			inc.ReceivedAt = time.Now()
		}
		if err := store.CreateIncome(ctx, &inc); err != nil {
			return h, fmt.Errorf("failed to create income %q: %w", inc.Description, err)
		}
		h.Incomes = append(h.Incomes, inc)
	}

	for _, goal := range b.goals {
		goal.ID = uuid.NewString()
		goal.HouseholdID = b.id
		if err := store.CreateSavingsGoal(ctx, &goal); err != nil {
			return h, fmt.Errorf("failed to create goal %q: %w", goal.Name, err)
		}
		h.Goals = append(h.Goals, goal)
	}

	return h, nil
}

// TaskSpec describes a task to seed.
type TaskSpec struct {
	task model.Task
}

// Task starts a pending "other" task with title.
func Task(title string) *TaskSpec {
	return &TaskSpec{task: model.Task{
		Title:        title,
		Category:     model.CategoryOther,
		Status:       model.TaskPending,
		HealthStatus: model.HealthOK,
		ImpactLevel:  model.ImpactLow,
	}}
}

// Category sets the task category.
func (s *TaskSpec) Category(c model.TaskCategory) *TaskSpec {
	s.task.Category = c
	return s
}

// Health sets the task health.
func (s *TaskSpec) Health(h model.HealthStatus) *TaskSpec {
	s.task.HealthStatus = h
	return s
}

// Amount sets the task amount.
func (s *TaskSpec) Amount(v string) *TaskSpec {
	s.task.Amount = decimal.RequireFromString(v)
	return s
}

// Due sets the due date.
func (s *TaskSpec) Due(due time.Time) *TaskSpec {
	s.task.DueDate = &due
	return s
}

// DueIn sets the due date days after now's midnight. Negative days make it overdue.
func (s *TaskSpec) DueIn(now time.Time, days int) *TaskSpec {
	return s.Due(model.StartOfDay(now).AddDate(0, 0, days))
}

// Completed marks the task done.
func (s *TaskSpec) Completed(at time.Time) *TaskSpec {
	s.task.Status = model.TaskCompleted
	s.task.CompletedAt = &at
	return s
}

// CardSpec describes a card and its transactions.
type CardSpec struct {
	card model.CreditCard
	txns []model.CreditCardTransaction
}

// Card starts a card closing on the 1st and due on the 10th.
func Card(name string, limit int64) *CardSpec {
	return &CardSpec{card: model.CreditCard{
		Name:        name,
		CreditLimit: decimal.NewFromInt(limit),
		ClosingDay:  1,
		DueDay:      10,
	}}
}

// Purchase adds a single charge.
func (s *CardSpec) Purchase(description, amount string, at time.Time) *CardSpec {
	return s.Installment(description, amount, at, 1, 1)
}

// Installment adds one slice of an installment plan.
func (s *CardSpec) Installment(description, amount string, at time.Time, current, total int) *CardSpec {
	s.txns = append(s.txns, model.CreditCardTransaction{
		Description:        description,
		Amount:             decimal.RequireFromString(amount),
		PurchaseDate:       at,
		InstallmentCurrent: current,
		InstallmentTotal:   total,
	})
	return s
}
