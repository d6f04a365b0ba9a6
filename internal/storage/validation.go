// Package storage provides the data persistence layer for casa.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/casa/internal/model"
)

// Validation errors.
var (
	ErrNilContext             = errors.New("context cannot be nil")
	ErrEmptyString            = errors.New("string parameter cannot be empty")
	ErrNilParameter           = errors.New("parameter cannot be nil")
	ErrInvalidTask            = errors.New("invalid task")
	ErrInvalidDeduction       = errors.New("invalid deduction")
	ErrInvalidCard            = errors.New("invalid credit card")
	ErrInvalidCardTransaction = errors.New("invalid credit card transaction")
	ErrInvalidIncome          = errors.New("invalid income")
	ErrInvalidGoal            = errors.New("invalid savings goal")
	ErrInvalidFact            = errors.New("invalid knowledge fact")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateTask(task *model.Task) error {
	if task == nil {
		return fmt.Errorf("%w: task", ErrNilParameter)
	}
	if task.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTask)
	}
	if task.HouseholdID == "" {
		return fmt.Errorf("%w: missing household", ErrInvalidTask)
	}
	if strings.TrimSpace(task.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidTask)
	}
	if task.Category == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidTask)
	}
	return nil
}

func validateDeduction(d *model.Deduction) error {
	if d == nil {
		return fmt.Errorf("%w: deduction", ErrNilParameter)
	}
	if d.ID == "" || d.HouseholdID == "" {
		return fmt.Errorf("%w: missing ID or household", ErrInvalidDeduction)
	}
	if d.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidDeduction)
	}
	if !d.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidDeduction)
	}
	if d.Category == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidDeduction)
	}
	return nil
}

func validateCard(card *model.CreditCard) error {
	if card == nil {
		return fmt.Errorf("%w: card", ErrNilParameter)
	}
	if card.ID == "" || card.HouseholdID == "" {
		return fmt.Errorf("%w: missing ID or household", ErrInvalidCard)
	}
	if strings.TrimSpace(card.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCard)
	}
	if card.ClosingDay < 1 || card.ClosingDay > 31 || card.DueDay < 1 || card.DueDay > 31 {
		return fmt.Errorf("%w: closing and due day must be between 1 and 31", ErrInvalidCard)
	}
	return nil
}

func validateCardTransaction(txn *model.CreditCardTransaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" || txn.CardID == "" {
		return fmt.Errorf("%w: missing ID or card", ErrInvalidCardTransaction)
	}
	if txn.PurchaseDate.IsZero() {
		return fmt.Errorf("%w: missing purchase date", ErrInvalidCardTransaction)
	}
	if txn.Hash == "" {
		return fmt.Errorf("%w: missing hash", ErrInvalidCardTransaction)
	}
	if txn.InstallmentTotal < 0 || txn.InstallmentCurrent < 0 ||
		(txn.InstallmentTotal > 0 && txn.InstallmentCurrent > txn.InstallmentTotal) {
		return fmt.Errorf("%w: installment %d/%d", ErrInvalidCardTransaction, txn.InstallmentCurrent, txn.InstallmentTotal)
	}
	return nil
}

func validateIncome(income *model.Income) error {
	if income == nil {
		return fmt.Errorf("%w: income", ErrNilParameter)
	}
	if income.ID == "" || income.HouseholdID == "" {
		return fmt.Errorf("%w: missing ID or household", ErrInvalidIncome)
	}
	if income.Frequency != model.IncomeMonthly && income.Frequency != model.IncomeOnce {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidIncome, income.Frequency)
	}
	return nil
}

func validateGoal(goal *model.SavingsGoal) error {
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if goal.ID == "" || goal.HouseholdID == "" {
		return fmt.Errorf("%w: missing ID or household", ErrInvalidGoal)
	}
	if strings.TrimSpace(goal.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidGoal)
	}
	return nil
}

func validateFact(fact *model.KnowledgeFact) error {
	if fact == nil {
		return fmt.Errorf("%w: fact", ErrNilParameter)
	}
	if fact.ID == "" || fact.Domain == "" {
		return fmt.Errorf("%w: missing ID or domain", ErrInvalidFact)
	}
	if fact.QuestionHash == "" {
		return fmt.Errorf("%w: missing question hash", ErrInvalidFact)
	}
	if fact.ValidUntil.IsZero() {
		return fmt.Errorf("%w: missing validity", ErrInvalidFact)
	}
	return nil
}
