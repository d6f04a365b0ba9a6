package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/casa/internal/model"
)

var validationNow = time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)

func TestValidateContext(t *testing.T) {
	assert.NoError(t, validateContext(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, validateContext(ctx), "a cancelled context is still a context")

	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, validateContext(nil), ErrNilContext)
}

func TestValidateString(t *testing.T) {
	assert.NoError(t, validateString("casa.db", "path"))
	assert.ErrorIs(t, validateString("", "path"), ErrEmptyString)
	assert.ErrorIs(t, validateString(" \t\n", "path"), ErrEmptyString)

	err := validateString("", "householdID")
	assert.Contains(t, err.Error(), "householdID")
}

func TestValidateTask(t *testing.T) {
	valid := func() *model.Task { return testTask("t1", "Conta de luz") }

	tests := []struct {
		mutate  func(*model.Task)
		wantErr error
		name    string
	}{
		{name: "valid", mutate: func(*model.Task) {}},
		{name: "missing id", mutate: func(task *model.Task) { task.ID = "" }, wantErr: ErrInvalidTask},
		{name: "missing household", mutate: func(task *model.Task) { task.HouseholdID = "" }, wantErr: ErrInvalidTask},
		{name: "blank title", mutate: func(task *model.Task) { task.Title = "   " }, wantErr: ErrInvalidTask},
		{name: "missing category", mutate: func(task *model.Task) { task.Category = "" }, wantErr: ErrInvalidTask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid()
			tt.mutate(task)
			err := validateTask(task)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.ErrorIs(t, validateTask(nil), ErrNilParameter)
}

func TestValidateDeduction(t *testing.T) {
	valid := func() *model.Deduction {
		return &model.Deduction{
			ID:          "d1",
			HouseholdID: "house-1",
			Date:        validationNow,
			Amount:      decimal.RequireFromString("350"),
			Category:    model.DeductionHealth,
		}
	}

	assert.NoError(t, validateDeduction(valid()))
	assert.ErrorIs(t, validateDeduction(nil), ErrNilParameter)

	for name, mutate := range map[string]func(*model.Deduction){
		"missing household": func(d *model.Deduction) { d.HouseholdID = "" },
		"zero date":         func(d *model.Deduction) { d.Date = time.Time{} },
		"zero amount":       func(d *model.Deduction) { d.Amount = decimal.Zero },
		"negative amount":   func(d *model.Deduction) { d.Amount = decimal.NewFromInt(-10) },
		"missing category":  func(d *model.Deduction) { d.Category = "" },
	} {
		d := valid()
		mutate(d)
		assert.ErrorIs(t, validateDeduction(d), ErrInvalidDeduction, name)
	}
}

func TestValidateCard(t *testing.T) {
	valid := func() *model.CreditCard {
		return &model.CreditCard{ID: "c1", HouseholdID: "house-1", Name: "Nubank", ClosingDay: 3, DueDay: 10}
	}

	assert.NoError(t, validateCard(valid()))
	assert.ErrorIs(t, validateCard(nil), ErrNilParameter)

	for name, mutate := range map[string]func(*model.CreditCard){
		"missing id":       func(c *model.CreditCard) { c.ID = "" },
		"blank name":       func(c *model.CreditCard) { c.Name = " " },
		"closing day zero": func(c *model.CreditCard) { c.ClosingDay = 0 },
		"due day past 31":  func(c *model.CreditCard) { c.DueDay = 32 },
	} {
		c := valid()
		mutate(c)
		assert.ErrorIs(t, validateCard(c), ErrInvalidCard, name)
	}
}

func TestValidateCardTransaction(t *testing.T) {
	valid := func() *model.CreditCardTransaction {
		return &model.CreditCardTransaction{
			ID:                 "tx1",
			CardID:             "c1",
			PurchaseDate:       validationNow,
			Amount:             decimal.NewFromInt(400),
			Hash:               "abc",
			InstallmentCurrent: 1,
			InstallmentTotal:   3,
		}
	}

	assert.NoError(t, validateCardTransaction(valid()))

	single := valid()
	single.InstallmentCurrent, single.InstallmentTotal = 0, 0
	assert.NoError(t, validateCardTransaction(single), "one-off charges carry no installment")

	assert.ErrorIs(t, validateCardTransaction(nil), ErrNilParameter)

	for name, mutate := range map[string]func(*model.CreditCardTransaction){
		"missing card":          func(tx *model.CreditCardTransaction) { tx.CardID = "" },
		"zero purchase date":    func(tx *model.CreditCardTransaction) { tx.PurchaseDate = time.Time{} },
		"missing hash":          func(tx *model.CreditCardTransaction) { tx.Hash = "" },
		"negative installment":  func(tx *model.CreditCardTransaction) { tx.InstallmentCurrent = -1 },
		"installment past plan": func(tx *model.CreditCardTransaction) { tx.InstallmentCurrent = 4 },
	} {
		tx := valid()
		mutate(tx)
		assert.ErrorIs(t, validateCardTransaction(tx), ErrInvalidCardTransaction, name)
	}
}

func TestValidateIncomeAndGoal(t *testing.T) {
	income := &model.Income{ID: "i1", HouseholdID: "house-1", Frequency: model.IncomeMonthly}
	assert.NoError(t, validateIncome(income))
	income.Frequency = "weekly"
	assert.ErrorIs(t, validateIncome(income), ErrInvalidIncome)
	assert.ErrorIs(t, validateIncome(nil), ErrNilParameter)

	goal := &model.SavingsGoal{ID: "g1", HouseholdID: "house-1", Name: "Reserva de emergência"}
	assert.NoError(t, validateGoal(goal))
	goal.Name = ""
	assert.ErrorIs(t, validateGoal(goal), ErrInvalidGoal)
	assert.ErrorIs(t, validateGoal(nil), ErrNilParameter)
}

func TestValidateFact(t *testing.T) {
	fact := testFact("f1", "hash-1", "", validationNow.AddDate(0, 0, 30))
	assert.NoError(t, validateFact(fact))

	fact.ValidUntil = time.Time{}
	assert.ErrorIs(t, validateFact(fact), ErrInvalidFact)

	fact = testFact("f1", "", "", validationNow)
	assert.ErrorIs(t, validateFact(fact), ErrInvalidFact)

	assert.ErrorIs(t, validateFact(nil), ErrNilParameter)
}
