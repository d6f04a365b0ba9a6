package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeductionCategory is the income-tax bucket a deductible expense belongs to.
type DeductionCategory string

const (
	DeductionHealth    DeductionCategory = "health"
	DeductionEducation DeductionCategory = "education"
	DeductionPension   DeductionCategory = "pension"
	DeductionDependent DeductionCategory = "dependent"
	DeductionOther     DeductionCategory = "other"
)

// Deduction is a tax-deductible expense kept for the yearly declaration.
type Deduction struct {
	Date             time.Time
	CreatedAt        time.Time
	Amount           decimal.Decimal
	ID               string
	HouseholdID      string
	Description      string
	Category         DeductionCategory
	ProviderName     string
	ProviderDocument string
}

// IncomeFrequency describes how often an income is received.
type IncomeFrequency string

const (
	IncomeMonthly IncomeFrequency = "monthly"
	IncomeOnce    IncomeFrequency = "once"
)

// Income is a source of household money.
type Income struct {
	ReceivedAt  time.Time
	Amount      decimal.Decimal
	ID          string
	HouseholdID string
	Description string
	Frequency   IncomeFrequency
}

// SavingsGoal is a target amount the household is saving toward.
type SavingsGoal struct {
	Deadline      *time.Time
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	ID            string
	HouseholdID   string
	Name          string
}

// Progress returns the completed fraction of the goal as a percentage capped at 100.
func (g SavingsGoal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	pct := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return pct
}
