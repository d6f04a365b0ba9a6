// Package credit projects how much of a card's limit is held by outstanding
// single and multi-installment charges.
package credit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/casa/internal/model"
)

// SeriesLength is the number of months BuildSeries projects.
const SeriesLength = 6

var (
	hundred = decimal.NewFromInt(100)

	monthAbbrev = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}
)

// Usage is the occupied share of a card limit for one target month.
type Usage struct {
	Occupied        decimal.Decimal `json:"occupied"`
	Remaining       decimal.Decimal `json:"remaining"`
	UsagePercentage decimal.Decimal `json:"usage_percentage"`
}

// ProjectionPoint is one month of a forward series.
type ProjectionPoint struct {
	Month time.Time `json:"month"`
	Label string    `json:"label"`
	Usage
}

// MonthsDiff returns the number of calendar months from from's month to to's
// month. It is negative when to precedes from.
func MonthsDiff(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// Contribution returns the part of the limit txn occupies in target's month.
//
// Installment plans hold every slice not yet billed by the target month.
// A single charge holds its full amount while the target month is on or
// before its purchase month.
func Contribution(txn model.CreditCardTransaction, target time.Time) decimal.Decimal {
	diff := MonthsDiff(txn.PurchaseDate, target)

	if !txn.IsInstallment() {
		if diff <= 0 {
			return txn.Amount
		}
		return decimal.Zero
	}

	current := txn.InstallmentCurrent
	if current < 1 {
		current = 1
	}
	sinceStart := diff + (current - 1)
	remaining := txn.InstallmentTotal - sinceStart
	if remaining <= 0 {
		return decimal.Zero
	}
	return txn.Amount.Mul(decimal.NewFromInt(int64(remaining))).Div(decimal.NewFromInt(int64(txn.InstallmentTotal)))
}

// OccupiedAmount sums the contributions of txns in target's month.
func OccupiedAmount(txns []model.CreditCardTransaction, target time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range txns {
		total = total.Add(Contribution(txn, target))
	}
	return total
}

// Occupancy computes occupied, remaining and usage percentage of card's limit
// in target's month. A card without a positive limit reports 100% when anything
// is occupied.
func Occupancy(card model.CreditCard, txns []model.CreditCardTransaction, target time.Time) Usage {
	occupied := OccupiedAmount(txns, target)

	if !card.CreditLimit.IsPositive() {
		pct := decimal.Zero
		if occupied.IsPositive() {
			pct = hundred
		}
		return Usage{Occupied: occupied, Remaining: decimal.Zero, UsagePercentage: pct}
	}

	remaining := decimal.Max(decimal.Zero, card.CreditLimit.Sub(occupied))
	pct := decimal.Min(hundred, occupied.Mul(hundred).Div(card.CreditLimit))
	return Usage{Occupied: occupied, Remaining: remaining, UsagePercentage: pct}
}

// BuildSeries projects card over SeriesLength calendar months starting at now's month.
func BuildSeries(card model.CreditCard, txns []model.CreditCardTransaction, now time.Time) []ProjectionPoint {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	points := make([]ProjectionPoint, 0, SeriesLength)
	for i := 0; i < SeriesLength; i++ {
		month := start.AddDate(0, i, 0)
		points = append(points, ProjectionPoint{
			Month: month,
			Label: MonthLabel(month),
			Usage: Occupancy(card, txns, month),
		})
	}
	return points
}

// MonthLabel formats t as a short Brazilian-Portuguese month label, e.g. "out/26".
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s/%02d", monthAbbrev[t.Month()-1], t.Year()%100)
}

// Post returns card with txn's amount added to its balance.
func Post(card model.CreditCard, txn model.CreditCardTransaction) model.CreditCard {
	card.CurrentBalance = card.CurrentBalance.Add(txn.Amount)
	return card
}

// Summary aggregates the current month across cards.
type Summary struct {
	TotalLimit    decimal.Decimal
	TotalOccupied decimal.Decimal
	TotalBalance  decimal.Decimal
	Cards         int
}

// Summarize reports current-month occupancy across cards. txnsByCard is keyed by card ID.
func Summarize(cards []model.CreditCard, txnsByCard map[string][]model.CreditCardTransaction, now time.Time) Summary {
	s := Summary{TotalLimit: decimal.Zero, TotalOccupied: decimal.Zero, TotalBalance: decimal.Zero}
	for _, card := range cards {
		u := Occupancy(card, txnsByCard[card.ID], now)
		s.TotalLimit = s.TotalLimit.Add(card.CreditLimit)
		s.TotalOccupied = s.TotalOccupied.Add(u.Occupied)
		s.TotalBalance = s.TotalBalance.Add(card.CurrentBalance)
		s.Cards++
	}
	return s
}
