package sheets

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/casa/internal/credit"
	"github.com/Veraticus/casa/internal/model"
)

// CardProjection is one card's forward limit series.
type CardProjection struct {
	Card   model.CreditCard
	Points []credit.ProjectionPoint
}

// ProjectionReport is everything written to the spreadsheet in one export.
type ProjectionReport struct {
	GeneratedAt time.Time
	Cards       []CardProjection
}

// TotalLimit sums the limits of every card in the report.
func (r ProjectionReport) TotalLimit() decimal.Decimal {
	total := decimal.Zero
	for _, c := range r.Cards {
		total = total.Add(c.Card.CreditLimit)
	}
	return total
}
