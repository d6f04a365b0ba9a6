package household_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
	"github.com/Veraticus/casa/internal/testutil"
	"github.com/Veraticus/casa/internal/testutil/household"
)

func TestBuilder_SeedsEveryRecord(t *testing.T) {
	now := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

	db := testutil.SetupTestDBWithHousehold(t, func(b *household.Builder) *household.Builder {
		return b.
			WithTask(household.Task("Conta de luz").Category(model.CategoryUtilities).DueIn(now, 3)).
			WithTask(household.Task("IPVA").Category(model.CategoryVehicle).Health(model.HealthRisk)).
			WithCard(household.Card("Nubank", 5000).
				Purchase("Mercado", "300.00", now).
				Installment("Geladeira", "1200.00", now, 1, 12)).
			WithMonthlyIncome("Salário", 8000).
			WithGoal("Viagem", 2000, 10000)
	})
	ctx := context.Background()
	h := db.Household

	assert.Equal(t, household.DefaultID, h.ID)
	require.Len(t, h.Tasks, 2)
	assert.Equal(t, model.CategoryVehicle, h.MustTask(t, "IPVA").Category)

	card := h.MustCard(t, "Nubank")
	assert.Equal(t, "1500", card.CurrentBalance.String())
	require.Len(t, h.Transactions, 2)

	tasks, err := db.Storage.ListTasks(ctx, h.ID, service.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	incomes, err := db.Storage.ListIncomes(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, incomes, 1)
	assert.Equal(t, model.IncomeMonthly, incomes[0].Frequency)

	goals, err := db.Storage.ListSavingsGoals(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "20", goals[0].Progress().String())
}
