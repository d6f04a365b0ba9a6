package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func testTask(id, title string) *model.Task {
	due := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	return &model.Task{
		ID:          id,
		HouseholdID: "house-1",
		Title:       title,
		Category:    model.CategoryUtilities,
		Amount:      decimal.RequireFromString("189.90"),
		DueDate:     &due,
	}
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	if !errors.Is(err, ErrEmptyString) {
		t.Fatalf("expected ErrEmptyString, got %v", err)
	}
}

func TestSQLiteStorage_Migrations(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	ctx := context.Background()

	store1, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store1.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	version, err := store1.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("Failed to read version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
	if err := store1.CreateTask(ctx, testTask("t1", "Conta de luz")); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	_ = store1.Close()

	// Reopening and migrating again is a no-op that keeps data.
	store2, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer func() { _ = store2.Close() }()
	if err := store2.Migrate(ctx); err != nil {
		t.Fatalf("Failed to re-migrate: %v", err)
	}
	if _, err := store2.GetTask(ctx, "t1"); err != nil {
		t.Errorf("task lost after re-migration: %v", err)
	}
}

func TestSQLiteStorage_MemoryDatabase(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.CreateTask(ctx, testTask("t1", "IPVA")))

	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "IPVA", got.Title)
}

func TestSQLiteStorage_TaskLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	task := testTask("t1", "Conta de luz")
	require.NoError(t, store.CreateTask(ctx, task))

	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, got.Status)
	assert.Equal(t, model.HealthOK, got.HealthStatus)
	assert.True(t, decimal.RequireFromString("189.90").Equal(got.Amount))
	require.NotNil(t, got.DueDate)
	assert.True(t, task.DueDate.Equal(*got.DueDate))
	assert.Nil(t, got.CompletedAt)

	err = store.CreateTask(ctx, testTask("t1", "dup"))
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	title := "Conta de luz (março)"
	risk := model.HealthRisk
	updated, err := store.UpdateTask(ctx, "t1", model.TaskUpdate{Title: &title, HealthStatus: &risk})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, model.HealthRisk, updated.HealthStatus)

	at := time.Date(2026, time.March, 9, 14, 0, 0, 0, time.UTC)
	completed, err := store.CompleteTask(ctx, "t1", at)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, completed.Status)

	got, err = store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.IsOpen())
	require.NotNil(t, got.CompletedAt)
	assert.True(t, at.Equal(*got.CompletedAt))

	require.NoError(t, store.DeleteTask(ctx, "t1"))
	_, err = store.GetTask(ctx, "t1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeleteTask(ctx, "t1"), common.ErrNotFound)
}

func TestSQLiteStorage_UpdateMissingTask(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	title := "x"
	_, err := store.UpdateTask(context.Background(), "missing", model.TaskUpdate{Title: &title})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = store.CompleteTask(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_ListTasks(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	later := testTask("t-late", "Seguro do carro")
	*later.DueDate = later.DueDate.AddDate(0, 1, 0)
	later.Category = model.CategoryVehicle
	undated := testTask("t-none", "Renovar passaporte")
	undated.DueDate = nil
	other := testTask("t-other", "Outra casa")
	other.HouseholdID = "house-2"

	for _, task := range []*model.Task{later, undated, testTask("t-early", "Conta de água"), other} {
		require.NoError(t, store.CreateTask(ctx, task))
	}
	_, err := store.CompleteTask(ctx, "t-early", time.Now())
	require.NoError(t, err)

	all, err := store.ListTasks(ctx, "house-1", service.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"t-early", "t-late", "t-none"}, []string{all[0].ID, all[1].ID, all[2].ID})

	pending := model.TaskPending
	open, err := store.ListTasks(ctx, "house-1", service.TaskFilter{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	vehicle := model.CategoryVehicle
	cars, err := store.ListTasks(ctx, "house-1", service.TaskFilter{Category: &vehicle})
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "t-late", cars[0].ID)

	limited, err := store.ListTasks(ctx, "house-1", service.TaskFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStorage_TaskValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		task *model.Task
		name string
	}{
		{name: "nil", task: nil},
		{name: "no id", task: &model.Task{HouseholdID: "h", Title: "x", Category: model.CategoryOther}},
		{name: "no title", task: &model.Task{ID: "a", HouseholdID: "h", Category: model.CategoryOther}},
		{name: "no category", task: &model.Task{ID: "a", HouseholdID: "h", Title: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.CreateTask(ctx, tt.task); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	//nolint:staticcheck // nil context is what is being tested
	if _, err := store.GetTask(nil, "t1"); !errors.Is(err, ErrNilContext) {
		t.Errorf("expected ErrNilContext, got %v", err)
	}
}

func TestSQLiteStorage_Deductions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	mk := func(id string, date time.Time) *model.Deduction {
		return &model.Deduction{
			ID:           id,
			HouseholdID:  "house-1",
			Date:         date,
			Amount:       decimal.NewFromInt(350),
			Description:  "Consulta",
			Category:     model.DeductionHealth,
			ProviderName: "Clínica Boa Saúde",
		}
	}
	require.NoError(t, store.CreateDeduction(ctx, mk("d1", time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC))))
	require.NoError(t, store.CreateDeduction(ctx, mk("d2", time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, store.CreateDeduction(ctx, mk("d3", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))))

	got, err := store.ListDeductions(ctx, "house-1", 2026)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d3", got[0].ID)
	assert.Equal(t, "d2", got[1].ID)
	assert.Equal(t, "Clínica Boa Saúde", got[0].ProviderName)

	bad := mk("d4", time.Now())
	bad.Amount = decimal.Zero
	assert.ErrorIs(t, store.CreateDeduction(ctx, bad), ErrInvalidDeduction)
}

func TestSQLiteStorage_IncomesAndGoals(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.CreateIncome(ctx, &model.Income{
		ID: "i1", HouseholdID: "house-1", Description: "Salário",
		Amount: decimal.NewFromInt(8000), Frequency: model.IncomeMonthly,
		ReceivedAt: time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.CreateIncome(ctx, &model.Income{
		ID: "i2", HouseholdID: "house-1", Description: "Freela",
		Amount: decimal.NewFromInt(1500), Frequency: model.IncomeOnce,
		ReceivedAt: time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC),
	}))
	assert.ErrorIs(t, store.CreateIncome(ctx, &model.Income{ID: "i3", HouseholdID: "house-1", Frequency: "weekly"}), ErrInvalidIncome)

	incomes, err := store.ListIncomes(ctx, "house-1")
	require.NoError(t, err)
	require.Len(t, incomes, 2)
	assert.Equal(t, "i2", incomes[0].ID)

	deadline := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateSavingsGoal(ctx, &model.SavingsGoal{
		ID: "g1", HouseholdID: "house-1", Name: "Viagem",
		TargetAmount: decimal.NewFromInt(10000), CurrentAmount: decimal.NewFromInt(2500),
		Deadline: &deadline,
	}))
	require.NoError(t, store.CreateSavingsGoal(ctx, &model.SavingsGoal{
		ID: "g2", HouseholdID: "house-1", Name: "Reserva",
		TargetAmount: decimal.NewFromInt(30000),
	}))

	goals, err := store.ListSavingsGoals(ctx, "house-1")
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "Reserva", goals[0].Name)
	assert.Nil(t, goals[0].Deadline)
	require.NotNil(t, goals[1].Deadline)
	assert.True(t, deadline.Equal(*goals[1].Deadline))
	assert.True(t, decimal.NewFromInt(25).Equal(goals[1].Progress()))
}
