package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/casa/internal/model"
)

// CreateIncome stores an income source.
func (s *SQLiteStorage) CreateIncome(ctx context.Context, income *model.Income) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateIncome(income); err != nil {
		return err
	}
	if income.ReceivedAt.IsZero() {
		income.ReceivedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incomes (id, household_id, description, amount, frequency, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, income.ID, income.HouseholdID, income.Description, income.Amount, income.Frequency, income.ReceivedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create income: %w", err)
	}
	return nil
}

// ListIncomes returns a household's incomes, newest first.
func (s *SQLiteStorage) ListIncomes(ctx context.Context, householdID string) ([]model.Income, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(householdID, "householdID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, household_id, description, amount, frequency, received_at
		FROM incomes
		WHERE household_id = ?
		ORDER BY received_at DESC, id
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to query incomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var incomes []model.Income
	for rows.Next() {
		var income model.Income
		if err := rows.Scan(
			&income.ID,
			&income.HouseholdID,
			&income.Description,
			&income.Amount,
			&income.Frequency,
			&income.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan income: %w", err)
		}
		incomes = append(incomes, income)
	}
	return incomes, rows.Err()
}

// CreateSavingsGoal stores a savings goal.
func (s *SQLiteStorage) CreateSavingsGoal(ctx context.Context, goal *model.SavingsGoal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGoal(goal); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO savings_goals (id, household_id, name, target_amount, current_amount, deadline)
		VALUES (?, ?, ?, ?, ?, ?)
	`, goal.ID, goal.HouseholdID, goal.Name, goal.TargetAmount, goal.CurrentAmount, nullTime(goal.Deadline))
	if err != nil {
		return fmt.Errorf("failed to create savings goal: %w", err)
	}
	return nil
}

// ListSavingsGoals returns a household's goals ordered by name.
func (s *SQLiteStorage) ListSavingsGoals(ctx context.Context, householdID string) ([]model.SavingsGoal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(householdID, "householdID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, household_id, name, target_amount, current_amount, deadline
		FROM savings_goals
		WHERE household_id = ?
		ORDER BY name, id
	`, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to query savings goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []model.SavingsGoal
	for rows.Next() {
		var goal model.SavingsGoal
		var deadline sql.NullTime
		if err := rows.Scan(
			&goal.ID,
			&goal.HouseholdID,
			&goal.Name,
			&goal.TargetAmount,
			&goal.CurrentAmount,
			&deadline,
		); err != nil {
			return nil, fmt.Errorf("failed to scan savings goal: %w", err)
		}
		goal.Deadline = timePtr(deadline)
		goals = append(goals, goal)
	}
	return goals, rows.Err()
}
