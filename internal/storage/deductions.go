package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/casa/internal/model"
)

// CreateDeduction stores a tax-deductible expense.
func (s *SQLiteStorage) CreateDeduction(ctx context.Context, d *model.Deduction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDeduction(d); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deductions (id, household_id, date, amount, description, category,
			provider_name, provider_document, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.HouseholdID,
		d.Date.UTC(),
		d.Amount,
		d.Description,
		d.Category,
		d.ProviderName,
		d.ProviderDocument,
		d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create deduction: %w", err)
	}
	return nil
}

// ListDeductions returns a household's deductions dated within year, oldest first.
func (s *SQLiteStorage) ListDeductions(ctx context.Context, householdID string, year int) ([]model.Deduction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(householdID, "householdID"); err != nil {
		return nil, err
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, household_id, date, amount, description, category,
			provider_name, provider_document, created_at
		FROM deductions
		WHERE household_id = ? AND date >= ? AND date < ?
		ORDER BY date, id
	`, householdID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query deductions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deductions []model.Deduction
	for rows.Next() {
		var d model.Deduction
		if err := rows.Scan(
			&d.ID,
			&d.HouseholdID,
			&d.Date,
			&d.Amount,
			&d.Description,
			&d.Category,
			&d.ProviderName,
			&d.ProviderDocument,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deduction: %w", err)
		}
		deductions = append(deductions, d)
	}
	return deductions, rows.Err()
}
