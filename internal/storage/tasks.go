package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
)

const taskColumns = `id, household_id, title, description, category, status, health_status,
	impact_level, amount, due_date, completed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var task model.Task
	var dueDate, completedAt sql.NullTime
	err := row.Scan(
		&task.ID,
		&task.HouseholdID,
		&task.Title,
		&task.Description,
		&task.Category,
		&task.Status,
		&task.HealthStatus,
		&task.ImpactLevel,
		&task.Amount,
		&dueDate,
		&completedAt,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.DueDate = timePtr(dueDate)
	task.CompletedAt = timePtr(completedAt)
	return &task, nil
}

// ListTasks returns tasks of a household ordered by due date, undated tasks last.
func (s *SQLiteStorage) ListTasks(ctx context.Context, householdID string, filter service.TaskFilter) ([]model.Task, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(householdID, "householdID"); err != nil {
		return nil, err
	}

	var where []string
	args := []any{householdID}
	where = append(where, "household_id = ?")
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *filter.Category)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY due_date IS NULL, due_date, created_at, id`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// GetTask retrieves a task by ID.
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*model.Task, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTaskTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTaskTx(ctx context.Context, q queryable, id string) (*model.Task, error) {
	task, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// CreateTask inserts a new task. Empty status fields get their defaults.
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *model.Task) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTask(task); err != nil {
		return err
	}

	if task.Status == "" {
		task.Status = model.TaskPending
	}
	if task.HealthStatus == "" {
		task.HealthStatus = model.HealthOK
	}
	if task.ImpactLevel == "" {
		task.ImpactLevel = model.ImpactLow
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.HouseholdID,
		task.Title,
		task.Description,
		task.Category,
		task.Status,
		task.HealthStatus,
		task.ImpactLevel,
		task.Amount,
		nullTime(task.DueDate),
		nullTime(task.CompletedAt),
		task.CreatedAt.UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("task %s: %w", task.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// UpdateTask applies a partial update and returns the stored result.
func (s *SQLiteStorage) UpdateTask(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var updated *model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		next := update.Apply(*current)
		if next.Status == model.TaskCompleted && next.CompletedAt == nil {
			now := s.now()
			next.CompletedAt = &now
		}
		if err := s.writeTaskTx(ctx, tx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CompleteTask marks a task completed at the given time.
func (s *SQLiteStorage) CompleteTask(ctx context.Context, id string, at time.Time) (*model.Task, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var completed *model.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := s.getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		task.Status = model.TaskCompleted
		task.HealthStatus = model.HealthOK
		task.CompletedAt = &at
		if err := s.writeTaskTx(ctx, tx, task); err != nil {
			return err
		}
		completed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *SQLiteStorage) writeTaskTx(ctx context.Context, q queryable, task *model.Task) error {
	_, err := q.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, status = ?, health_status = ?,
			impact_level = ?, amount = ?, due_date = ?, completed_at = ?
		WHERE id = ?
	`,
		task.Title,
		task.Description,
		task.Status,
		task.HealthStatus,
		task.ImpactLevel,
		task.Amount,
		nullTime(task.DueDate),
		nullTime(task.CompletedAt),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// DeleteTask removes a task.
func (s *SQLiteStorage) DeleteTask(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, common.ErrNotFound)
	}
	return nil
}
