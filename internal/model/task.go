package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskCategory groups household obligations.
type TaskCategory string

const (
	CategoryVehicle   TaskCategory = "vehicle"
	CategoryHousing   TaskCategory = "housing"
	CategoryHealth    TaskCategory = "health"
	CategoryEducation TaskCategory = "education"
	CategoryTax       TaskCategory = "tax"
	CategoryUtilities TaskCategory = "utilities"
	CategoryOther     TaskCategory = "other"
)

// TaskStatus tracks whether a task is still open.
type TaskStatus string

const (
	// TaskPending is an open task.
	TaskPending TaskStatus = "pending"
	// TaskCompleted is a task the household has resolved.
	TaskCompleted TaskStatus = "completed"
)

// HealthStatus is the risk classification of a task.
type HealthStatus string

const (
	HealthOK      HealthStatus = "ok"
	HealthWarning HealthStatus = "warning"
	HealthRisk    HealthStatus = "risk"
)

// ImpactLevel estimates how much a task hurts if ignored.
type ImpactLevel string

const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// Task is a household obligation such as a bill, a fine or a document to renew.
type Task struct {
	CreatedAt    time.Time
	DueDate      *time.Time
	CompletedAt  *time.Time
	Amount       decimal.Decimal
	ID           string
	HouseholdID  string
	Title        string
	Description  string
	Category     TaskCategory
	Status       TaskStatus
	HealthStatus HealthStatus
	ImpactLevel  ImpactLevel
}

// IsOpen reports whether the task still needs attention.
func (t Task) IsOpen() bool {
	return t.Status != TaskCompleted
}

// IsOverdue reports whether the task is open and its due date is before today's midnight.
func (t Task) IsOverdue(now time.Time) bool {
	if !t.IsOpen() || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(StartOfDay(now))
}

// TaskUpdate is a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title        *string          `json:"title,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Status       *TaskStatus      `json:"status,omitempty"`
	HealthStatus *HealthStatus    `json:"health_status,omitempty"`
	ImpactLevel  *ImpactLevel     `json:"impact_level,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil &&
		u.HealthStatus == nil && u.ImpactLevel == nil && u.Amount == nil && u.DueDate == nil
}

// Apply returns a copy of t with the non-nil fields of u applied.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.HealthStatus != nil {
		t.HealthStatus = *u.HealthStatus
	}
	if u.ImpactLevel != nil {
		t.ImpactLevel = *u.ImpactLevel
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.DueDate != nil {
		due := *u.DueDate
		t.DueDate = &due
	}
	return t
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
