package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
)

// EventActionExecuted is the audit event recorded after a confirmed action succeeds.
const EventActionExecuted = "action.executed"

// Confirmation errors returned to programmatic callers.
var (
	ErrNoPendingAction  = errors.New("message has no pending action")
	ErrUnknownMessage   = errors.New("unknown message")
	ErrActionInProgress = errors.New("action is already being executed")
	ErrDefenseDisabled  = errors.New("defense generation is not configured")
)

// ExecutionStatus is the terminal state reached by a confirmation attempt.
type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "executed"
	StatusExpired  ExecutionStatus = "expired"
	StatusFailed   ExecutionStatus = "failed"
)

// ExecutionResult reports what a confirmation did. Messages holds what was
// appended to the log. Err carries the handler failure behind StatusFailed.
type ExecutionResult struct {
	Err      error
	Status   ExecutionStatus
	Messages []model.Message
}

// outcome is what a successful handler contributes to the conversation.
type outcome struct {
	interview   *interview
	text        string
	suggestions []string
	mutated     bool
}

// Executor applies confirmed actions to storage.
type Executor struct {
	tasks      service.TaskStore
	deductions service.DeductionStore
	defense    service.DefenseClient
	now        func() time.Time
	newID      func() string
}

// NewExecutor creates an executor. defense may be nil, in which case
// GENERATE_TRAFFIC_DEFENSE actions fail with ErrDefenseDisabled.
func NewExecutor(tasks service.TaskStore, deductions service.DeductionStore, defense service.DefenseClient, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{
		tasks:      tasks,
		deductions: deductions,
		defense:    defense,
		now:        now,
		newID:      uuid.NewString,
	}
}

// Execute runs the single handler that belongs to the action's payload.
func (e *Executor) Execute(ctx context.Context, householdID, originID string, action *model.PendingAction) (outcome, error) {
	switch p := action.Payload.(type) {
	case model.DeductionPayload:
		return e.saveDeduction(ctx, householdID, action, p)
	case model.TrafficFinePayload:
		return e.addTrafficFine(ctx, householdID, action, p)
	case model.CompleteTaskPayload:
		if _, err := e.tasks.CompleteTask(ctx, action.TaskID, e.now()); err != nil {
			return outcome{}, fmt.Errorf("failed to complete task %s: %w", action.TaskID, err)
		}
		return confirmed(action), nil
	case model.AnalyzeDefensePayload:
		iv := newInterview(originID, p.Fine)
		return outcome{
			interview:   iv,
			text:        msgInterviewStart + "\n\n" + iv.question(),
			suggestions: []string{chipYes, chipNo},
		}, nil
	case model.GenerateDefensePayload:
		return e.generateDefense(ctx, p)
	case model.UpdateTaskPayload:
		if action.TaskID == "" || action.TaskID == model.NoTaskID {
			return outcome{}, fmt.Errorf("%w: update needs a task", model.ErrPayloadMismatch)
		}
		if _, err := e.tasks.UpdateTask(ctx, action.TaskID, p.TaskUpdate); err != nil {
			return outcome{}, fmt.Errorf("failed to update task %s: %w", action.TaskID, err)
		}
		return confirmed(action), nil
	default:
		return outcome{}, fmt.Errorf("%w: %T", model.ErrUnknownActionType, action.Payload)
	}
}

func confirmed(action *model.PendingAction) outcome {
	summary := strings.TrimSuffix(strings.TrimSpace(action.Summary), ".")
	if summary == "" {
		summary = actionSummaries[action.Type]
	}
	return outcome{text: "Pronto! " + summary + ".", mutated: true}
}

func (e *Executor) saveDeduction(ctx context.Context, householdID string, action *model.PendingAction, p model.DeductionPayload) (outcome, error) {
	date := p.Date
	if date.IsZero() {
		date = model.StartOfDay(e.now())
	}
	deduction := &model.Deduction{
		ID:               e.newID(),
		HouseholdID:      householdID,
		Date:             date,
		Amount:           p.Amount,
		Description:      p.Description,
		Category:         p.Category,
		ProviderName:     p.ProviderName,
		ProviderDocument: p.ProviderDocument,
		CreatedAt:        e.now(),
	}
	if deduction.Category == "" {
		deduction.Category = model.DeductionOther
	}
	if err := e.deductions.CreateDeduction(ctx, deduction); err != nil {
		return outcome{}, fmt.Errorf("failed to save deduction: %w", err)
	}
	return confirmed(action), nil
}

func (e *Executor) addTrafficFine(ctx context.Context, householdID string, action *model.PendingAction, p model.TrafficFinePayload) (outcome, error) {
	now := e.now()
	due := model.StartOfDay(now)
	if p.DueDate != nil {
		due = *p.DueDate
	}

	title := "Multa de trânsito"
	if p.Plate != "" {
		title += " " + p.Plate
	}
	description := p.Description
	if p.Infraction != "" {
		description = strings.TrimSpace(description + "\n" + p.Infraction)
	}

	task := &model.Task{
		ID:           e.newID(),
		HouseholdID:  householdID,
		Title:        title,
		Description:  description,
		Category:     model.CategoryVehicle,
		Status:       model.TaskPending,
		HealthStatus: model.HealthRisk,
		ImpactLevel:  model.ImpactHigh,
		Amount:       p.Amount,
		DueDate:      &due,
		CreatedAt:    now,
	}
	if err := e.tasks.CreateTask(ctx, task); err != nil {
		return outcome{}, fmt.Errorf("failed to create fine task: %w", err)
	}
	return confirmed(action), nil
}

func (e *Executor) generateDefense(ctx context.Context, p model.GenerateDefensePayload) (outcome, error) {
	if e.defense == nil {
		return outcome{}, ErrDefenseDisabled
	}
	markdown, err := e.defense.GenerateDefense(ctx, service.DefenseRequest{
		FineDetails: p.Fine,
		UserAnswers: p.Answers,
	})
	if err != nil {
		return outcome{}, fmt.Errorf("failed to generate defense: %w", err)
	}
	return outcome{text: markdown}, nil
}
