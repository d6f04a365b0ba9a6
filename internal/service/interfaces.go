// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/Veraticus/casa/internal/model"
)

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status   *model.TaskStatus
	Category *model.TaskCategory
	Limit    int
}

// TaskStore persists household tasks.
type TaskStore interface {
	ListTasks(ctx context.Context, householdID string, filter TaskFilter) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTask(ctx context.Context, id string, update model.TaskUpdate) (*model.Task, error)
	CompleteTask(ctx context.Context, id string, at time.Time) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// DeductionStore persists tax-deductible expenses.
type DeductionStore interface {
	CreateDeduction(ctx context.Context, deduction *model.Deduction) error
	ListDeductions(ctx context.Context, householdID string, year int) ([]model.Deduction, error)
}

// CardStore persists credit cards and their posted transactions.
type CardStore interface {
	CreateCard(ctx context.Context, card *model.CreditCard) error
	GetCard(ctx context.Context, id string) (*model.CreditCard, error)
	ListCards(ctx context.Context, householdID string) ([]model.CreditCard, error)
	ListCardTransactions(ctx context.Context, cardID string) ([]model.CreditCardTransaction, error)
	// PostCardTransaction inserts txn and adds its amount to the card balance atomically.
	// It reports false when a transaction with the same hash already exists.
	PostCardTransaction(ctx context.Context, txn *model.CreditCardTransaction) (bool, error)
	UpdateReimbursementStatus(ctx context.Context, txnID string, status model.ReimbursementStatus) error
}

// FinanceStore persists incomes and savings goals.
type FinanceStore interface {
	CreateIncome(ctx context.Context, income *model.Income) error
	ListIncomes(ctx context.Context, householdID string) ([]model.Income, error)
	CreateSavingsGoal(ctx context.Context, goal *model.SavingsGoal) error
	ListSavingsGoals(ctx context.Context, householdID string) ([]model.SavingsGoal, error)
}

// KnowledgeStore persists validated remote answers.
type KnowledgeStore interface {
	// FindFact returns the newest fact for domain and key whose ValidUntil is after now,
	// or common.ErrNotFound.
	FindFact(ctx context.Context, domain, key string, now time.Time) (*model.KnowledgeFact, error)
	SaveFact(ctx context.Context, fact *model.KnowledgeFact) error
	PurgeExpiredFacts(ctx context.Context, now time.Time) (int64, error)
}

// AuditSink records domain events. Callers treat it as best effort.
type AuditSink interface {
	LogEvent(ctx context.Context, name string, metadata map[string]any) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TaskStore
	DeductionStore
	CardStore
	FinanceStore
	KnowledgeStore
	AuditSink

	Migrate(ctx context.Context) error
	Close() error
}

// HistoryTurn is one prior message sent as context to the remote answer function.
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// AnswerRequest is the payload of the remote answer function.
type AnswerRequest struct {
	Question    string        `json:"question"`
	HouseholdID string        `json:"household_id"`
	UserID      string        `json:"user_id"`
	Domain      string        `json:"domain"`
	ImageURL    string        `json:"image_url,omitempty"`
	History     []HistoryTurn `json:"history"`
}

// PendingActionDescriptor is the remote function's proposal for a mutation.
type PendingActionDescriptor struct {
	Type    model.ActionType `json:"type"`
	TaskID  string           `json:"task_id,omitempty"`
	Summary string           `json:"summary,omitempty"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// AnswerResponse is the reply of the remote answer function.
type AnswerResponse struct {
	PendingAction   *PendingActionDescriptor `json:"pending_action,omitempty"`
	KeyFacts        map[string]any           `json:"key_facts,omitempty"`
	AnswerText      string                   `json:"answer_text"`
	IntentMode      string                   `json:"intent_mode,omitempty"`
	ConfidenceLevel string                   `json:"confidence_level,omitempty"`
	Model           string                   `json:"model,omitempty"`
	Sources         []model.Source           `json:"sources,omitempty"`
	IsCached        bool                     `json:"is_cached,omitempty"`
}

// Intent modes reported by the remote answer function.
const (
	IntentModeKnowledge = "knowledge"
	IntentModeAction    = "action"
)

// IsKnowledge reports whether the answer is a factual, citable answer subject
// to validation. Answers proposing an action are never knowledge answers, even
// when they carry key facts read from an upload.
func (r AnswerResponse) IsKnowledge() bool {
	switch {
	case r.IntentMode == IntentModeKnowledge:
		return true
	case r.IntentMode == IntentModeAction, r.PendingAction != nil:
		return false
	default:
		return len(r.Sources) > 0 || len(r.KeyFacts) > 0
	}
}

// AnswerClient calls the remote answer function.
type AnswerClient interface {
	Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error)
}

// DefenseRequest is the payload of the remote defense-generation function.
type DefenseRequest struct {
	FineDetails model.TrafficFinePayload `json:"fine_details"`
	UserAnswers []model.InterviewAnswer  `json:"user_answers"`
}

// DefenseClient calls the remote defense-generation function and returns markdown.
type DefenseClient interface {
	GenerateDefense(ctx context.Context, req DefenseRequest) (string, error)
}

// FileStore uploads a file and returns its public URL.
type FileStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}
