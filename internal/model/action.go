package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PendingActionTTL is how long a proposed action stays confirmable.
const PendingActionTTL = 5 * time.Minute

// NoTaskID is the target reference used by actions that do not touch an existing task.
const NoTaskID = "none"

// ActionType is the closed set of mutations the assistant may propose.
type ActionType string

const (
	// ActionCompleteTask marks an open task as done.
	ActionCompleteTask ActionType = "COMPLETE_TASK"
	// ActionSaveDeduction records a tax-deductible expense.
	ActionSaveDeduction ActionType = "SAVE_DEDUCTION"
	// ActionAddTrafficFine creates a vehicle task for a traffic citation.
	ActionAddTrafficFine ActionType = "ADD_TRAFFIC_FINE"
	// ActionAnalyzeDefense starts the local defense interview.
	ActionAnalyzeDefense ActionType = "ANALYZE_DEFENSE"
	// ActionGenerateDefense asks the remote generator for a defense document.
	ActionGenerateDefense ActionType = "GENERATE_TRAFFIC_DEFENSE"
	// ActionUpdateTask applies a generic field update to a task.
	ActionUpdateTask ActionType = "UPDATE_TASK"
)

// ErrPayloadMismatch is returned when a payload does not belong to the action type.
var ErrPayloadMismatch = errors.New("payload does not match action type")

// ErrUnknownActionType is returned for action types outside the closed set.
var ErrUnknownActionType = errors.New("unknown action type")

// ActionPayload is implemented only by the payload structs in this package.
type ActionPayload interface {
	ActionType() ActionType
	sealed()
}

// CompleteTaskPayload carries nothing beyond the action's TaskID.
type CompleteTaskPayload struct{}

// DeductionPayload describes a tax-deductible expense to persist.
type DeductionPayload struct {
	Date             time.Time         `json:"date"`
	Amount           decimal.Decimal   `json:"amount"`
	Description      string            `json:"description"`
	Category         DeductionCategory `json:"category"`
	ProviderName     string            `json:"provider_name,omitempty"`
	ProviderDocument string            `json:"provider_document,omitempty"`
}

// TrafficFinePayload describes a traffic citation.
type TrafficFinePayload struct {
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Plate       string          `json:"plate,omitempty"`
	Infraction  string          `json:"infraction,omitempty"`
	NoticeURL   string          `json:"notice_url,omitempty"`
}

// AnalyzeDefensePayload starts an interview about a citation.
type AnalyzeDefensePayload struct {
	Fine TrafficFinePayload `json:"fine"`
}

// InterviewAnswer is one yes/no reply collected by the defense interview.
type InterviewAnswer struct {
	Question string `json:"question"`
	Answer   bool   `json:"answer"`
}

// GenerateDefensePayload carries the citation and the collected interview answers.
type GenerateDefensePayload struct {
	Fine    TrafficFinePayload `json:"fine"`
	Answers []InterviewAnswer  `json:"answers"`
}

// UpdateTaskPayload is a partial update applied to a task.
type UpdateTaskPayload struct {
	TaskUpdate
}

func (CompleteTaskPayload) ActionType() ActionType    { return ActionCompleteTask }
func (DeductionPayload) ActionType() ActionType       { return ActionSaveDeduction }
func (TrafficFinePayload) ActionType() ActionType     { return ActionAddTrafficFine }
func (AnalyzeDefensePayload) ActionType() ActionType  { return ActionAnalyzeDefense }
func (GenerateDefensePayload) ActionType() ActionType { return ActionGenerateDefense }
func (UpdateTaskPayload) ActionType() ActionType      { return ActionUpdateTask }

func (CompleteTaskPayload) sealed()    {}
func (DeductionPayload) sealed()       {}
func (TrafficFinePayload) sealed()     {}
func (AnalyzeDefensePayload) sealed()  {}
func (GenerateDefensePayload) sealed() {}
func (UpdateTaskPayload) sealed()      {}

// PendingAction is a proposed mutation awaiting explicit confirmation.
type PendingAction struct {
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	Payload   ActionPayload `json:"-"`
	ID        string        `json:"id"`
	Type      ActionType    `json:"type"`
	TaskID    string        `json:"task_id"`
	Summary   string        `json:"summary"`
}

// NewPendingAction builds an action that expires PendingActionTTL after now.
func NewPendingAction(id, taskID, summary string, payload ActionPayload, now time.Time) (*PendingAction, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrPayloadMismatch)
	}
	if taskID == "" {
		taskID = NoTaskID
	}
	return &PendingAction{
		ID:        id,
		Type:      payload.ActionType(),
		TaskID:    taskID,
		Payload:   payload,
		Summary:   summary,
		CreatedAt: now,
		ExpiresAt: now.Add(PendingActionTTL),
	}, nil
}

// Expired reports whether the confirmation window has closed at now.
func (a *PendingAction) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// MarshalJSON includes the payload next to the envelope fields.
func (a PendingAction) MarshalJSON() ([]byte, error) {
	type envelope PendingAction
	return json.Marshal(struct {
		envelope
		Payload ActionPayload `json:"payload"`
	}{envelope: envelope(a), Payload: a.Payload})
}

// UnmarshalJSON decodes the payload according to the envelope's type.
func (a *PendingAction) UnmarshalJSON(data []byte) error {
	type envelope PendingAction
	var raw struct {
		envelope
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodePayload(raw.Type, raw.Payload)
	if err != nil {
		return err
	}
	*a = PendingAction(raw.envelope)
	a.Payload = payload
	return nil
}

// DecodePayload builds the payload struct that belongs to actionType.
func DecodePayload(actionType ActionType, raw json.RawMessage) (ActionPayload, error) {
	var payload ActionPayload
	switch actionType {
	case ActionCompleteTask:
		return CompleteTaskPayload{}, nil
	case ActionSaveDeduction:
		var p DeductionPayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		payload = p
	case ActionAddTrafficFine:
		var p TrafficFinePayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		payload = p
	case ActionAnalyzeDefense:
		var p AnalyzeDefensePayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		payload = p
	case ActionGenerateDefense:
		var p GenerateDefensePayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		payload = p
	case ActionUpdateTask:
		var p UpdateTaskPayload
		if err := unmarshalPayload(raw, &p); err != nil {
			return nil, err
		}
		payload = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, actionType)
	}
	return payload, nil
}

func unmarshalPayload(raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode action payload: %w", err)
	}
	return nil
}
