package model

import "time"

// Sender identifies who produced a message in a conversation.
type Sender string

const (
	// SenderUser marks messages typed or uploaded by the user.
	SenderUser Sender = "user"
	// SenderAssistant marks replies produced by the assistant pipeline.
	SenderAssistant Sender = "assistant"
	// SenderSystem marks protocol notices such as expiry or cancellation.
	SenderSystem Sender = "system"
)

// Confidence levels reported for remote answers.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Source is a citation attached to a remote answer.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Message is one turn in a conversation log.
type Message struct {
	Timestamp       time.Time      `json:"timestamp"`
	PendingAction   *PendingAction `json:"pending_action,omitempty"`
	AnswerJSON      map[string]any `json:"answer_json,omitempty"`
	ID              string         `json:"id"`
	Text            string         `json:"text"`
	Sender          Sender         `json:"sender"`
	ConfidenceLevel string         `json:"confidence_level,omitempty"`
	ImageURL        string         `json:"image_url,omitempty"`
	Suggestions     []string       `json:"suggestions,omitempty"`
	Sources         []Source       `json:"sources,omitempty"`
	IsCached        bool           `json:"is_cached,omitempty"`
}

// Role returns the history role used when the message is sent to the remote answer function.
func (m Message) Role() string {
	if m.Sender == SenderUser {
		return "user"
	}
	return "assistant"
}

// HasPendingAction reports whether the message still carries an unresolved action.
func (m Message) HasPendingAction() bool {
	return m.PendingAction != nil
}
