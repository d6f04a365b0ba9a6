package model

import "time"

// KnowledgeFact is a validated remote answer cached for a domain.
type KnowledgeFact struct {
	ValidUntil      time.Time
	CreatedAt       time.Time
	AnswerJSON      map[string]any
	ID              string
	Domain          string
	QuestionText    string
	QuestionHash    string
	FactKey         string
	AnswerText      string
	ConfidenceLevel string
	Model           string
	Sources         []Source
}

// Key returns the lookup key: the fact key when present, else the question hash.
func (f KnowledgeFact) Key() string {
	if f.FactKey != "" {
		return f.FactKey
	}
	return f.QuestionHash
}

// Valid reports whether the fact may still be served at now.
func (f KnowledgeFact) Valid(now time.Time) bool {
	return f.ValidUntil.After(now)
}

// KnowledgeEvent is an audit row about fact usage.
type KnowledgeEvent struct {
	CreatedAt time.Time
	FactID    string
	Event     string
	Domain    string
}

// FaqItem is an entry of the static local question/answer corpus.
type FaqItem struct {
	Question string
	Answer   string
	Category string
}
