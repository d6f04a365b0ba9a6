package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/casa/internal/common"
	"github.com/Veraticus/casa/internal/model"
)

// FindFact returns the newest fact of domain whose fact key or question hash
// equals key and whose validity extends past now.
func (s *SQLiteStorage) FindFact(ctx context.Context, domain, key string, now time.Time) (*model.KnowledgeFact, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(domain, "domain"); err != nil {
		return nil, err
	}
	if err := validateString(key, "key"); err != nil {
		return nil, err
	}

	var (
		fact       model.KnowledgeFact
		answerJSON string
		sources    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, domain, question_text, question_hash, fact_key, answer_text, answer_json,
			sources, confidence_level, model, valid_until, created_at
		FROM knowledge_facts
		WHERE domain = ? AND (fact_key = ? OR (fact_key = '' AND question_hash = ?)) AND valid_until > ?
		ORDER BY created_at DESC
		LIMIT 1
	`, domain, key, key, now.UTC()).Scan(
		&fact.ID,
		&fact.Domain,
		&fact.QuestionText,
		&fact.QuestionHash,
		&fact.FactKey,
		&fact.AnswerText,
		&answerJSON,
		&sources,
		&fact.ConfidenceLevel,
		&fact.Model,
		&fact.ValidUntil,
		&fact.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find knowledge fact: %w", err)
	}

	if err := json.Unmarshal([]byte(answerJSON), &fact.AnswerJSON); err != nil {
		return nil, fmt.Errorf("failed to decode answer json: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &fact.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	return &fact, nil
}

// SaveFact stores a validated fact.
func (s *SQLiteStorage) SaveFact(ctx context.Context, fact *model.KnowledgeFact) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFact(fact); err != nil {
		return err
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = s.now()
	}

	answerJSON, err := json.Marshal(fact.AnswerJSON)
	if err != nil {
		return fmt.Errorf("failed to encode answer json: %w", err)
	}
	sources, err := json.Marshal(fact.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_facts (id, domain, question_text, question_hash, fact_key,
			answer_text, answer_json, sources, confidence_level, model, valid_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		fact.ID,
		fact.Domain,
		fact.QuestionText,
		fact.QuestionHash,
		fact.FactKey,
		fact.AnswerText,
		string(answerJSON),
		string(sources),
		fact.ConfidenceLevel,
		fact.Model,
		fact.ValidUntil.UTC(),
		fact.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save knowledge fact: %w", err)
	}
	return nil
}

// PurgeExpiredFacts deletes facts whose validity ended at or before now.
func (s *SQLiteStorage) PurgeExpiredFacts(ctx context.Context, now time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_facts WHERE valid_until <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge knowledge facts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check purge result: %w", err)
	}
	return n, nil
}
