package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEvent is a stored domain event.
type AuditEvent struct {
	CreatedAt time.Time
	Metadata  map[string]any
	Name      string
	ID        int64
}

// LogEvent records a domain event with its metadata.
func (s *SQLiteStorage) LogEvent(ctx context.Context, name string, metadata map[string]any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(name, "name"); err != nil {
		return err
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	encoded, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode event metadata: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (name, metadata, created_at) VALUES (?, ?, ?)`,
		name, string(encoded), s.now().UTC()); err != nil {
		return fmt.Errorf("failed to log event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events named name, newest first.
// An empty name lists every event.
func (s *SQLiteStorage) ListEvents(ctx context.Context, name string, limit int) ([]AuditEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, metadata, created_at
		FROM audit_events
		WHERE ? = '' OR name = ?
		ORDER BY id DESC
		LIMIT ?
	`, name, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []AuditEvent
	for rows.Next() {
		var event AuditEvent
		var metadata string
		if err := rows.Scan(&event.ID, &event.Name, &metadata, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &event.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode event metadata: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
