package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS tasks (
					id TEXT PRIMARY KEY,
					household_id TEXT NOT NULL,
					title TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					health_status TEXT NOT NULL DEFAULT 'ok',
					impact_level TEXT NOT NULL DEFAULT 'low',
					amount TEXT NOT NULL DEFAULT '0',
					due_date DATETIME,
					completed_at DATETIME,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_tasks_household ON tasks(household_id, status)`,

				`CREATE TABLE IF NOT EXISTS deductions (
					id TEXT PRIMARY KEY,
					household_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					amount TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL,
					provider_name TEXT NOT NULL DEFAULT '',
					provider_document TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_deductions_household_date ON deductions(household_id, date)`,

				`CREATE TABLE IF NOT EXISTS credit_cards (
					id TEXT PRIMARY KEY,
					household_id TEXT NOT NULL,
					name TEXT NOT NULL,
					owner_id TEXT NOT NULL DEFAULT '',
					credit_limit TEXT NOT NULL DEFAULT '0',
					current_balance TEXT NOT NULL DEFAULT '0',
					closing_day INTEGER NOT NULL DEFAULT 1,
					due_day INTEGER NOT NULL DEFAULT 10,
					is_shared BOOLEAN NOT NULL DEFAULT 0
				)`,

				`CREATE TABLE IF NOT EXISTS credit_card_transactions (
					id TEXT PRIMARY KEY,
					card_id TEXT NOT NULL REFERENCES credit_cards(id) ON DELETE CASCADE,
					hash TEXT UNIQUE NOT NULL,
					purchase_date DATETIME NOT NULL,
					description TEXT NOT NULL,
					amount TEXT NOT NULL,
					installment_current INTEGER NOT NULL DEFAULT 1,
					installment_total INTEGER NOT NULL DEFAULT 1,
					third_party_name TEXT NOT NULL DEFAULT '',
					reimbursement_status TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_card_transactions_card ON credit_card_transactions(card_id, purchase_date)`,

				`CREATE TABLE IF NOT EXISTS incomes (
					id TEXT PRIMARY KEY,
					household_id TEXT NOT NULL,
					description TEXT NOT NULL,
					amount TEXT NOT NULL,
					frequency TEXT NOT NULL,
					received_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS savings_goals (
					id TEXT PRIMARY KEY,
					household_id TEXT NOT NULL,
					name TEXT NOT NULL,
					target_amount TEXT NOT NULL,
					current_amount TEXT NOT NULL DEFAULT '0',
					deadline DATETIME
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add knowledge facts cache",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS knowledge_facts (
					id TEXT PRIMARY KEY,
					domain TEXT NOT NULL,
					question_text TEXT NOT NULL,
					question_hash TEXT NOT NULL,
					fact_key TEXT NOT NULL DEFAULT '',
					answer_text TEXT NOT NULL,
					answer_json TEXT NOT NULL,
					sources TEXT NOT NULL,
					confidence_level TEXT NOT NULL,
					model TEXT NOT NULL DEFAULT '',
					valid_until DATETIME NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_knowledge_facts_hash ON knowledge_facts(domain, question_hash, valid_until)`,
				`CREATE INDEX idx_knowledge_facts_key ON knowledge_facts(domain, fact_key, valid_until)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add audit events",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS audit_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					metadata TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_audit_events_name ON audit_events(name, created_at)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
