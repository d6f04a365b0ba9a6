package storage

import (
	"context"
	"testing"
)

func TestMigrations_OrderedAndComplete(t *testing.T) {
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration at index %d has version %d", i, m.Version)
		}
		if m.Description == "" {
			t.Errorf("migration %d has no description", m.Version)
		}
	}
	if last := migrations[len(migrations)-1].Version; last != ExpectedSchemaVersion {
		t.Errorf("last migration is %d, ExpectedSchemaVersion is %d", last, ExpectedSchemaVersion)
	}
}

func TestMigrations_CreateTablesAndIndexes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for _, table := range []string{
		"tasks", "deductions", "credit_cards", "credit_card_transactions",
		"incomes", "savings_goals", "knowledge_facts", "audit_events",
	} {
		var count int
		err := store.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s was not created", table)
		}
	}

	var indexCount int
	err := store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name IN ('idx_knowledge_facts_hash', 'idx_knowledge_facts_key')
	`).Scan(&indexCount)
	if err != nil {
		t.Fatalf("Failed to check indexes: %v", err)
	}
	if indexCount != 2 {
		t.Errorf("knowledge fact indexes = %d, want 2", indexCount)
	}
}
