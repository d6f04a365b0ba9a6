// Package testutil provides test utilities for the casa project.
// It offers isolated, migrated databases with household fixtures.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/casa/internal/storage"
	"github.com/Veraticus/casa/internal/testutil/household"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage   *storage.SQLiteStorage
	Household household.Household
	t         *testing.T
}

// SetupTestDB creates a migrated database under t.TempDir() and registers cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	defer db.Storage.Close() // optional, cleanup already registered
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithHousehold creates a test database seeded by builder.
//
// Example:
//
//	db := testutil.SetupTestDBWithHousehold(t, func(b *household.Builder) *household.Builder {
//		return b.WithTask(household.Task("Conta de luz"))
//	})
func SetupTestDBWithHousehold(t *testing.T, configure func(*household.Builder) *household.Builder) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Household: configure})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Household      func(*household.Builder) *household.Builder
	HouseholdID    string
	InMemory       bool
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	path := ":memory:"
	if !opts.InMemory {
		path = filepath.Join(t.TempDir(), "casa.db")
	}

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	db := &TestDB{Storage: store, t: t}

	if opts.Household != nil {
		builder := opts.Household(household.NewBuilder(t, opts.HouseholdID))
		db.Household = builder.Build(ctx, store)
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}
