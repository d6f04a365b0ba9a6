package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/casa/internal/assistant"
	"github.com/Veraticus/casa/internal/config"
	"github.com/Veraticus/casa/internal/knowledge"
	"github.com/Veraticus/casa/internal/remote"
	"github.com/Veraticus/casa/internal/storage"
)

// openStorage opens the configured database and brings the schema up to date.
func openStorage(ctx context.Context, cfg config.Config) (*storage.SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// newSessionManager wires the assistant over store. The remote functions are
// optional: without them the assistant answers from the FAQ and local
// handlers only.
func newSessionManager(cfg config.Config, store *storage.SQLiteStorage) (*assistant.SessionManager, func(), error) {
	validator := knowledge.DefaultValidator()
	opts := assistant.Options{
		Store:        store,
		Cache:        knowledge.NewCache(store, store, validator, knowledge.WithTTL(cfg.Knowledge.TTL)),
		Validator:    validator,
		Matcher:      knowledge.NewMatcher(knowledge.DefaultCorpus()),
		Picker:       assistant.NewRandomPicker(uint64(time.Now().UnixNano())),
		Domain:       cfg.Assistant.Domain,
		HistoryTurns: cfg.Assistant.HistoryTurns,
	}

	cleanup := func() {}
	if cfg.RequireRemote() == nil {
		client, err := remote.New(remote.Config{
			BaseURL:           cfg.Remote.BaseURL,
			APIKey:            cfg.Remote.APIKey,
			Bucket:            cfg.Remote.Bucket,
			RequestsPerMinute: cfg.Remote.RequestsPerMinute,
			Timeout:           cfg.Remote.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		opts.Answers = client
		opts.Defense = client
		opts.Files = client
		cleanup = client.Close
	} else {
		slog.Warn("Remote functions not configured; answering from the local FAQ only")
	}

	manager, err := assistant.NewManager(opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return manager, cleanup, nil
}
