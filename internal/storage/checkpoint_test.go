package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/casa/internal/service"
)

// steppingClock advances one minute on every call.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func TestCheckpointManager_CreateAndList(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	store.now = steppingClock(time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC))

	require.NoError(t, store.CreateTask(ctx, testTask("t1", "Conta de luz")))
	createTestCard(t, store)

	cm, err := store.Checkpoints()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(store.Path()), "checkpoints"), cm.Dir())

	info, err := cm.Create(ctx, "antes-da-mudanca", "antes de mudar de banco")
	require.NoError(t, err)
	assert.Equal(t, "antes-da-mudanca", info.ID)
	assert.Equal(t, 1, info.Tasks)
	assert.Equal(t, 1, info.Cards)
	assert.Equal(t, 0, info.Facts)
	assert.Positive(t, info.FileSize)
	assert.False(t, info.IsAuto)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, version, info.SchemaVersion)

	_, err = cm.Create(ctx, "antes-da-mudanca", "")
	assert.ErrorIs(t, err, ErrCheckpointExists)

	generated, err := cm.Create(ctx, "", "")
	require.NoError(t, err)
	assert.Contains(t, generated.ID, "checkpoint-2026-10-01")

	list, err := cm.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, generated.ID, list[0].ID, "newest first")

	got, err := cm.Get(ctx, "antes-da-mudanca")
	require.NoError(t, err)
	assert.Equal(t, "antes de mudar de banco", got.Description)

	_, err = cm.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestCheckpointManager_InvalidIDs(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.Checkpoints()
	require.NoError(t, err)

	for _, id := range []string{"../escape", "a/b", `a\b`, "it's"} {
		_, err := cm.Create(ctx, id, "")
		assert.ErrorIs(t, err, ErrInvalidCheckpointID, id)
		assert.ErrorIs(t, cm.Delete(ctx, id), ErrInvalidCheckpointID, id)
		assert.ErrorIs(t, cm.Restore(ctx, id), ErrInvalidCheckpointID, id)
	}
}

func TestCheckpointManager_MemoryDatabase(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Checkpoints()
	assert.Error(t, err)
}

func TestCheckpointManager_Delete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.Checkpoints()
	require.NoError(t, err)

	_, err = cm.Create(ctx, "semanal", "")
	require.NoError(t, err)
	require.NoError(t, cm.Delete(ctx, "semanal"))

	_, err = os.Stat(filepath.Join(cm.Dir(), "semanal.db"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cm.Dir(), "semanal.meta.json"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, cm.Delete(ctx, "semanal"), ErrCheckpointNotFound)
}

func TestCheckpointManager_AutoCheckpointPrunes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	store.now = steppingClock(time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC))

	cm, err := store.Checkpoints()
	require.NoError(t, err)

	_, err = cm.Create(ctx, "manual", "")
	require.NoError(t, err)

	for range maxAutoCheckpoints + 2 {
		info, err := cm.AutoCheckpoint(ctx, "import")
		require.NoError(t, err)
		assert.True(t, info.IsAuto)
		assert.Equal(t, "antes de import", info.Description)
	}

	list, err := cm.List(ctx)
	require.NoError(t, err)

	auto := 0
	manual := 0
	for _, cp := range list {
		if cp.IsAuto {
			auto++
		} else {
			manual++
		}
	}
	assert.Equal(t, maxAutoCheckpoints, auto)
	assert.Equal(t, 1, manual, "manual checkpoints are never pruned")
}

func TestCheckpointManager_Restore(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "casa.db"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	require.NoError(t, store.CreateTask(ctx, testTask("t1", "Conta de luz")))

	cm, err := store.Checkpoints()
	require.NoError(t, err)
	_, err = cm.Create(ctx, "uma-tarefa", "")
	require.NoError(t, err)

	require.NoError(t, store.CreateTask(ctx, testTask("t2", "Conta de água")))

	require.NoError(t, cm.Restore(ctx, "uma-tarefa"))

	reopened, err := NewSQLiteStorage(store.Path())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	tasks, err := reopened.ListTasks(ctx, "house-1", service.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)

	assert.ErrorIs(t, cm.Restore(ctx, "nope"), ErrCheckpointNotFound)
}

func TestCheckpointManager_RestoreRejectsCorruptSnapshot(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	cm, err := store.Checkpoints()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(cm.Dir(), "quebrado.db"), []byte("not a database at all, just some bytes"), 0600))

	assert.ErrorIs(t, cm.Restore(ctx, "quebrado"), ErrCheckpointCorrupted)
}
