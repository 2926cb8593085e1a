package commands

import (
	"context"
	"forummigrate/internal/components/chrono"
	"forummigrate/internal/db"
	"forummigrate/internal/forum"
	"forummigrate/internal/publisher"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenStoresDryRunLeavesDbUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mapping.db")
	clock := chrono.Fixed{Time: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

	database, err := db.Open(path)
	require.NoError(t, err)
	live := publisher.NewSqliteStore(database, clock)
	require.NoError(t, live.StartRun(ctx, publisher.RunInfo{ID: "run-1"}))
	require.NoError(t, live.Save(ctx, publisher.Mapping{Kind: forum.KIND_POST, SourceKey: "k-calibration", DestinationID: 103, RunID: "run-1"}))
	require.NoError(t, database.Close())

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	cfg := ImportConfig{}.withDefaults()
	cfg.Import.DryRun = true
	cfg.Import.MappingDb = path
	store, closeStore, err := openStores(cfg, clock)
	require.NoError(t, err)

	id, found, err := store.Lookup(ctx, forum.KIND_POST, "k-calibration")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(103), id)

	require.NoError(t, store.StartRun(ctx, publisher.RunInfo{ID: "run-2", DryRun: true}))
	require.NoError(t, store.Save(ctx, publisher.Mapping{Kind: forum.KIND_POST, SourceKey: "k-manual", DestinationID: 1, RunID: "run-2"}))
	closeStore()

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestOpenStoresDryRunWithoutDb(t *testing.T) {
	cfg := ImportConfig{}.withDefaults()
	cfg.Import.DryRun = true
	cfg.Import.MappingDb = filepath.Join(t.TempDir(), "missing.db")

	store, closeStore, err := openStores(cfg, chrono.Fixed{})
	require.NoError(t, err)
	defer closeStore()
	require.IsType(t, &publisher.MemoryStore{}, store)

	_, err = os.Stat(cfg.Import.MappingDb)
	require.ErrorIs(t, err, os.ErrNotExist)
}
