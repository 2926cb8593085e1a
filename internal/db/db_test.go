package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMappingQueries(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "mapping.db"))
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	qry := New(database)

	require.NoError(t, qry.CreateImportRun(ctx, CreateImportRunParams{
		ID:           "run-1",
		StartedAt:    100,
		SnapshotPath: "forum_structure.json",
		DiscourseUrl: "https://discourse.test",
	}))

	_, err = qry.GetMapping(ctx, GetMappingParams{Kind: "category", SourceKey: "abc"})
	require.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, qry.SaveMapping(ctx, SaveMappingParams{
		Kind: "category", SourceKey: "abc", DestinationID: 5, RunID: "run-1", CreatedAt: 101,
	}))
	require.NoError(t, qry.SaveMapping(ctx, SaveMappingParams{
		Kind: "category", SourceKey: "abc", DestinationID: 7, RunID: "run-1", CreatedAt: 102,
	}))
	require.NoError(t, qry.SaveMapping(ctx, SaveMappingParams{
		Kind: "topic", SourceKey: "abc", DestinationID: 9, RunID: "run-1", CreatedAt: 103,
	}))

	id, err := qry.GetMapping(ctx, GetMappingParams{Kind: "category", SourceKey: "abc"})
	require.NoError(t, err)
	require.Equal(t, int64(7), id)

	counts, err := qry.CountMappingsByKind(ctx)
	require.NoError(t, err)
	require.Equal(t, []CountMappingsByKindRow{{Kind: "category", Count: 1}, {Kind: "topic", Count: 1}}, counts)

	require.NoError(t, qry.CreateImportFailure(ctx, CreateImportFailureParams{
		RunID: "run-1", Kind: "post", EntityID: "c1.s1.p1", Reason: "http 500",
	}))
	failures, err := qry.ListImportFailures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)

	require.NoError(t, qry.FinishImportRun(ctx, FinishImportRunParams{FinishedAt: 200, ID: "run-1"}))
	runs, err := qry.ListImportRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, int64(200), runs[0].FinishedAt.Int64)
	require.False(t, runs[0].DryRun)
}

func TestMakeTxDiscard(t *testing.T) {
	database, err := Open(":memory:")
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	makeTx := NewMakeTx(database)

	tx, discard, _, err := makeTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateImportRun(ctx, CreateImportRunParams{ID: "run-1", StartedAt: 1}))
	require.NoError(t, discard())

	runs, err := New(database).ListImportRuns(ctx)
	require.NoError(t, err)
	require.Empty(t, runs)

	tx, discard, commit, err := makeTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateImportRun(ctx, CreateImportRunParams{ID: "run-2", StartedAt: 2}))
	require.NoError(t, commit())
	require.NoError(t, discard(), "discard after commit")

	runs, err = New(database).ListImportRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.db")
	ctx := context.Background()

	_, err := OpenReadOnly(path)
	require.Error(t, err, "a read only open never creates the file")

	database, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, New(database).CreateImportRun(ctx, CreateImportRunParams{ID: "run-1", StartedAt: 100}))
	require.NoError(t, New(database).SaveMapping(ctx, SaveMappingParams{
		Kind: "post", SourceKey: "abc", DestinationID: 5, RunID: "run-1", CreatedAt: 101,
	}))
	require.NoError(t, database.Close())

	readOnly, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer readOnly.Close()
	qry := New(readOnly)

	id, err := qry.GetMapping(ctx, GetMappingParams{Kind: "post", SourceKey: "abc"})
	require.NoError(t, err)
	require.Equal(t, int64(5), id)

	err = qry.SaveMapping(ctx, SaveMappingParams{Kind: "post", SourceKey: "def", DestinationID: 6, RunID: "run-1", CreatedAt: 102})
	require.Error(t, err)
}
