package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertProvider_StableID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertProvider(ctx, "hash-a", "memory.Provider", testTime(0))
	require.NoError(t, err)
	id2, err := s.UpsertProvider(ctx, "hash-a", "memory.Provider", testTime(60))
	require.NoError(t, err)
	id3, err := s.UpsertProvider(ctx, "hash-b", "memory.Provider", testTime(60))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)

	providers, err := s.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "hash-a", providers[0].Hash)
	assert.Equal(t, testTime(0), providers[0].AddedAt)
	assert.Equal(t, testTime(60), providers[0].LastSeen)
}

func TestUpsertEntityType_StableID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertEntityType(ctx, "memory.User", testTime(0))
	require.NoError(t, err)
	id2, err := s.UpsertEntityType(ctx, "memory.User", testTime(10))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	types, err := s.ListEntityTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "memory.User", types[0].Class)
	assert.Equal(t, testTime(0), types[0].AddedAt)
	assert.Equal(t, testTime(10), types[0].LastSeen)
}

func TestInsertRun_FinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.InsertRun(ctx, "0190-uuid", "lazysync", []string{"fetch", "User"}, testTime(0))
	require.NoError(t, err)

	rec, err := s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Open())
	assert.Equal(t, []string{"fetch", "User"}, rec.Arguments)
	assert.Nil(t, rec.ExitStatus)

	err = s.FinishRun(ctx, id, RunResult{
		FinishedAt:   testTime(5),
		ExitStatus:   0,
		ErrorCount:   1,
		WarningCount: 2,
		ErrorsJSON:   `[{"level":"error"}]`,
	})
	require.NoError(t, err)

	rec, err = s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.False(t, rec.Open())
	require.NotNil(t, rec.ExitStatus)
	assert.Equal(t, 0, *rec.ExitStatus)
	assert.Equal(t, testTime(5), *rec.FinishedAt)
	assert.Equal(t, 1, rec.ErrorCount)
	assert.Equal(t, 2, rec.WarningCount)
	assert.Equal(t, `[{"level":"error"}]`, rec.ErrorsJSON)
}

func TestFinishRun_OnlyOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.InsertRun(ctx, "u1", "lazysync", nil, testTime(0))
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, id, RunResult{FinishedAt: testTime(1)}))

	err = s.FinishRun(ctx, id, RunResult{FinishedAt: testTime(2), ExitStatus: 1})
	assert.ErrorIs(t, err, ErrRunNotOpen)

	rec, err := s.ReadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, *rec.ExitStatus)
	assert.Empty(t, rec.ErrorsJSON)
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.FinishRun(context.Background(), 42, RunResult{FinishedAt: testTime(0)})
	assert.ErrorIs(t, err, ErrRunNotOpen)
}

func TestUpsertProvider_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO _sync_provider").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	s := New(db)
	_, err = s.UpsertProvider(context.Background(), "h", "c", testTime(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert provider")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEntityType_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO _sync_entity_type").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT entity_type_id").
		WillReturnRows(sqlmock.NewRows([]string{"entity_type_id"}).AddRow(7))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	s := New(db)
	_, err = s.UpsertEntityType(context.Background(), "memory.User", testTime(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRun_ExecFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO _sync_run").WillReturnError(errors.New("readonly database"))

	s := New(db)
	_, err = s.InsertRun(context.Background(), "u", "cmd", nil, testTime(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}
