package mirror

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/compliance-engine/pkg/models/store"
	"github.com/de-tools/compliance-engine/pkg/store/duckdb"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupFixture(t *testing.T) *fixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{db: db, store: s}
}

func TestNewStore(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupFixture(t)
		assert.NotNil(t, f.store)
	})

	t.Run("nil db", func(t *testing.T) {
		s, err := NewStore(nil)
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestStore_Lifecycle(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	// Given a registered mirror
	require.NoError(t, f.store.CreateMirror(ctx, &store.Mirror{
		AccountID: "111111111111",
		RoleARN:   "arn:aws:iam::111111111111:role/reader",
		Region:    "eu-west-1",
	}))

	mirrors, err := f.store.ListMirrors(ctx)
	require.NoError(t, err)
	require.Len(t, mirrors, 1)
	assert.Nil(t, mirrors[0].LastSyncedAt)
	assert.Nil(t, mirrors[0].Error)
	assert.Zero(t, mirrors[0].Records)

	// When it fails once and then progresses twice
	require.NoError(t, f.store.FailMirror(ctx, "111111111111", "access denied"))
	mirrors, err = f.store.ListMirrors(ctx)
	require.NoError(t, err)
	require.NotNil(t, mirrors[0].Error)
	assert.Equal(t, "access denied", *mirrors[0].Error)

	synced := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, duckdb.InTransaction(ctx, f.db, func(ctx context.Context) error {
		return f.store.ProgressMirror(ctx, "111111111111", synced, 5)
	}))
	require.NoError(t, f.store.ProgressMirror(ctx, "111111111111", synced.Add(time.Hour), 3))

	// Then
	mirrors, err = f.store.ListMirrors(ctx)
	require.NoError(t, err)
	require.Len(t, mirrors, 1)
	assert.Nil(t, mirrors[0].Error)
	assert.Equal(t, int64(8), mirrors[0].Records)
	require.NotNil(t, mirrors[0].LastSyncedAt)
	assert.True(t, synced.Add(time.Hour).Equal(*mirrors[0].LastSyncedAt))
}

func TestStore_CreateMirrorReplacesTarget(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateMirror(ctx, &store.Mirror{AccountID: "111111111111", RoleARN: "old", Region: "us-east-1"}))
	require.NoError(t, f.store.FailMirror(ctx, "111111111111", "boom"))
	require.NoError(t, f.store.CreateMirror(ctx, &store.Mirror{AccountID: "111111111111", RoleARN: "new", Region: "eu-west-1"}))

	mirrors, err := f.store.ListMirrors(ctx)
	require.NoError(t, err)
	require.Len(t, mirrors, 1)
	assert.Equal(t, "new", mirrors[0].RoleARN)
	assert.Equal(t, "eu-west-1", mirrors[0].Region)
	assert.Nil(t, mirrors[0].Error)
}

func TestStore_DeleteMirror(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateMirror(ctx, &store.Mirror{AccountID: "111111111111", RoleARN: "r", Region: "eu-west-1"}))

	require.NoError(t, f.store.DeleteMirror(ctx, "111111111111"))
	assert.Error(t, f.store.DeleteMirror(ctx, "111111111111"))

	mirrors, err := f.store.ListMirrors(ctx)
	require.NoError(t, err)
	assert.Empty(t, mirrors)
}
