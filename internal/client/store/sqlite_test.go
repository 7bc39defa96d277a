package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func tableCount(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n))
	return n
}

func TestOpenSQLite_CreatesCollections(t *testing.T) {
	b := setupSQLite(t)
	for _, c := range Collections {
		assert.Equal(t, 1, tableCount(t, b.db, string(c)), "table %s", c)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	b := setupSQLite(t)
	require.NoError(t, RunMigrations(context.Background(), b.db))
	assert.Equal(t, 1, tableCount(t, b.db, "chat"))
}

func TestOpenSQLite_UnusablePath(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "missing", "dir", "local.db")
	_, err := OpenSQLite(context.Background(), dsn)
	require.Error(t, err)
}

func TestSQLite_PutAssignsIDsAndGetAllOrders(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	id1, err := b.Put(ctx, Chat, Record{Index: "r1", Body: []byte(`{"text":"a"}`)})
	require.NoError(t, err)
	id2, err := b.Put(ctx, Chat, Record{Index: "r2", Body: []byte(`{"text":"b"}`)})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	all, err := b.GetAll(ctx, Chat, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id1, all[0].ID)
	assert.Equal(t, []byte(`{"text":"b"}`), all[1].Body)
	assert.False(t, all[0].CreatedAt.IsZero())
}

func TestSQLite_GetAllFiltersByIndex(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	_, err := b.Put(ctx, Chat, Record{Index: "room-a", Body: []byte("1")})
	require.NoError(t, err)
	_, err = b.Put(ctx, Chat, Record{Index: "room-b", Body: []byte("2")})
	require.NoError(t, err)

	got, err := b.GetAll(ctx, Chat, "room-a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "room-a", got[0].Index)

	none, err := b.GetAll(ctx, Chat, "room-c")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_PutWithIDOverwrites(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	id, err := b.Put(ctx, Chat, Record{Index: "r", Body: []byte("old"), CreatedAt: ts})
	require.NoError(t, err)

	got, err := b.Put(ctx, Chat, Record{ID: id, Index: "r", Body: []byte("new"), CreatedAt: ts})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	all, err := b.GetAll(ctx, Chat, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []byte("new"), all[0].Body)
	assert.True(t, ts.Equal(all[0].CreatedAt))
}

func TestSQLite_DeleteRemovesOnlyGivenIDs(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < deleteChunk+20; i++ {
		id, err := b.Put(ctx, Sightings, Record{Body: []byte("s")})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	keep := ids[len(ids)-1]

	require.NoError(t, b.Delete(ctx, Sightings, ids[:len(ids)-1]))

	left, err := b.GetAll(ctx, Sightings, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, keep, left[0].ID)

	require.NoError(t, b.Delete(ctx, Sightings, nil))
}

func TestSQLite_ClearIsPerCollection(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	_, err := b.Put(ctx, Sightings, Record{Body: []byte("s")})
	require.NoError(t, err)
	_, err = b.Put(ctx, Usernames, Record{Index: "alice", Body: []byte("u")})
	require.NoError(t, err)

	require.NoError(t, b.Clear(ctx, Sightings))

	s, err := b.GetAll(ctx, Sightings, "")
	require.NoError(t, err)
	assert.Empty(t, s)
	u, err := b.GetAll(ctx, Usernames, "")
	require.NoError(t, err)
	assert.Len(t, u, 1)
}

func TestSQLite_UnknownCollection(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	_, err := b.Put(ctx, Collection("nope"), Record{})
	require.Error(t, err)
	_, err = b.GetAll(ctx, Collection("nope"), "")
	require.Error(t, err)
	require.Error(t, b.Clear(ctx, Collection("nope")))
	require.Error(t, b.Delete(ctx, Collection("nope"), []int64{1}))
}
