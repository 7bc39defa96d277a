package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSlots(t *testing.T, dir string) *SlotBackend {
	t.Helper()
	b, err := OpenSlots(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSlots_LastWriteWins(t *testing.T) {
	b := setupSlots(t, "")
	ctx := context.Background()

	id1, err := b.Put(ctx, Usernames, Record{Index: "alice", Body: []byte("alice")})
	require.NoError(t, err)
	id2, err := b.Put(ctx, Usernames, Record{Index: "bob", Body: []byte("bob")})
	require.NoError(t, err)

	assert.Less(t, id1, int64(0))
	assert.Less(t, id2, int64(0))
	assert.NotEqual(t, id1, id2)

	all, err := b.GetAll(ctx, Usernames, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "bob", all[0].Index)
	assert.Equal(t, id2, all[0].ID)
}

func TestSlots_CollectionsAreIndependent(t *testing.T) {
	b := setupSlots(t, "")
	ctx := context.Background()

	_, err := b.Put(ctx, Chat, Record{Index: "r1", Body: []byte("c")})
	require.NoError(t, err)

	s, err := b.GetAll(ctx, Sightings, "")
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestSlots_IndexFilter(t *testing.T) {
	b := setupSlots(t, "")
	ctx := context.Background()

	_, err := b.Put(ctx, Chat, Record{Index: "r1", Body: []byte("c")})
	require.NoError(t, err)

	hit, err := b.GetAll(ctx, Chat, "r1")
	require.NoError(t, err)
	assert.Len(t, hit, 1)

	miss, err := b.GetAll(ctx, Chat, "r2")
	require.NoError(t, err)
	assert.Empty(t, miss)
}

func TestSlots_PutWithIDKeepsID(t *testing.T) {
	b := setupSlots(t, "")
	ctx := context.Background()

	id, err := b.Put(ctx, Chat, Record{Index: "r", Body: []byte("unsynced")})
	require.NoError(t, err)
	got, err := b.Put(ctx, Chat, Record{ID: id, Index: "r", Body: []byte("synced")})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	all, err := b.GetAll(ctx, Chat, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []byte("synced"), all[0].Body)
}

func TestSlots_DeleteOnlyMatchingID(t *testing.T) {
	b := setupSlots(t, "")
	ctx := context.Background()

	id, err := b.Put(ctx, Sightings, Record{Body: []byte("s")})
	require.NoError(t, err)

	require.NoError(t, b.Delete(ctx, Sightings, []int64{id - 100}))
	all, err := b.GetAll(ctx, Sightings, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, b.Delete(ctx, Sightings, []int64{id}))
	all, err = b.GetAll(ctx, Sightings, "")
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, b.Delete(ctx, Sightings, []int64{id}))
	require.NoError(t, b.Clear(ctx, Sightings))
}

func TestSlots_PersistInDir(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := OpenSlots(dir)
	require.NoError(t, err)
	_, err = b.Put(ctx, Usernames, Record{Index: "carol", Body: []byte("carol")})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b2 := setupSlots(t, dir)
	all, err := b2.GetAll(ctx, Usernames, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "carol", all[0].Index)
}

func TestSlots_UnknownCollection(t *testing.T) {
	b := setupSlots(t, "")
	_, err := b.Put(context.Background(), Collection("x"), Record{})
	require.Error(t, err)
}
