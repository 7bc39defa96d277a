package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	Backend
	putErr    error
	getErr    error
	deleteErr error
	deleted   []int64
	cleared   int
}

func (f *fakeBackend) Put(ctx context.Context, c Collection, rec Record) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}
	return 1, nil
}

func (f *fakeBackend) GetAll(ctx context.Context, c Collection, index string) ([]Record, error) {
	return nil, f.getErr
}

func (f *fakeBackend) Delete(ctx context.Context, c Collection, ids []int64) error {
	f.deleted = append(f.deleted, ids...)
	return f.deleteErr
}

func (f *fakeBackend) Clear(ctx context.Context, c Collection) error {
	f.cleared++
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func withPrimary(t *testing.T, fn func(ctx context.Context, dsn string) (Backend, error)) {
	t.Helper()
	orig := openPrimary
	openPrimary = fn
	t.Cleanup(func() { openPrimary = orig })
}

func newStore(t *testing.T, dsn string) *Store {
	t.Helper()
	s := New(dsn, "", logging.Nop())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInitialize_ConcurrentCallersOpenOnce(t *testing.T) {
	var opens atomic.Int32
	var sqlite *SQLiteBackend
	withPrimary(t, func(ctx context.Context, dsn string) (Backend, error) {
		opens.Add(1)
		b, err := OpenSQLite(ctx, dsn)
		sqlite = b
		return b, err
	})

	s := newStore(t, ":memory:")

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Initialize(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, TierPrimary, s.Tier(context.Background()))
	for _, c := range Collections {
		assert.Equal(t, 1, tableCount(t, sqlite.db, string(c)))
	}
}

func TestStore_PrimaryUnavailableUsesFallback(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "no", "such", "dir", "local.db")
	s := newStore(t, dsn)
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, TierFallback, s.Tier(ctx))

	_, err := s.Put(ctx, Usernames, Record{Index: "alice", Body: []byte("alice")})
	require.NoError(t, err)
	_, err = s.Put(ctx, Usernames, Record{Index: "bob", Body: []byte("bob")})
	require.NoError(t, err)

	got := s.GetAll(ctx, Usernames, "")
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Index)
}

func TestStore_PrimaryWriteFailureDivertsToSlot(t *testing.T) {
	primary := &fakeBackend{putErr: errors.New("disk full")}
	withPrimary(t, func(ctx context.Context, dsn string) (Backend, error) { return primary, nil })

	s := newStore(t, "ignored")
	ctx := context.Background()

	id, err := s.Put(ctx, Sightings, Record{Body: []byte("s1")})
	require.NoError(t, err)
	assert.Less(t, id, int64(0))

	got := s.GetAll(ctx, Sightings, "")
	require.Len(t, got, 1)
	assert.Equal(t, []byte("s1"), got[0].Body)
}

func TestStore_PrimaryReadFailureYieldsEmpty(t *testing.T) {
	primary := &fakeBackend{getErr: errors.New("corrupt page")}
	withPrimary(t, func(ctx context.Context, dsn string) (Backend, error) { return primary, nil })

	s := newStore(t, "ignored")
	assert.Empty(t, s.GetAll(context.Background(), Chat, "r1"))
}

func TestStore_DeleteAndClearReachBothTiers(t *testing.T) {
	primary := &fakeBackend{}
	withPrimary(t, func(ctx context.Context, dsn string) (Backend, error) { return primary, nil })

	s := newStore(t, "ignored")
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	slotID, err := s.fallback.Put(ctx, Sightings, Record{Body: []byte("diverted")})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, Sightings, []int64{3, slotID}))
	assert.Equal(t, []int64{3, slotID}, primary.deleted)
	assert.Empty(t, s.GetAll(ctx, Sightings, ""))

	require.NoError(t, s.Clear(ctx, Sightings))
	assert.Equal(t, 1, primary.cleared)
}

func TestStore_DeleteReportsPrimaryError(t *testing.T) {
	primary := &fakeBackend{deleteErr: errors.New("locked")}
	withPrimary(t, func(ctx context.Context, dsn string) (Backend, error) { return primary, nil })

	s := newStore(t, "ignored")
	require.Error(t, s.Delete(context.Background(), Sightings, []int64{1}))
}

func TestStore_SlotOverlaysPrimaryRecordWithSameID(t *testing.T) {
	s := newStore(t, ":memory:")
	ctx := context.Background()

	id, err := s.Put(ctx, Chat, Record{Index: "r", Body: []byte("v1")})
	require.NoError(t, err)

	_, err = s.fallback.Put(ctx, Chat, Record{ID: id, Index: "r", Body: []byte("v2")})
	require.NoError(t, err)

	got := s.GetAll(ctx, Chat, "r")
	require.Len(t, got, 1)
	assert.Equal(t, []byte("v2"), got[0].Body)
}

func TestStore_InitializeFailsWhenNoTierOpens(t *testing.T) {
	orig := openFallback
	openFallback = func(dir string) (Backend, error) { return nil, errors.New("no memory") }
	t.Cleanup(func() { openFallback = orig })

	s := New(":memory:", "", logging.Nop())
	require.Error(t, s.Initialize(context.Background()))

	_, err := s.Put(context.Background(), Chat, Record{})
	require.Error(t, err)
	assert.Empty(t, s.GetAll(context.Background(), Chat, ""))
}
