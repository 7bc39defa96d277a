package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/models"
	"github.com/dmitrijs2005/birdwatch/internal/client/queue"
	"github.com/dmitrijs2005/birdwatch/internal/client/store"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmitter struct {
	mu   sync.Mutex
	sent []shared.Envelope
	err  error
}

func (f *fakeEmitter) Emit(event string, env shared.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	env.Event = event
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRemote struct {
	mu      sync.Mutex
	batches [][]models.PendingSighting
	err     error
	hook    func()
}

func (f *fakeRemote) SyncSightings(ctx context.Context, batch []models.PendingSighting) (*models.SyncResult, error) {
	if f.hook != nil {
		f.hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	if f.err != nil {
		return nil, f.err
	}
	res := &models.SyncResult{Accepted: len(batch)}
	for _, s := range batch {
		res.Items = append(res.Items, models.SyncItem{ClientRef: s.ClientRef, Status: models.SyncCreated})
	}
	return res, nil
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	s := store.New(":memory:", "", logging.Nop())
	t.Cleanup(func() { _ = s.Close() })
	return queue.New(s, logging.Nop())
}

func enqueue(t *testing.T, q *queue.Queue, ref string) {
	t.Helper()
	_, err := q.EnqueueSighting(context.Background(), models.PendingSighting{ClientRef: ref, UploadedBy: "alice", Latitude: "1", Longitude: "2"})
	require.NoError(t, err)
}

var ts = time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

func TestSyncAll_SendsOneBatchAndClears(t *testing.T) {
	q := newQueue(t)
	enqueue(t, q, "a")
	enqueue(t, q, "b")
	remote := &fakeRemote{}

	rep := New(q, &fakeEmitter{}, remote, logging.Nop()).SyncAll(context.Background())

	require.Equal(t, 1, remote.calls())
	require.Len(t, remote.batches[0], 2)
	assert.Equal(t, 2, rep.SightingsSent)
	assert.Equal(t, 2, rep.SightingsCommitted)
	assert.Len(t, rep.Items, 2)
	assert.NoError(t, rep.Err)
	assert.Empty(t, q.ListPendingSightings(context.Background()))
}

func TestSyncAll_BatchFailureKeepsQueue(t *testing.T) {
	q := newQueue(t)
	enqueue(t, q, "a")
	remote := &fakeRemote{err: errors.New("503")}

	rep := New(q, &fakeEmitter{}, remote, logging.Nop()).SyncAll(context.Background())

	assert.Error(t, rep.Err)
	assert.Equal(t, 0, rep.SightingsCommitted)
	pending := q.ListPendingSightings(context.Background())
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].ClientRef)
}

func TestSyncAll_EmptyQueueSkipsRemote(t *testing.T) {
	remote := &fakeRemote{}
	rep := New(newQueue(t), &fakeEmitter{}, remote, logging.Nop()).SyncAll(context.Background())

	assert.Equal(t, 0, remote.calls())
	assert.Equal(t, 1, rep.Runs)
}

func TestSyncAll_ReplaysUnsyncedChatAndMarksIt(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	id, err := q.EnqueueChatMessage(ctx, "s1", "alice", "offline hello", ts, false)
	require.NoError(t, err)
	_, err = q.EnqueueChatMessage(ctx, "s2", "alice", "already live", ts, true)
	require.NoError(t, err)
	emitter := &fakeEmitter{}

	rep := New(q, emitter, &fakeRemote{}, logging.Nop()).SyncAll(ctx)

	assert.Equal(t, 1, rep.ChatReplayed)
	require.Len(t, emitter.sent, 1)
	assert.Equal(t, shared.Envelope{Event: "message", Room: "s1", User: "alice", Text: "offline hello", DateTime: ts}, emitter.sent[0])

	msgs := q.ListChatMessagesForRoom(ctx, "s1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.PendingChatMessage{ID: id, Room: "s1", Username: "alice", Text: "offline hello", DateTime: ts, Synced: true}, msgs[0])

	New(q, emitter, &fakeRemote{}, logging.Nop()).SyncAll(ctx)
	assert.Equal(t, 1, emitter.count(), "synced messages are not replayed")
}

func TestSyncAll_EmitFailureLeavesMessageUnsynced(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	_, err := q.EnqueueChatMessage(ctx, "s1", "alice", "hi", ts, false)
	require.NoError(t, err)
	enqueue(t, q, "a")
	remote := &fakeRemote{}

	rep := New(q, &fakeEmitter{err: errors.New("not connected")}, remote, logging.Nop()).SyncAll(ctx)

	assert.Equal(t, 1, rep.ChatFailed)
	assert.False(t, q.ListChatMessagesForRoom(ctx, "s1")[0].Synced)
	assert.Equal(t, 1, remote.calls(), "sightings still sync when chat replay fails")
}

type markFailingQueue struct {
	*queue.Queue
}

func (markFailingQueue) MarkChatMessageSynced(ctx context.Context, id int64, room, author, text string, ts time.Time) error {
	return errors.New("write lost")
}

func TestSyncAll_UnmarkedMessageIsReplayedAgain(t *testing.T) {
	q := newQueue(t)
	ctx := context.Background()
	_, err := q.EnqueueChatMessage(ctx, "s1", "alice", "twice", ts, false)
	require.NoError(t, err)
	emitter := &fakeEmitter{}

	o := New(markFailingQueue{q}, emitter, &fakeRemote{}, logging.Nop())
	o.SyncAll(ctx)
	o.SyncAll(ctx)

	require.Equal(t, 2, emitter.count())
	assert.Equal(t, emitter.sent[0], emitter.sent[1])
}

func TestSyncAll_ConcurrentCallsCoalesce(t *testing.T) {
	q := newQueue(t)
	enqueue(t, q, "first")

	entered := make(chan struct{})
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32
	var once sync.Once

	remote := &fakeRemote{}
	remote.hook = func() {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		once.Do(func() {
			close(entered)
			<-release
		})
		inFlight.Add(-1)
	}

	o := New(q, &fakeEmitter{}, remote, logging.Nop())

	done := make(chan Report)
	go func() { done <- o.SyncAll(context.Background()) }()
	<-entered

	enqueue(t, q, "second")
	for i := 0; i < 3; i++ {
		rep := o.SyncAll(context.Background())
		assert.True(t, rep.Coalesced)
	}
	close(release)

	rep := <-done
	assert.Equal(t, 2, rep.Runs)
	assert.Equal(t, 2, remote.calls())
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, "first", remote.batches[0][0].ClientRef)
	require.Len(t, remote.batches[1], 1)
	assert.Equal(t, "second", remote.batches[1][0].ClientRef)
	assert.Empty(t, q.ListPendingSightings(context.Background()))

	last, ok := o.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.SightingsCommitted)
}
