package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_CreateAndHistory(t *testing.T) {
	db, _ := newSQLMockDB(t)
	repo := &fakeChatsRepo{}
	svc := NewChatService(db, &fakeRepoManager{c: repo})
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))

	m, err := svc.Create(ctx, " room-1 ", "alice", " hello ", at)
	require.NoError(t, err)
	assert.Equal(t, "room-1", m.Room)
	assert.Equal(t, "hello", m.Text)
	assert.Equal(t, time.UTC, m.DateTime.Location())

	_, err = svc.Create(ctx, "room-1", "", "anyone?", time.Time{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "room-2", "bob", "elsewhere", at)
	require.NoError(t, err)

	h, err := svc.History(ctx, "room-1")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, common.GuestUsername, h[1].Username)
	assert.False(t, h[1].DateTime.IsZero())

	empty, err := svc.History(ctx, "nobody-here")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestChatService_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	svc := NewChatService(db, &fakeRepoManager{c: &fakeChatsRepo{}})

	_, err := svc.Create(context.Background(), "", "alice", "hi", time.Time{})
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = svc.Create(context.Background(), "r", "alice", "   ", time.Time{})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestChatService_StorageError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	svc := NewChatService(db, &fakeRepoManager{c: &fakeChatsRepo{err: errors.New("db down")}})

	_, err := svc.Create(context.Background(), "r", "alice", "hi", time.Time{})
	require.Error(t, err)
	_, err = svc.History(context.Background(), "r")
	require.Error(t, err)
}
