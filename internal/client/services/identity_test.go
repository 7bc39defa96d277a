package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/birdwatch/internal/client/queue"
	"github.com/dmitrijs2005/birdwatch/internal/client/store"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	st := store.New(":memory:", "", logging.Nop())
	t.Cleanup(func() { _ = st.Close() })
	svc := NewIdentityService(queue.New(st, logging.Nop()))
	ctx := context.Background()

	assert.Equal(t, common.GuestUsername, svc.Username(ctx))

	require.NoError(t, svc.SetUsername(ctx, "  alice "))
	assert.Equal(t, "alice", svc.Username(ctx))

	require.NoError(t, svc.SetUsername(ctx, "bob"))
	assert.Equal(t, "bob", svc.Username(ctx))

	assert.ErrorIs(t, svc.SetUsername(ctx, " "), common.ErrValidation)
	assert.Equal(t, "bob", svc.Username(ctx))
}
