package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StartsOffline(t *testing.T) {
	m := New(logging.Nop())
	assert.Equal(t, ModeOffline, m.Mode())
	assert.False(t, m.Online())
}

func TestSet_FiresOncePerEdge(t *testing.T) {
	m := New(logging.Nop())
	var online, offline atomic.Int32
	m.OnOnline(func(ctx context.Context) { online.Add(1) })
	m.OnOffline(func(ctx context.Context) { offline.Add(1) })
	ctx := context.Background()

	m.Set(ctx, false)
	m.Set(ctx, true)
	m.Set(ctx, true)
	m.Set(ctx, false)
	m.Set(ctx, false)
	m.Set(ctx, true)
	m.Wait()

	assert.Equal(t, int32(2), online.Load())
	assert.Equal(t, int32(1), offline.Load())
	assert.True(t, m.Online())
}

func TestSet_EdgesRunInTransitionOrder(t *testing.T) {
	m := New(logging.Nop())

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	release := make(chan struct{})
	var first atomic.Bool
	m.OnOnline(func(ctx context.Context) {
		if first.CompareAndSwap(false, true) {
			<-release
		}
		record("online")
	})
	m.OnOffline(func(ctx context.Context) { record("offline") })

	ctx := context.Background()
	m.Set(ctx, true)
	m.Set(ctx, false)
	m.Set(ctx, true)
	assert.True(t, m.Online(), "Set records the mode without waiting for callbacks")

	close(release)
	m.Wait()

	assert.Equal(t, []string{"online", "offline", "online"}, order)
}

func TestSet_DoesNotWaitForCallbacks(t *testing.T) {
	m := New(logging.Nop())
	release := make(chan struct{})
	m.OnOnline(func(ctx context.Context) { <-release })

	done := make(chan struct{})
	go func() {
		m.Set(context.Background(), true)
		m.Set(context.Background(), false)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Set blocked on a running callback")
	}
	close(release)
	m.Wait()
	assert.False(t, m.Online())
}

func TestWatch_ProbeDrivesMode(t *testing.T) {
	m := New(logging.Nop())

	var mu sync.Mutex
	reachable := true
	probe := func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if reachable {
			return nil
		}
		return errors.New("unreachable")
	}

	var edges atomic.Int32
	m.OnOnline(func(ctx context.Context) { edges.Add(1) })
	m.OnOffline(func(ctx context.Context) { edges.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Watch(ctx, 10*time.Millisecond, probe)
		close(done)
	}()

	require.Eventually(t, m.Online, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	reachable = false
	mu.Unlock()
	require.Eventually(t, func() bool { return !m.Online() }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	m.Wait()
	assert.Equal(t, int32(2), edges.Load())
}
