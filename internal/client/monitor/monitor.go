// Package monitor tracks whether the remote service is reachable and fires
// callbacks on each offline/online edge.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// probeTimeout bounds one reachability check.
const probeTimeout = 3 * time.Second

type Callback func(ctx context.Context)

// Monitor starts offline, so the first successful probe is an online edge
// and drains whatever an earlier run left queued.
type Monitor struct {
	logger logging.Logger

	mu        sync.Mutex
	mode      Mode
	onOnline  []Callback
	onOffline []Callback
	edges     []edge
	draining  bool

	wg sync.WaitGroup
}

// edge is one transition's callbacks, waiting for the worker.
type edge struct {
	ctx       context.Context
	callbacks []Callback
}

func New(logger logging.Logger) *Monitor {
	return &Monitor{logger: logger.With("module", "monitor"), mode: ModeOffline}
}

// OnOnline registers fn for offline → online edges.
func (m *Monitor) OnOnline(fn Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// OnOffline registers fn for online → offline edges.
func (m *Monitor) OnOffline(fn Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOffline = append(m.onOffline, fn)
}

func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Monitor) Online() bool {
	return m.Mode() == ModeOnline
}

// Set records the host's connectivity. Callbacks fire once per transition;
// repeating the current state does nothing. Set does not block: transitions
// are handed to a single worker goroutine that runs them in the order they
// happened, so an offline edge's callbacks finish before the next online
// edge's start.
func (m *Monitor) Set(ctx context.Context, online bool) {
	mode := ModeOffline
	if online {
		mode = ModeOnline
	}

	m.mu.Lock()
	if m.mode == mode {
		m.mu.Unlock()
		return
	}
	m.mode = mode
	callbacks := m.onOffline
	if online {
		callbacks = m.onOnline
	}
	m.edges = append(m.edges, edge{ctx: ctx, callbacks: append([]Callback(nil), callbacks...)})
	if !m.draining {
		m.draining = true
		m.wg.Add(1)
		go m.drain()
	}
	m.mu.Unlock()

	m.logger.Info(ctx, "switched mode", "mode", mode)
}

func (m *Monitor) drain() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		if len(m.edges) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		e := m.edges[0]
		m.edges = m.edges[1:]
		m.mu.Unlock()

		for _, fn := range e.callbacks {
			fn(e.ctx)
		}
	}
}

// Wait blocks until every callback fired so far has returned.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Watch probes reachability now and then every interval until ctx ends.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration, probe func(ctx context.Context) error) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe(pctx)
		cancel()
		if err != nil && ctx.Err() == nil {
			m.logger.Debug(ctx, "reachability probe failed", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		m.Set(ctx, err == nil)
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			check()
		case <-ctx.Done():
			return
		}
	}
}
