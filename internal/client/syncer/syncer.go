// Package syncer drains the offline queue when the device comes back online.
//
// A run replays every unsynced chat message on the live channel, then sends
// all pending sightings to the remote service as one batch. Chat delivery is
// at-least-once: a message is marked synced only after its emit, so a crash or
// a failed mark in between replays it again next time. The sighting batch is
// removed from the queue only after the remote service accepts it.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/models"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/shared"
)

type Queue interface {
	ListChatMessages(ctx context.Context) []models.PendingChatMessage
	MarkChatMessageSynced(ctx context.Context, id int64, room, author, text string, ts time.Time) error
	ListPendingSightings(ctx context.Context) []models.PendingSighting
	AcknowledgeSightings(ctx context.Context, ids []int64) error
}

type Emitter interface {
	Emit(event string, env shared.Envelope) error
}

type Remote interface {
	SyncSightings(ctx context.Context, batch []models.PendingSighting) (*models.SyncResult, error)
}

// Report describes one SyncAll call. When a call was coalesced into a running
// one, only Coalesced is set; the running call reports for both.
type Report struct {
	Coalesced          bool
	Runs               int
	ChatReplayed       int
	ChatFailed         int
	SightingsSent      int
	SightingsCommitted int
	Items              []models.SyncItem
	Err                error
}

func (r *Report) add(o Report) {
	r.Runs += o.Runs
	r.ChatReplayed += o.ChatReplayed
	r.ChatFailed += o.ChatFailed
	r.SightingsSent += o.SightingsSent
	r.SightingsCommitted += o.SightingsCommitted
	r.Items = append(r.Items, o.Items...)
	if o.Err != nil {
		r.Err = o.Err
	}
}

// Orchestrator runs at most one sync at a time. A SyncAll that arrives while
// another is running schedules one trailing re-run of the running call and
// returns immediately.
type Orchestrator struct {
	queue   Queue
	emitter Emitter
	remote  Remote
	logger  logging.Logger

	mu      sync.Mutex
	running bool
	pending bool
	last    *Report
}

func New(q Queue, e Emitter, r Remote, logger logging.Logger) *Orchestrator {
	return &Orchestrator{queue: q, emitter: e, remote: r, logger: logger.With("module", "syncer")}
}

// SyncAll never fails; problems are logged and reported.
func (o *Orchestrator) SyncAll(ctx context.Context) Report {
	o.mu.Lock()
	if o.running {
		o.pending = true
		o.mu.Unlock()
		o.logger.Debug(ctx, "sync already running, scheduled a re-run")
		return Report{Coalesced: true}
	}
	o.running = true
	o.mu.Unlock()

	var total Report
	for {
		total.add(o.run(ctx))

		o.mu.Lock()
		if !o.pending || ctx.Err() != nil {
			o.running, o.pending = false, false
			last := total
			o.last = &last
			o.mu.Unlock()
			break
		}
		o.pending = false
		o.mu.Unlock()
	}

	o.logger.Info(ctx, "sync finished",
		"runs", total.Runs,
		"chat_replayed", total.ChatReplayed,
		"chat_failed", total.ChatFailed,
		"sightings_sent", total.SightingsSent,
		"sightings_committed", total.SightingsCommitted,
		"error", total.Err)
	return total
}

// Last returns the report of the most recent completed SyncAll, if any.
func (o *Orchestrator) Last() (Report, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Report{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) run(ctx context.Context) Report {
	rep := Report{Runs: 1}
	o.replayChat(ctx, &rep)
	o.sendSightings(ctx, &rep)
	return rep
}

func (o *Orchestrator) replayChat(ctx context.Context, rep *Report) {
	for _, m := range o.queue.ListChatMessages(ctx) {
		if m.Synced {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		err := o.emitter.Emit(common.EventMessage, shared.Envelope{
			Room: m.Room, User: m.Username, Text: m.Text, DateTime: m.DateTime,
		})
		if err != nil {
			o.logger.Warn(ctx, "chat replay failed, message stays queued", "id", m.ID, "room", m.Room, "error", err)
			rep.ChatFailed++
			continue
		}
		rep.ChatReplayed++

		if err := o.queue.MarkChatMessageSynced(ctx, m.ID, m.Room, m.Username, m.Text, m.DateTime); err != nil {
			o.logger.Error(ctx, "marking chat message synced failed, it will be replayed again", "id", m.ID, "error", err)
		}
	}
}

func (o *Orchestrator) sendSightings(ctx context.Context, rep *Report) {
	batch := o.queue.ListPendingSightings(ctx)
	if len(batch) == 0 {
		return
	}
	rep.SightingsSent = len(batch)

	res, err := o.remote.SyncSightings(ctx, batch)
	if err != nil {
		o.logger.Warn(ctx, "sighting sync failed, queue kept", "count", len(batch), "error", err)
		rep.Err = err
		return
	}

	ids := make([]int64, len(batch))
	for i, s := range batch {
		ids[i] = s.ID
	}
	if err := o.queue.AcknowledgeSightings(ctx, ids); err != nil {
		o.logger.Error(ctx, "removing synced sightings failed", "error", err)
		rep.Err = err
		return
	}

	rep.SightingsCommitted = len(batch)
	rep.Items = res.Items
	for _, item := range res.Items {
		if item.Status == models.SyncRejected {
			o.logger.Warn(ctx, "sighting rejected by server", "client_ref", item.ClientRef, "reason", item.Error)
		}
	}
}
