// Package queue adapts the local store to the records the offline-first flow
// needs: pending sightings, room transcripts, the last username and the
// device's signatures.
//
// Enqueue operations always appear to succeed to the user; storage problems
// are logged by the store and absorbed by its fallback tier.
package queue

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/models"
	"github.com/dmitrijs2005/birdwatch/internal/client/store"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/goccy/go-json"
)

// Storage is the store surface the adapter needs; *store.Store satisfies it.
type Storage interface {
	Put(ctx context.Context, c store.Collection, rec store.Record) (int64, error)
	GetAll(ctx context.Context, c store.Collection, index string) []store.Record
	Delete(ctx context.Context, c store.Collection, ids []int64) error
	Clear(ctx context.Context, c store.Collection) error
}

type Queue struct {
	store  Storage
	logger logging.Logger
	now    func() time.Time
}

func New(s Storage, logger logging.Logger) *Queue {
	return &Queue{store: s, logger: logger.With("module", "queue"), now: time.Now}
}

type usernameBody struct {
	Username string    `json:"username"`
	DateTime time.Time `json:"dateTime"`
}

type signatureBody struct {
	Signature string `json:"signature"`
}

func (q *Queue) put(ctx context.Context, c store.Collection, id int64, index string, v any) (int64, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", c, err)
	}
	return q.store.Put(ctx, c, store.Record{ID: id, Index: index, Body: body, CreatedAt: q.now().UTC()})
}

// EnqueueSighting persists s for the next sync and returns its local ID.
func (q *Queue) EnqueueSighting(ctx context.Context, s models.PendingSighting) (int64, error) {
	id, err := q.put(ctx, store.Sightings, 0, s.ClientRef, s)
	if err != nil {
		q.logger.Error(ctx, "enqueue sighting failed", "error", err)
		return 0, err
	}
	q.logger.Debug(ctx, "sighting queued", "id", id, "client_ref", s.ClientRef)
	return id, nil
}

// ListPendingSightings returns every queued sighting. Undecodable records
// are logged and skipped.
func (q *Queue) ListPendingSightings(ctx context.Context) []models.PendingSighting {
	records := q.store.GetAll(ctx, store.Sightings, "")
	result := make([]models.PendingSighting, 0, len(records))
	for _, rec := range records {
		var s models.PendingSighting
		if err := json.Unmarshal(rec.Body, &s); err != nil {
			q.logger.Error(ctx, "skipping undecodable sighting", "id", rec.ID, "error", err)
			continue
		}
		s.ID = rec.ID
		result = append(result, s)
	}
	return result
}

// ClearPendingSightings empties the sighting queue.
func (q *Queue) ClearPendingSightings(ctx context.Context) error {
	return q.store.Clear(ctx, store.Sightings)
}

// AcknowledgeSightings removes the given sightings. Records queued after the
// batch was read are untouched.
func (q *Queue) AcknowledgeSightings(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return q.store.Delete(ctx, store.Sightings, ids)
}

// EnqueueChatMessage stores a chat line in the room transcript.
func (q *Queue) EnqueueChatMessage(ctx context.Context, room, author, text string, ts time.Time, synced bool) (int64, error) {
	m := models.PendingChatMessage{Room: room, Username: author, Text: text, DateTime: ts, Synced: synced}
	id, err := q.put(ctx, store.Chat, 0, room, m)
	if err != nil {
		q.logger.Error(ctx, "enqueue chat message failed", "room", room, "error", err)
		return 0, err
	}
	return id, nil
}

// ListChatMessagesForRoom returns the room transcript, synced or not.
func (q *Queue) ListChatMessagesForRoom(ctx context.Context, room string) []models.PendingChatMessage {
	return q.decodeChat(ctx, q.store.GetAll(ctx, store.Chat, room))
}

// ListChatMessages returns the transcripts of every room.
func (q *Queue) ListChatMessages(ctx context.Context) []models.PendingChatMessage {
	return q.decodeChat(ctx, q.store.GetAll(ctx, store.Chat, ""))
}

func (q *Queue) decodeChat(ctx context.Context, records []store.Record) []models.PendingChatMessage {
	result := make([]models.PendingChatMessage, 0, len(records))
	for _, rec := range records {
		var m models.PendingChatMessage
		if err := json.Unmarshal(rec.Body, &m); err != nil {
			q.logger.Error(ctx, "skipping undecodable chat message", "id", rec.ID, "error", err)
			continue
		}
		m.ID = rec.ID
		result = append(result, m)
	}
	return result
}

// MarkChatMessageSynced rewrites record id in place with Synced set.
func (q *Queue) MarkChatMessageSynced(ctx context.Context, id int64, room, author, text string, ts time.Time) error {
	m := models.PendingChatMessage{Room: room, Username: author, Text: text, DateTime: ts, Synced: true}
	if _, err := q.put(ctx, store.Chat, id, room, m); err != nil {
		return fmt.Errorf("mark chat message %d synced: %w", id, err)
	}
	return nil
}

// RecordLastUsername makes name the current username.
func (q *Queue) RecordLastUsername(ctx context.Context, name string) error {
	if err := q.store.Clear(ctx, store.Usernames); err != nil {
		q.logger.Warn(ctx, "clearing previous usernames failed", "error", err)
	}
	_, err := q.put(ctx, store.Usernames, 0, name, usernameBody{Username: name, DateTime: q.now().UTC()})
	return err
}

// CurrentUsername returns the most recently recorded username, or the guest
// name when none was ever recorded. It never fails.
func (q *Queue) CurrentUsername(ctx context.Context) string {
	var (
		latest usernameBody
		found  bool
	)
	for _, rec := range q.store.GetAll(ctx, store.Usernames, "") {
		var u usernameBody
		if err := json.Unmarshal(rec.Body, &u); err != nil || u.Username == "" {
			continue
		}
		if !found || !u.DateTime.Before(latest.DateTime) {
			latest, found = u, true
		}
	}
	if !found {
		return common.GuestUsername
	}
	return latest.Username
}

// RecordSignature adds sig to the device's signature set.
func (q *Queue) RecordSignature(ctx context.Context, sig string) error {
	if sig == "" || len(q.store.GetAll(ctx, store.Signatures, sig)) > 0 {
		return nil
	}
	_, err := q.put(ctx, store.Signatures, 0, sig, signatureBody{Signature: sig})
	return err
}

// AllSignatures returns the device's signatures, without duplicates.
func (q *Queue) AllSignatures(ctx context.Context) []string {
	var result []string
	for _, rec := range q.store.GetAll(ctx, store.Signatures, "") {
		var s signatureBody
		if err := json.Unmarshal(rec.Body, &s); err != nil || s.Signature == "" {
			continue
		}
		if !slices.Contains(result, s.Signature) {
			result = append(result, s.Signature)
		}
	}
	return result
}
