package store

import (
	"context"
	"fmt"
	"time"
)

// Collection names one of the four local record sets.
type Collection string

const (
	Usernames  Collection = "usernames"
	Signatures Collection = "signatures"
	Sightings  Collection = "sightings"
	Chat       Collection = "chat"
)

// Collections lists every collection the store manages.
var Collections = []Collection{Usernames, Signatures, Sightings, Chat}

// slotKey is the single fallback key a collection collapses into.
func (c Collection) slotKey() (string, error) {
	switch c {
	case Usernames:
		return "username", nil
	case Signatures:
		return "signature", nil
	case Sightings:
		return "sighting", nil
	case Chat:
		return "chat", nil
	default:
		return "", fmt.Errorf("unknown collection %q", string(c))
	}
}

// Record is one stored value. Index is the collection's secondary key: the
// room for chat, the name for usernames, the token for signatures.
type Record struct {
	ID        int64     `json:"id"`
	Index     string    `json:"index"`
	Body      []byte    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backend is a storage tier.
//
// Put inserts rec when rec.ID is zero and returns the assigned ID; otherwise
// it overwrites the record with that ID. GetAll filters by Index unless index
// is empty.
type Backend interface {
	Put(ctx context.Context, c Collection, rec Record) (int64, error)
	GetAll(ctx context.Context, c Collection, index string) ([]Record, error)
	Delete(ctx context.Context, c Collection, ids []int64) error
	Clear(ctx context.Context, c Collection) error
	Close() error
}
