package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	slotKeyPrefix = "slot:"
	idSequenceKey = "seq:ids"
)

// SlotBackend is the fallback tier. Each collection owns one key and the last
// write wins, so at most one record per collection survives.
//
// IDs it assigns are negative and never collide with primary-tier IDs.
type SlotBackend struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenSlots opens a badger database in dir, or an in-memory one when dir is empty.
func OpenSlots(dir string) (*SlotBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil).WithMemTableSize(4 << 20)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte(idSequenceKey), 16)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("id sequence: %w", err)
	}

	return &SlotBackend{db: db, seq: seq}, nil
}

func slotKey(c Collection) ([]byte, error) {
	k, err := c.slotKey()
	if err != nil {
		return nil, err
	}
	return []byte(slotKeyPrefix + k), nil
}

func (b *SlotBackend) Put(ctx context.Context, c Collection, rec Record) (int64, error) {
	key, err := slotKey(c)
	if err != nil {
		return 0, err
	}

	if rec.ID == 0 {
		n, err := b.seq.Next()
		if err != nil {
			return 0, fmt.Errorf("next id: %w", err)
		}
		rec.ID = -(int64(n) + 1)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal record: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return 0, fmt.Errorf("set %s: %w", key, err)
	}
	return rec.ID, nil
}

func (b *SlotBackend) get(c Collection) (*Record, error) {
	key, err := slotKey(c)
	if err != nil {
		return nil, err
	}

	var rec *Record
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec = &Record{}
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return rec, nil
}

func (b *SlotBackend) GetAll(ctx context.Context, c Collection, index string) ([]Record, error) {
	rec, err := b.get(c)
	if err != nil || rec == nil {
		return nil, err
	}
	if index != "" && rec.Index != index {
		return nil, nil
	}
	return []Record{*rec}, nil
}

func (b *SlotBackend) Delete(ctx context.Context, c Collection, ids []int64) error {
	rec, err := b.get(c)
	if err != nil || rec == nil {
		return err
	}
	if !slices.Contains(ids, rec.ID) {
		return nil
	}
	return b.Clear(ctx, c)
}

func (b *SlotBackend) Clear(ctx context.Context, c Collection) error {
	key, err := slotKey(c)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

func (b *SlotBackend) Close() error {
	return errors.Join(b.seq.Release(), b.db.Close())
}
