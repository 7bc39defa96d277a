// Package store is the device's durable store for queued sightings, chat
// transcripts, usernames and signatures.
//
// It has two tiers. The primary tier is SQLite with one indexed table per
// collection. The fallback tier keeps a single last-write-wins slot per
// collection in badger. Initialize probes the primary tier once and picks the
// tier for the lifetime of the Store; a failed primary write is diverted to
// the fallback slot and a failed primary read yields nothing. Callers never
// see "store unavailable".
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Tier names the storage tier in use.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

var (
	openPrimary = func(ctx context.Context, dsn string) (Backend, error) {
		return OpenSQLite(ctx, dsn)
	}
	openFallback = func(dir string) (Backend, error) {
		return OpenSlots(dir)
	}
)

// Store is the lazily initialized handle shared by every client component.
type Store struct {
	dsn         string
	fallbackDir string
	logger      logging.Logger

	group singleflight.Group
	ready atomic.Bool

	mu       sync.RWMutex
	tier     Tier
	primary  Backend
	fallback Backend
}

// New returns an uninitialized Store. dsn is the SQLite data source;
// fallbackDir holds the badger slots, empty meaning in-memory.
func New(dsn, fallbackDir string, logger logging.Logger) *Store {
	return &Store{
		dsn:         dsn,
		fallbackDir: fallbackDir,
		logger:      logger.With("module", "store"),
	}
}

// Initialize opens the store. Concurrent callers share one in-flight
// initialization and later calls return immediately. It fails only when
// neither tier can be opened.
func (s *Store) Initialize(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	_, err, _ := s.group.Do("init", func() (any, error) {
		if s.ready.Load() {
			return nil, nil
		}
		if err := s.open(ctx); err != nil {
			return nil, err
		}
		s.ready.Store(true)
		return nil, nil
	})
	return err
}

func (s *Store) open(ctx context.Context) error {
	fallback, err := openFallback(s.fallbackDir)
	if err != nil && s.fallbackDir != "" {
		s.logger.Warn(ctx, "fallback dir unusable, keeping slots in memory", "dir", s.fallbackDir, "error", err)
		fallback, err = openFallback("")
	}
	if err != nil {
		return fmt.Errorf("open fallback tier: %w", err)
	}

	tier := TierPrimary
	primary, err := openPrimary(ctx, s.dsn)
	if err != nil {
		s.logger.Warn(ctx, "primary store unavailable, using fallback slots",
			"error", errors.Join(common.ErrStoreUnavailable, err))
		primary = nil
		tier = TierFallback
	}

	s.mu.Lock()
	s.primary, s.fallback, s.tier = primary, fallback, tier
	s.mu.Unlock()

	s.logger.Info(ctx, "store initialized", "tier", tier)
	return nil
}

func (s *Store) backends(ctx context.Context) (primary, fallback Backend, ok bool) {
	if err := s.Initialize(ctx); err != nil {
		s.logger.Error(ctx, "store initialization failed", "error", err)
		return nil, nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary, s.fallback, true
}

// Tier reports the selected tier, initializing the store if needed.
func (s *Store) Tier(ctx context.Context) Tier {
	if _, _, ok := s.backends(ctx); !ok {
		return TierFallback
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tier
}

// Put inserts or overwrites rec and returns its ID.
func (s *Store) Put(ctx context.Context, c Collection, rec Record) (int64, error) {
	primary, fallback, ok := s.backends(ctx)
	if !ok {
		return 0, common.ErrStoreUnavailable
	}

	if primary != nil && rec.ID >= 0 {
		id, err := primary.Put(ctx, c, rec)
		if err == nil {
			return id, nil
		}
		s.logger.Error(ctx, "primary write failed, writing to fallback slot", "collection", c, "error", err)
	}

	id, err := fallback.Put(ctx, c, rec)
	if err != nil {
		s.logger.Error(ctx, "fallback write failed", "collection", c, "error", err)
		return 0, err
	}
	return id, nil
}

// GetAll returns the records of c, filtered by index unless it is empty.
// Read failures are logged and yield no records.
func (s *Store) GetAll(ctx context.Context, c Collection, index string) []Record {
	primary, fallback, ok := s.backends(ctx)
	if !ok {
		return nil
	}

	var records []Record
	if primary != nil {
		var err error
		records, err = primary.GetAll(ctx, c, index)
		if err != nil {
			s.logger.Error(ctx, "primary read failed", "collection", c, "error", err)
			return nil
		}
	}

	slot, err := fallback.GetAll(ctx, c, index)
	if err != nil {
		s.logger.Error(ctx, "fallback read failed", "collection", c, "error", err)
		return records
	}
	return mergeSlot(records, slot)
}

// mergeSlot overlays the fallback slot on primary records; a slot record
// replaces a primary record with the same ID.
func mergeSlot(records, slot []Record) []Record {
	for _, rec := range slot {
		replaced := false
		for i := range records {
			if records[i].ID == rec.ID {
				records[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			records = append(records, rec)
		}
	}
	return records
}

// Delete removes the given records from both tiers.
func (s *Store) Delete(ctx context.Context, c Collection, ids []int64) error {
	primary, fallback, ok := s.backends(ctx)
	if !ok {
		return common.ErrStoreUnavailable
	}

	var errs []error
	if primary != nil {
		if err := primary.Delete(ctx, c, ids); err != nil {
			s.logger.Error(ctx, "primary delete failed", "collection", c, "error", err)
			errs = append(errs, err)
		}
	}
	if err := fallback.Delete(ctx, c, ids); err != nil {
		s.logger.Error(ctx, "fallback delete failed", "collection", c, "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Clear removes every record of c from both tiers.
func (s *Store) Clear(ctx context.Context, c Collection) error {
	primary, fallback, ok := s.backends(ctx)
	if !ok {
		return common.ErrStoreUnavailable
	}

	var errs []error
	if primary != nil {
		if err := primary.Clear(ctx, c); err != nil {
			s.logger.Error(ctx, "primary clear failed", "collection", c, "error", err)
			errs = append(errs, err)
		}
	}
	if err := fallback.Clear(ctx, c); err != nil {
		s.logger.Error(ctx, "fallback clear failed", "collection", c, "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases both tiers. The Store cannot be reused afterwards.
func (s *Store) Close() error {
	if !s.ready.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.primary != nil {
		errs = append(errs, s.primary.Close())
	}
	if s.fallback != nil {
		errs = append(errs, s.fallback.Close())
	}
	return errors.Join(errs...)
}
