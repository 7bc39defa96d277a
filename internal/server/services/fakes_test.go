package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/dbx"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/chats"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/sightings"
)

// -------- test fakes --------

type fakeSightingsRepo struct {
	sightings.Repository
	mu        sync.Mutex
	byID      map[string]*models.Sighting
	byRef     map[string]string
	createErr error
	updates   []string
}

func newFakeSightingsRepo() *fakeSightingsRepo {
	return &fakeSightingsRepo{byID: map[string]*models.Sighting{}, byRef: map[string]string{}}
}

func (f *fakeSightingsRepo) Create(ctx context.Context, s *models.Sighting) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	if s.ClientRef != nil {
		if id, ok := f.byRef[*s.ClientRef]; ok {
			s.ID = id
			return false, nil
		}
		f.byRef[*s.ClientRef] = s.ID
	}
	cp := *s
	f.byID[s.ID] = &cp
	return true, nil
}

func (f *fakeSightingsRepo) List(ctx context.Context) ([]*models.Sighting, error) {
	var out []*models.Sighting
	for _, s := range f.byID {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSightingsRepo) GetByID(ctx context.Context, id string) (*models.Sighting, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSightingsRepo) UpdateIdentification(ctx context.Context, id, identification string) error {
	f.byID[id].Identification = identification
	f.updates = append(f.updates, "identification")
	return nil
}

func (f *fakeSightingsRepo) UpdateImage(ctx context.Context, id, img string) error {
	f.byID[id].Image = img
	f.updates = append(f.updates, "image")
	return nil
}

type fakeChatsRepo struct {
	chats.Repository
	created []*models.ChatMessage
	err     error
}

func (f *fakeChatsRepo) Create(ctx context.Context, m *models.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	m.ID = int64(len(f.created) + 1)
	f.created = append(f.created, m)
	return nil
}

func (f *fakeChatsRepo) ListByRoom(ctx context.Context, room string) ([]*models.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.ChatMessage
	for _, m := range f.created {
		if m.Room == room {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	s *fakeSightingsRepo
	c *fakeChatsRepo
}

func (m *fakeRepoManager) Sightings(db dbx.DBTX) sightings.Repository { return m.s }
func (m *fakeRepoManager) Chats(db dbx.DBTX) chats.Repository         { return m.c }

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}
