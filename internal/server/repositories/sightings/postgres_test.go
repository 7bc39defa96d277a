package sightings

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var (
	seen    = time.Date(2024, 3, 10, 8, 15, 0, 0, time.UTC)
	created = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
)

func sample(ref string) *models.Sighting {
	return &models.Sighting{
		ID: "11111111-1111-1111-1111-111111111111", ClientRef: &ref, UploadedBy: "alice",
		Identification: "Robin", DateTime: seen, Latitude: 51.5, Longitude: -0.12,
		Image: "default.jpeg", SignatureDigest: "d1",
	}
}

func TestCreate_Inserted(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	s := sample("ref-1")

	mock.ExpectQuery(`INSERT INTO sightings .* ON CONFLICT \(client_ref\) DO NOTHING\s+RETURNING created_at`).
		WithArgs(s.ID, "ref-1", "alice", "Robin", "", seen, 51.5, -0.12, "default.jpeg", "d1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	inserted, err := repo.Create(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, created, s.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateClientRef(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	s := sample("ref-1")

	mock.ExpectQuery(`INSERT INTO sightings`).WillReturnRows(sqlmock.NewRows([]string{"created_at"}))
	mock.ExpectQuery(`SELECT id, created_at FROM sightings WHERE client_ref = \$1`).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("existing-id", created))

	inserted, err := repo.Create(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "existing-id", s.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO sightings`).WillReturnError(errors.New("db is down"))

	_, err := repo.Create(context.Background(), sample("ref-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is down")
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	ref := "r"
	cols := []string{"id", "client_ref", "uploaded_by", "identification", "description", "date_time",
		"latitude", "longitude", "img", "signature_digest", "created_at"}

	mock.ExpectQuery(`SELECT .* FROM sightings ORDER BY date_time DESC`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("b", ref, "bob", "Wren", "", seen, 1.0, 2.0, "x.jpg", "d", created).
			AddRow("a", nil, "alice", "", "hedge", seen, 3.0, 4.0, "default.jpeg", "", created))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	require.NotNil(t, list[0].ClientRef)
	assert.Equal(t, "r", *list[0].ClientRef)
	assert.Nil(t, list[1].ClientRef)
	assert.Equal(t, "hedge", list[1].Description)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM sightings WHERE id = \$1`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateIdentification(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE sightings SET identification = \$2 WHERE id = \$1`).
		WithArgs("a", "Blackbird").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE sightings SET identification`).
		WithArgs("gone", "Blackbird").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE sightings SET img = \$2 WHERE id = \$1`).
		WithArgs("a", "img/k.jpg").WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	require.NoError(t, repo.UpdateIdentification(context.Background(), "a", "Blackbird"))
	assert.ErrorIs(t, repo.UpdateIdentification(context.Background(), "gone", "Blackbird"), common.ErrorNotFound)

	err := repo.UpdateImage(context.Background(), "a", "img/k.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected error")
	require.NoError(t, mock.ExpectationsWereMet())
}
