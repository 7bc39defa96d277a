// Package sightings provides the PostgreSQL-backed sighting repository.
package sightings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/dbx"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
)

// PostgresRepository implements sighting storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const columns = `id, client_ref, uploaded_by, identification, description, date_time,
	latitude, longitude, img, signature_digest, created_at`

// Create inserts s and reports whether a row was written. A sighting whose
// client_ref is already stored is not inserted again; s.ID and s.CreatedAt
// are then taken from the stored row.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Sighting) (bool, error) {
	query := `
		INSERT INTO sightings (id, client_ref, uploaded_by, identification, description, date_time,
			latitude, longitude, img, signature_digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (client_ref) DO NOTHING
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		s.ID, s.ClientRef, s.UploadedBy, s.Identification, s.Description, s.DateTime,
		s.Latitude, s.Longitude, s.Image, s.SignatureDigest,
	).Scan(&s.CreatedAt)

	if err == nil {
		return true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || s.ClientRef == nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM sightings WHERE client_ref = $1`, *s.ClientRef,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return false, nil
}

// List returns all sightings, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*models.Sighting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM sightings ORDER BY date_time DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select sightings: %w", err)
	}
	defer rows.Close()

	var result []*models.Sighting
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*models.Sighting, error) {
	var s models.Sighting
	err := row.Scan(&s.ID, &s.ClientRef, &s.UploadedBy, &s.Identification, &s.Description, &s.DateTime,
		&s.Latitude, &s.Longitude, &s.Image, &s.SignatureDigest, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Sighting, error) {
	s, err := scan(r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM sightings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) UpdateIdentification(ctx context.Context, id, identification string) error {
	return r.update(ctx, `UPDATE sightings SET identification = $2 WHERE id = $1`, id, identification)
}

func (r *PostgresRepository) UpdateImage(ctx context.Context, id, img string) error {
	return r.update(ctx, `UPDATE sightings SET img = $2 WHERE id = $1`, id, img)
}

func (r *PostgresRepository) update(ctx context.Context, query, id, value string) error {
	res, err := r.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
