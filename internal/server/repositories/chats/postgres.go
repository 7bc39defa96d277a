// Package chats provides the PostgreSQL-backed chat history repository.
package chats

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/birdwatch/internal/dbx"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.ChatMessage) error {
	query := `
		INSERT INTO chats (sighting_id, username, text, date_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, m.Room, m.Username, m.Text, m.DateTime).Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByRoom returns the room's history in posting order.
func (r *PostgresRepository) ListByRoom(ctx context.Context, room string) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, sighting_id, username, text, date_time, created_at
		FROM chats WHERE sighting_id = $1
		ORDER BY date_time, id
	`
	rows, err := r.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("failed to select chats: %w", err)
	}
	defer rows.Close()

	var result []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.Room, &m.Username, &m.Text, &m.DateTime, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
