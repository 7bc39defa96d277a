package chats

import (
	"context"

	"github.com/dmitrijs2005/birdwatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	ListByRoom(ctx context.Context, room string) ([]*models.ChatMessage, error)
}
