package client

import (
	"context"

	"github.com/dmitrijs2005/birdwatch/internal/client/models"
)

// Client is the remote service contract used by the CLI and the sync run.
type Client interface {
	Ping(ctx context.Context) error
	SyncSightings(ctx context.Context, batch []models.PendingSighting) (*models.SyncResult, error)
	AddSighting(ctx context.Context, s models.PendingSighting) (*models.Sighting, error)
	ListSightings(ctx context.Context) ([]models.Sighting, error)
	GetSighting(ctx context.Context, id string) (*models.SightingDetails, error)
	ChatHistory(ctx context.Context, room string) ([]models.ChatMessage, error)
	UpdateIdentification(ctx context.Context, id, identification string, signatures []string) error
	UpdateImage(ctx context.Context, id, image string, signatures []string) error
	RequestImageUpload(ctx context.Context) (*models.UploadTicket, error)
	Species(ctx context.Context) ([]string, error)
}
