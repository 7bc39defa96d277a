package sightings

import (
	"context"

	"github.com/dmitrijs2005/birdwatch/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Sighting) (bool, error)
	List(ctx context.Context) ([]*models.Sighting, error)
	GetByID(ctx context.Context, id string) (*models.Sighting, error)
	UpdateIdentification(ctx context.Context, id, identification string) error
	UpdateImage(ctx context.Context, id, img string) error
}
