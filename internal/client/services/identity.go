package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/birdwatch/internal/common"
)

type identityQueue interface {
	RecordLastUsername(ctx context.Context, name string) error
	CurrentUsername(ctx context.Context) string
}

// IdentityService manages the username sightings and chat lines are posted
// under.
type IdentityService interface {
	SetUsername(ctx context.Context, name string) error
	Username(ctx context.Context) string
}

type identityService struct {
	queue identityQueue
}

func NewIdentityService(q identityQueue) IdentityService {
	return &identityService{queue: q}
}

func (s *identityService) SetUsername(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: username is empty", common.ErrValidation)
	}
	if err := s.queue.RecordLastUsername(ctx, name); err != nil {
		return fmt.Errorf("saving username: %w", err)
	}
	return nil
}

// Username falls back to the guest name when none was set.
func (s *identityService) Username(ctx context.Context) string {
	return s.queue.CurrentUsername(ctx)
}
