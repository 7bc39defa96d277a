package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
	"github.com/dmitrijs2005/birdwatch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/birdwatch/internal/server/validation"
)

type chatInput struct {
	Room     string `json:"room" validate:"required,max=64"`
	Username string `json:"user" validate:"max=64"`
	Text     string `json:"text" validate:"required,max=2000"`
}

// ChatService persists and replays the chat rooms attached to sightings.
// A room is named by its sighting id.
type ChatService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewChatService(db *sql.DB, rm repomanager.RepositoryManager) *ChatService {
	return &ChatService{db: db, repomanager: rm}
}

// Create stores one line. A zero at means "now"; an empty user is recorded
// as the guest name.
func (s *ChatService) Create(ctx context.Context, room, user, text string, at time.Time) (*models.ChatMessage, error) {
	in := chatInput{
		Room:     strings.TrimSpace(room),
		Username: strings.TrimSpace(user),
		Text:     strings.TrimSpace(text),
	}
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	if in.Username == "" {
		in.Username = common.GuestUsername
	}
	if at.IsZero() {
		at = now()
	}

	m := &models.ChatMessage{Room: in.Room, Username: in.Username, Text: in.Text, DateTime: at.UTC()}
	if err := s.repomanager.Chats(s.db).Create(ctx, m); err != nil {
		return nil, fmt.Errorf("error storing chat message: %w", err)
	}
	return m, nil
}

// History returns a room's lines in the order they were written.
func (s *ChatService) History(ctx context.Context, room string) ([]*models.ChatMessage, error) {
	list, err := s.repomanager.Chats(s.db).ListByRoom(ctx, strings.TrimSpace(room))
	if err != nil {
		return nil, fmt.Errorf("error reading chat history: %w", err)
	}
	if list == nil {
		list = []*models.ChatMessage{}
	}
	return list, nil
}
