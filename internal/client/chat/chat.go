// Package chat binds the CLI to one sighting's chat room.
//
// While online, lines go straight to the live channel and the server's
// history is shown on join. While offline, lines are kept in the local
// transcript for the sync run to replay, and join shows that transcript.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/client/models"
	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/shared"
)

var (
	ErrNoRoom    = errors.New("not in a chat room")
	ErrEmptyText = errors.New("empty message")
)

// Channel is the live chat transport; *channel.Channel satisfies it.
type Channel interface {
	Emit(event string, env shared.Envelope) error
	Subscribe(event string, h func(shared.Envelope)) func()
}

type Queue interface {
	EnqueueChatMessage(ctx context.Context, room, author, text string, ts time.Time, synced bool) (int64, error)
	ListChatMessagesForRoom(ctx context.Context, room string) []models.PendingChatMessage
}

// History fetches a room's stored lines without the live channel;
// client.Client satisfies it.
type History interface {
	ChatHistory(ctx context.Context, room string) ([]models.ChatMessage, error)
}

// Line is one rendered transcript entry. Pending lines were kept locally
// and have not reached the server yet.
type Line struct {
	Room     string
	User     string
	Text     string
	DateTime time.Time
	Pending  bool
}

// Renderer is called for every line added to the transcript, in order.
// A nil Renderer discards lines.
type Renderer func(Line)

type Session struct {
	channel Channel
	queue   Queue
	history History
	online  func() bool
	render  Renderer
	logger  logging.Logger
	now     func() time.Time

	mu         sync.Mutex
	room       string
	user       string
	transcript []Line
	unsub      []func()
	// merge makes the next joined reply add only the lines the transcript
	// lacks, instead of starting it over.
	merge bool
}

// New returns a session that is not in any room. online reports the
// connectivity monitor's current state. history may be nil.
func New(ch Channel, q Queue, history History, online func() bool, render Renderer, logger logging.Logger) *Session {
	if render == nil {
		render = func(Line) {}
	}
	return &Session{
		channel: ch,
		queue:   q,
		history: history,
		online:  online,
		render:  render,
		logger:  logger.With("module", "chat"),
		now:     time.Now,
	}
}

// Room returns the joined room, or "" when none.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Transcript returns a copy of the lines shown since the last join.
func (s *Session) Transcript() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.transcript...)
}

// Join enters room as user, leaving any previous room first.
func (s *Session) Join(ctx context.Context, room, user string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return ErrNoRoom
	}
	if s.Room() != "" {
		s.Leave(ctx)
	}

	s.mu.Lock()
	s.room, s.user, s.transcript, s.merge = room, user, nil, false
	s.unsub = []func(){
		s.channel.Subscribe(common.EventJoined, s.onJoined),
		s.channel.Subscribe(common.EventChat, s.onChat),
	}
	s.mu.Unlock()

	if s.online() {
		err := s.channel.Emit(common.EventJoin, shared.Envelope{Room: room, User: user, DateTime: s.now().UTC()})
		if err == nil {
			return nil
		}
		s.logger.Warn(ctx, "join emit failed", "room", room, "error", err)
		if s.showStored(ctx, room) {
			return nil
		}
	}

	s.showLocal(ctx, room)
	return nil
}

// Rejoin enters the joined room again on a fresh live connection. The
// transcript is kept, so lines still waiting in the queue stay visible;
// history lines it does not already hold are appended when the reply
// arrives.
func (s *Session) Rejoin(ctx context.Context) error {
	s.mu.Lock()
	room, user := s.room, s.user
	s.merge = room != ""
	s.mu.Unlock()
	if room == "" {
		return ErrNoRoom
	}

	err := s.channel.Emit(common.EventJoin, shared.Envelope{Room: room, User: user, DateTime: s.now().UTC()})
	if err != nil {
		s.mu.Lock()
		s.merge = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// showStored renders the server's history fetched over HTTP. It reports
// false when that is unavailable too.
func (s *Session) showStored(ctx context.Context, room string) bool {
	if s.history == nil {
		return false
	}
	msgs, err := s.history.ChatHistory(ctx, room)
	if err != nil {
		s.logger.Warn(ctx, "chat history unavailable, showing local transcript", "room", room, "error", err)
		return false
	}
	for _, m := range msgs {
		s.append(Line{Room: room, User: m.Username, Text: m.Text, DateTime: m.DateTime})
	}
	return true
}

func (s *Session) showLocal(ctx context.Context, room string) {
	for _, m := range s.queue.ListChatMessagesForRoom(ctx, room) {
		s.append(Line{Room: m.Room, User: m.Username, Text: m.Text, DateTime: m.DateTime, Pending: !m.Synced})
	}
}

// Send posts text to the joined room and echoes it locally.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	s.mu.Lock()
	room, user := s.room, s.user
	s.mu.Unlock()
	if room == "" {
		return ErrNoRoom
	}

	ts := s.now().UTC()
	line := Line{Room: room, User: user, Text: text, DateTime: ts}

	if s.online() {
		err := s.channel.Emit(common.EventMessage, shared.Envelope{Room: room, User: user, Text: text, DateTime: ts})
		if err == nil {
			s.append(line)
			return nil
		}
		s.logger.Warn(ctx, "live send failed, message queued", "room", room, "error", err)
	}

	if _, err := s.queue.EnqueueChatMessage(ctx, room, user, text, ts, false); err != nil {
		s.logger.Error(ctx, "queueing chat message failed", "room", room, "error", err)
	}
	line.Pending = true
	s.append(line)
	return nil
}

// Leave exits the joined room. It is a no-op outside a room.
func (s *Session) Leave(ctx context.Context) {
	s.mu.Lock()
	room, user, unsub := s.room, s.user, s.unsub
	s.room, s.user, s.unsub, s.transcript, s.merge = "", "", nil, nil, false
	s.mu.Unlock()

	for _, u := range unsub {
		u()
	}
	if room == "" || !s.online() {
		return
	}
	if err := s.channel.Emit(common.EventLeave, shared.Envelope{Room: room, User: user, DateTime: s.now().UTC()}); err != nil {
		s.logger.Debug(ctx, "leave emit failed", "room", room, "error", err)
	}
}

type lineKey struct {
	user, text string
	at         int64
}

func keyOf(l Line) lineKey {
	return lineKey{user: l.User, text: l.Text, at: l.DateTime.UnixNano()}
}

func (s *Session) onJoined(env shared.Envelope) {
	s.mu.Lock()
	if env.Room != s.room {
		s.mu.Unlock()
		return
	}
	var held map[lineKey]int
	if s.merge {
		held = make(map[lineKey]int, len(s.transcript))
		for _, l := range s.transcript {
			held[keyOf(l)]++
		}
	}
	s.merge = false
	s.mu.Unlock()

	for _, h := range env.History {
		l := Line{Room: env.Room, User: h.User, Text: h.Text, DateTime: h.DateTime}
		if k := keyOf(l); held[k] > 0 {
			held[k]--
			continue
		}
		s.append(l)
	}
}

func (s *Session) onChat(env shared.Envelope) {
	if env.Room != s.Room() {
		return
	}
	s.append(Line{Room: env.Room, User: env.User, Text: env.Text, DateTime: env.DateTime})
}

func (s *Session) append(l Line) {
	s.mu.Lock()
	if l.Room != s.room {
		s.mu.Unlock()
		return
	}
	s.transcript = append(s.transcript, l)
	s.mu.Unlock()
	s.render(l)
}
