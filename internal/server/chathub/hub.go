// Package chathub is the server side of the live chat channel. Each sighting
// has a room named by its id. A connection joins at most one room at a time;
// "message" frames are persisted and relayed to the other members of the
// room named in the frame, so queued lines replayed by a reconnecting device
// land in the right room even if it never joined it.
package chathub

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/server/metrics"
	"github.com/dmitrijs2005/birdwatch/internal/server/models"
)

// ChatStore persists room history.
type ChatStore interface {
	Create(ctx context.Context, room, user, text string, at time.Time) (*models.ChatMessage, error)
	History(ctx context.Context, room string) ([]*models.ChatMessage, error)
}

type joinRequest struct {
	client *Client
	room   string
}

// delivery targets either one client (to) or a room minus one sender.
type delivery struct {
	room    string
	to      *Client
	except  *Client
	payload []byte
}

// Hub owns room membership. All membership changes and sends run on the
// Run goroutine; Mu only guards reads from other goroutines.
type Hub struct {
	store  ChatStore
	logger logging.Logger

	Mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]string

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	leave      chan *Client
	deliver    chan delivery
	done       chan struct{}
}

func NewHub(store ChatStore, logger logging.Logger) *Hub {
	return &Hub{
		store:      store,
		logger:     logger.With("module", "chathub"),
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		leave:      make(chan *Client),
		deliver:    make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run processes hub operations until ctx is done, then closes every
// connection's send queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.Mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.Mu.Unlock()
			return

		case c := <-h.register:
			h.Mu.Lock()
			h.clients[c] = ""
			h.Mu.Unlock()
			metrics.LiveConnections.Inc()

		case c := <-h.unregister:
			h.Mu.Lock()
			h.drop(c)
			h.Mu.Unlock()

		case req := <-h.join:
			h.Mu.Lock()
			if _, ok := h.clients[req.client]; ok {
				h.removeFromRoom(req.client)
				if h.rooms[req.room] == nil {
					h.rooms[req.room] = make(map[*Client]struct{})
				}
				h.rooms[req.room][req.client] = struct{}{}
				h.clients[req.client] = req.room
			}
			h.Mu.Unlock()

		case c := <-h.leave:
			h.Mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.removeFromRoom(c)
				h.clients[c] = ""
			}
			h.Mu.Unlock()

		case d := <-h.deliver:
			h.Mu.Lock()
			if d.to != nil {
				if _, ok := h.clients[d.to]; ok {
					h.send(d.to, d.payload)
				}
			} else {
				for c := range h.rooms[d.room] {
					if c != d.except {
						h.send(c, d.payload)
					}
				}
			}
			h.Mu.Unlock()
		}
	}
}

// send queues payload for c, dropping c if its queue is full.
// Callers hold Mu.
func (h *Hub) send(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.logger.Warn(context.Background(), "dropping slow connection", "user", c.User())
		h.drop(c)
	}
}

// Callers hold Mu.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.removeFromRoom(c)
	delete(h.clients, c)
	close(c.send)
	metrics.LiveConnections.Dec()
}

// Callers hold Mu.
func (h *Hub) removeFromRoom(c *Client) {
	room := h.clients[c]
	if room == "" {
		return
	}
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// RoomSize reports how many connections are in room.
func (h *Hub) RoomSize(room string) int {
	h.Mu.RLock()
	defer h.Mu.RUnlock()
	return len(h.rooms[room])
}

// Connections reports how many connections are registered.
func (h *Hub) Connections() int {
	h.Mu.RLock()
	defer h.Mu.RUnlock()
	return len(h.clients)
}

// submit hands an operation to Run. It reports false once Run has stopped.
func submit[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.done:
		return false
	}
}
