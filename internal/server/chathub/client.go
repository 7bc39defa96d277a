package chathub

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"github.com/dmitrijs2005/birdwatch/internal/server/metrics"
	"github.com/dmitrijs2005/birdwatch/internal/shared"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendQueue      = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one live connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	user string
}

func (c *Client) setUser(user string) {
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
}

// User is the last non-empty name the connection sent.
func (c *Client) User() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendQueue)}
	if !submit(h, h.register, c) {
		_ = conn.Close()
		return
	}

	go c.WritePump()
	c.ReadPump(context.WithoutCancel(r.Context()))
}

// ReadPump handles inbound frames until the connection fails, then
// unregisters the client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		submit(c.hub, c.hub.unregister, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn(ctx, "websocket read failed", "user", c.User(), "error", err)
			}
			return
		}

		var env shared.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.hub.logger.Warn(ctx, "invalid frame", "error", err)
			continue
		}
		if !c.handle(ctx, env) {
			return
		}
	}
}

// handle processes one frame. It returns false once the hub has stopped.
func (c *Client) handle(ctx context.Context, env shared.Envelope) bool {
	env.Room = strings.TrimSpace(env.Room)
	if env.User != "" {
		c.setUser(env.User)
	}

	switch env.Event {
	case common.EventJoin:
		if env.Room == "" {
			return true
		}
		if !submit(c.hub, c.hub.join, joinRequest{client: c, room: env.Room}) {
			return false
		}
		reply := shared.Envelope{Event: common.EventJoined, Room: env.Room, User: env.User, DateTime: time.Now().UTC()}
		history, err := c.hub.store.History(ctx, env.Room)
		if err != nil {
			c.hub.logger.Error(ctx, "chat history unavailable", "room", env.Room, "error", err)
		}
		for _, m := range history {
			reply.History = append(reply.History, shared.HistoryLine{User: m.Username, Text: m.Text, DateTime: m.DateTime})
		}
		return c.push(delivery{to: c}, reply)

	case common.EventMessage:
		if env.Room == "" || strings.TrimSpace(env.Text) == "" {
			return true
		}
		if env.DateTime.IsZero() {
			env.DateTime = time.Now().UTC()
		}
		user := env.User
		if m, err := c.hub.store.Create(ctx, env.Room, env.User, env.Text, env.DateTime); err != nil {
			c.hub.logger.Error(ctx, "chat message not stored", "room", env.Room, "error", err)
		} else {
			user = m.Username
			metrics.ChatMessages.Inc()
		}
		if user == "" {
			user = common.GuestUsername
		}
		out := shared.Envelope{Event: common.EventChat, Room: env.Room, User: user, Text: env.Text, DateTime: env.DateTime}
		return c.push(delivery{room: env.Room, except: c}, out)

	case common.EventLeave:
		return submit(c.hub, c.hub.leave, c)
	}

	c.hub.logger.Debug(ctx, "ignoring frame", "event", env.Event)
	return true
}

func (c *Client) push(d delivery, env shared.Envelope) bool {
	payload, err := json.Marshal(env)
	if err != nil {
		c.hub.logger.Error(context.Background(), "encode frame", "event", env.Event, "error", err)
		return true
	}
	d.payload = payload
	return submit(c.hub, c.hub.deliver, d)
}

// WritePump writes queued frames, one per websocket message, and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
