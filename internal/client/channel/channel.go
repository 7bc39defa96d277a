// Package channel is the client side of the live chat channel: a websocket
// carrying shared.Envelope frames. Emit is fire-and-forget; nothing is
// acknowledged by the server.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/birdwatch/internal/logging"
	"github.com/dmitrijs2005/birdwatch/internal/shared"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// ErrNotConnected is returned by Emit while the channel is down.
var ErrNotConnected = errors.New("live channel not connected")

// Handler receives inbound frames on the channel's read goroutine.
// It must not call Disconnect.
type Handler = func(shared.Envelope)

type Channel struct {
	url    string
	dialer *websocket.Dialer
	logger logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	wg   sync.WaitGroup

	handlersMu sync.RWMutex
	handlers   map[string]map[int]Handler
	nextID     int
}

func New(url string, logger logging.Logger) *Channel {
	return &Channel{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger:   logger.With("module", "channel"),
		handlers: make(map[string]map[int]Handler),
	}
}

// Connect dials the server. It is a no-op while already connected.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)

	c.logger.Info(ctx, "live channel connected", "url", c.url)
	return nil
}

// Disconnect closes the connection and waits for the reader to stop.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	return err
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Emit sends one frame with the given event name.
func (c *Channel) Emit(event string, env shared.Envelope) error {
	env.Event = event
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Subscribe registers h for event and returns a func that removes it.
func (c *Channel) Subscribe(event string, h Handler) func() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = h

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		delete(c.handlers[event], id)
	}
}

func (c *Channel) dispatch(env shared.Envelope) {
	c.handlersMu.RLock()
	hs := make([]Handler, 0, len(c.handlers[env.Event]))
	for _, h := range c.handlers[env.Event] {
		hs = append(hs, h)
	}
	c.handlersMu.RUnlock()

	for _, h := range hs {
		h(env)
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	ctx := context.Background()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(ctx, "live channel read stopped", "error", err)
			}
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}

		var env shared.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn(ctx, "dropping malformed frame", "error", err)
			continue
		}
		c.dispatch(env)
	}
}
