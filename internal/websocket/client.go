package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	sendBufferSize = 64
	pingInterval   = 30 * time.Second
)

// Client is one console view's connection.
type Client struct {
	id   string
	hub  *Hub
	conn *ws.Conn
	send chan []byte

	mu       sync.RWMutex
	entities map[string]bool
}

// NewClient creates a client subscribed to entities. No entities means every
// change.
func NewClient(hub *Hub, conn *ws.Conn, entities []string) *Client {
	c := &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	c.subscribe(entities)
	return c
}

// ParseEntities splits a comma-separated entity list, dropping blanks.
func ParseEntities(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func (c *Client) subscribe(entities []string) {
	var set map[string]bool
	if len(entities) > 0 {
		set = make(map[string]bool, len(entities))
		for _, e := range entities {
			set[e] = true
		}
	}
	c.mu.Lock()
	c.entities = set
	c.mu.Unlock()
}

// wants reports whether the client is subscribed to entity. Messages with no
// entity go to everyone.
func (c *Client) wants(entity string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entities == nil || entity == "" || c.entities[entity]
}

// Run registers the client, sends its hello, and pumps messages until the
// connection closes.
func (c *Client) Run(ctx context.Context) {
	if err := c.hub.hello(c); err != nil {
		c.hub.logger.Error("websocket hello", "client_id", c.id, "error", err)
		return
	}
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// subscribeCommand replaces the client's entity filter. An empty list
// subscribes to everything.
type subscribeCommand struct {
	Subscribe []string `json:"subscribe"`
}

// readPump applies subscribe commands and returns when the connection closes.
// Anything that is not a subscribe command is ignored.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var cmd subscribeCommand
		if json.Unmarshal(data, &cmd) != nil || cmd.Subscribe == nil {
			continue
		}
		c.subscribe(cmd.Subscribe)
		c.hub.logger.Debug("websocket subscription changed", "client_id", c.id, "entities", cmd.Subscribe)
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
