package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBufferSize = 64
)

// client is one websocket connection. Everything it is sent goes through the send channel,
// writePump is the only writer on conn.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// Hub tracks connections, the game channels they are subscribed to and which player is on which connection.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	clients  map[string]*client
	channels map[string]map[string]struct{}
	players  map[string]string
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger.With("component", "hub"),
		clients:  make(map[string]*client),
		channels: make(map[string]map[string]struct{}),
		players:  make(map[string]string),
	}
}

func (that *Hub) register(c *client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.clients[c.id] = c
}

// unregister - drops the connection from every channel and player binding. Games are not touched.
func (that *Hub) unregister(connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	c, ok := that.clients[connID]
	if !ok {
		return
	}

	delete(that.clients, connID)
	close(c.send)

	for gameID, members := range that.channels {
		delete(members, connID)
		if len(members) == 0 {
			delete(that.channels, gameID)
		}
	}

	for playerID, boundConn := range that.players {
		if boundConn == connID {
			delete(that.players, playerID)
		}
	}
}

// Send - queues msg for a single connection.
func (that *Hub) Send(connID string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	c, ok := that.clients[connID]
	if !ok {
		return fmt.Errorf("connection %s is gone", connID)
	}

	that.enqueue(c, data)

	return nil
}

// Publish - queues msg for every connection subscribed to gameID.
func (that *Hub) Publish(gameID string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for connID := range that.channels[gameID] {
		if c, ok := that.clients[connID]; ok {
			that.enqueue(c, data)
		}
	}

	return nil
}

// Broadcast - queues msg for every connection except the given ones.
func (that *Hub) Broadcast(msg any, except ...string) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	skip := make(map[string]struct{}, len(except))
	for _, connID := range except {
		skip[connID] = struct{}{}
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	for connID, c := range that.clients {
		if _, ok := skip[connID]; ok {
			continue
		}
		that.enqueue(c, data)
	}

	return nil
}

// enqueue - never blocks, a connection that can't keep up loses the message. Callers hold mu.
func (that *Hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		that.logger.Warn("send buffer full, dropping message", "conn_id", c.id)
	}
}

func (that *Hub) Subscribe(connID, gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[connID]; !ok {
		return
	}

	members, ok := that.channels[gameID]
	if !ok {
		members = make(map[string]struct{})
		that.channels[gameID] = members
	}
	members[connID] = struct{}{}
}

func (that *Hub) Unsubscribe(connID, gameID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	members, ok := that.channels[gameID]
	if !ok {
		return
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(that.channels, gameID)
	}
}

// BindPlayer - remembers that playerID is reachable on connID. A later binding wins.
func (that *Hub) BindPlayer(playerID, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.clients[connID]; !ok {
		return
	}

	that.players[playerID] = connID
}

func (that *Hub) ConnForPlayer(playerID string) (string, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	connID, ok := that.players[playerID]
	return connID, ok
}

func (that *Hub) subscribers(gameID string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.channels[gameID])
}

func (that *Hub) size() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.clients)
}

// CloseAll - closes every connection, used on shutdown and after a fatal handler fault.
func (that *Hub) CloseAll() {
	that.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(that.clients))
	for _, c := range that.clients {
		if c.conn != nil {
			conns = append(conns, c.conn)
		}
	}
	that.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// writePump pumps messages from the hub to the websocket connection, one JSON message per frame.
func (that *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = that.conn.Close()
	}()

	for {
		select {
		case message, ok := <-that.send:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := that.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
