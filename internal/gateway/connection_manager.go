package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"squadpick/internal/events"
)

// ConnectionManager owns the websocket connections and the per-room fan-out.
// It implements events.Publisher: the app pushes each room event here and a
// single goroutine delivers them, so members always observe events in the
// order the mutations were applied.
type ConnectionManager struct {
	roomConns map[string]map[*Connection]bool
	mu        sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	router   *CommandRouter

	broadcastCh chan events.Event
}

// Connection represents a single websocket client. Its ID doubles as the
// member's opaque connection handle inside rooms.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	roomMu sync.Mutex
	roomID string

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a manager. Attach the command router with
// SetRouter before serving connections.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConns: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan events.Event, 1024),
	}
}

// SetRouter wires in the inbound command router.
func (cm *ConnectionManager) SetRouter(r *CommandRouter) {
	cm.router = r
}

// Start processes queued events until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case evt := <-cm.broadcastCh:
			cm.deliver(evt)
		}
	}
}

// Publish implements events.Publisher. It blocks rather than drops when the
// queue is full: every connected member must receive every room event.
func (cm *ConnectionManager) Publish(ctx context.Context, evt events.Event) error {
	select {
	case cm.broadcastCh <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket and starts the
// connection's pumps.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Msg("websocket connection established")
	return nil
}

// joinRoomPool subscribes the connection to a room's events.
func (cm *ConnectionManager) joinRoomPool(conn *Connection, roomID string) {
	cm.mu.Lock()
	if cm.roomConns[roomID] == nil {
		cm.roomConns[roomID] = make(map[*Connection]bool)
	}
	cm.roomConns[roomID][conn] = true
	cm.mu.Unlock()

	conn.setRoomID(roomID)
	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", roomID).
		Msg("connection subscribed to room")
}

// leaveRoomPool unsubscribes the connection from its room's events.
func (cm *ConnectionManager) leaveRoomPool(conn *Connection) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}

	cm.mu.Lock()
	if conns, ok := cm.roomConns[roomID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(cm.roomConns, roomID)
		}
	}
	cm.mu.Unlock()

	conn.setRoomID("")
}

func (cm *ConnectionManager) deliver(evt events.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	cm.mu.RLock()
	var targets []*Connection
	if evt.RoomID == "" {
		// Global signal (e.g. service degraded): every connection gets it.
		for _, conns := range cm.roomConns {
			for conn := range conns {
				targets = append(targets, conn)
			}
		}
	} else {
		for conn := range cm.roomConns[evt.RoomID] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Slow or dead client: drop the connection, not the event stream.
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.leaveRoomPool(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(evt.Type)).
		Str("room_id", evt.RoomID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns counts of active connections per room.
func (cm *ConnectionManager) Stats() (total int, rooms map[string]int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	rooms = make(map[string]int, len(cm.roomConns))
	for roomID, conns := range cm.roomConns {
		rooms[roomID] = len(conns)
		total += len(conns)
	}
	return total, rooms
}

func (c *Connection) setRoomID(roomID string) {
	c.roomMu.Lock()
	c.roomID = roomID
	c.roomMu.Unlock()
}

// RoomID returns the room this connection is currently a member of, if any.
func (c *Connection) RoomID() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.roomID
}

// enqueue queues an outbound frame for the write pump.
func (c *Connection) enqueue(data []byte) {
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping frame")
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.router.HandleDisconnect(c)
		c.Manager.leaveRoomPool(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		// Commands run on the reader goroutine so a connection's commands
		// apply in the order they were sent.
		c.Manager.router.Dispatch(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
