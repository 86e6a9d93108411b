package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"squadpick/internal/app"
	"squadpick/internal/room"
)

// Command types accepted over the websocket.
const (
	CmdCreateRoom     = "createRoom"
	CmdJoinRoom       = "joinRoom"
	CmdStartSelection = "startSelection"
	CmdPick           = "pick"
	CmdGetRoomState   = "getRoomState"
	CmdLeaveRoom      = "leaveRoom"
	CmdResync         = "resync"
)

// RoomApp is what the gateway needs from the room application layer.
type RoomApp interface {
	CreateRoom(ctx context.Context, ownerID, ownerName string) (*room.Room, error)
	JoinRoom(ctx context.Context, roomID, userID, displayName string) (*room.Room, error)
	StartSelection(ctx context.Context, roomID, requesterID string) (*room.Room, error)
	Pick(ctx context.Context, roomID, requesterID string, itemID int) (*room.Room, *room.PickOutcome, error)
	Leave(ctx context.Context, roomID, userID string) (*room.RemoveOutcome, error)
	GetRoom(ctx context.Context, roomID string) (*room.Room, error)
	ListRooms(ctx context.Context) ([]room.Summary, error)
	GetStats(ctx context.Context, roomID string) (*app.Stats, error)
}

// Command is the inbound websocket envelope.
type Command struct {
	RequestID string          `json:"request_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

type commandData struct {
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
	ItemID      int    `json:"item_id"`
}

// Response is the reply sent only to the requesting connection. Every failed
// command carries an explicit error message; nothing fails silently.
type Response struct {
	RequestID string `json:"request_id"`
	Type      string `json:"type"`
	Command   string `json:"command"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// CommandRouter translates inbound commands 1:1 into app calls and replies to
// the requester. Broadcast traffic flows separately through the app's event
// sinks.
type CommandRouter struct {
	app RoomApp
	cm  *ConnectionManager
}

// NewCommandRouter creates a router bound to the app and connection manager.
func NewCommandRouter(roomApp RoomApp, cm *ConnectionManager) *CommandRouter {
	return &CommandRouter{app: roomApp, cm: cm}
}

// Dispatch parses and executes one inbound frame from a connection.
func (rt *CommandRouter) Dispatch(conn *Connection, raw []byte) {
	ctx := context.Background()

	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		rt.reply(conn, Response{Type: "response", OK: false, Error: "malformed command"})
		return
	}

	var data commandData
	if len(cmd.Data) > 0 {
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			rt.fail(conn, cmd, room.ErrValidation)
			return
		}
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("command", cmd.Type).
		Str("room_id", data.RoomID).
		Msg("dispatching command")

	switch cmd.Type {
	case CmdCreateRoom:
		rm, err := rt.app.CreateRoom(ctx, conn.ID, data.DisplayName)
		if err != nil {
			rt.fail(conn, cmd, err)
			return
		}
		rt.cm.joinRoomPool(conn, rm.ID)
		rt.ok(conn, cmd, map[string]any{"room": rm})

	case CmdJoinRoom:
		rm, err := rt.app.JoinRoom(ctx, data.RoomID, conn.ID, data.DisplayName)
		if err != nil {
			rt.fail(conn, cmd, err)
			return
		}
		rt.cm.joinRoomPool(conn, rm.ID)
		rt.ok(conn, cmd, map[string]any{"room": rm})

	case CmdStartSelection:
		rm, err := rt.app.StartSelection(ctx, rt.roomID(conn, data), conn.ID)
		if err != nil {
			rt.fail(conn, cmd, err)
			return
		}
		rt.ok(conn, cmd, map[string]any{"room": rm})

	case CmdPick:
		rm, out, err := rt.app.Pick(ctx, rt.roomID(conn, data), conn.ID, data.ItemID)
		if err != nil {
			rt.fail(conn, cmd, err)
			return
		}
		rt.ok(conn, cmd, map[string]any{
			"item":      out.Item,
			"completed": out.Completed,
			"room":      rm,
		})

	case CmdGetRoomState:
		rm, err := rt.app.GetRoom(ctx, rt.roomID(conn, data))
		if err != nil {
			rt.fail(conn, cmd, err)
			return
		}
		rt.ok(conn, cmd, map[string]any{"room": rm})

	case CmdLeaveRoom:
		roomID := rt.roomID(conn, data)
		out, err := rt.app.Leave(ctx, roomID, conn.ID)
		if err != nil {
			rt.fail(conn, cmd, err)
			return
		}
		rt.cm.leaveRoomPool(conn)
		rt.ok(conn, cmd, map[string]any{"room_empty": out.RoomEmpty})

	case CmdResync:
		// Full current snapshot, never a delta; also re-subscribes the
		// connection after a transport hiccup.
		roomID := rt.roomID(conn, data)
		rm, err := rt.app.GetRoom(ctx, roomID)
		if err != nil {
			rt.fail(conn, cmd, err)
			return
		}
		if conn.RoomID() != roomID && rm.Member(conn.ID) != nil {
			rt.cm.joinRoomPool(conn, roomID)
		}
		rt.ok(conn, cmd, map[string]any{"room": rm})

	default:
		rt.reply(conn, Response{
			RequestID: cmd.RequestID,
			Type:      "response",
			Command:   cmd.Type,
			OK:        false,
			Error:     "unknown command",
		})
	}
}

// HandleDisconnect removes the connection's member from its room, if any.
func (rt *CommandRouter) HandleDisconnect(conn *Connection) {
	roomID := conn.RoomID()
	if roomID == "" {
		return
	}

	if _, err := rt.app.Leave(context.Background(), roomID, conn.ID); err != nil &&
		!errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, room.ErrValidation) {
		log.Error().
			Err(err).
			Str("connection_id", conn.ID).
			Str("room_id", roomID).
			Msg("failed to remove disconnected member")
	}
}

func (rt *CommandRouter) roomID(conn *Connection, data commandData) string {
	if data.RoomID != "" {
		return data.RoomID
	}
	return conn.RoomID()
}

func (rt *CommandRouter) ok(conn *Connection, cmd Command, data any) {
	rt.reply(conn, Response{
		RequestID: cmd.RequestID,
		Type:      "response",
		Command:   cmd.Type,
		OK:        true,
		Data:      data,
	})
}

func (rt *CommandRouter) fail(conn *Connection, cmd Command, err error) {
	rt.reply(conn, Response{
		RequestID: cmd.RequestID,
		Type:      "response",
		Command:   cmd.Type,
		OK:        false,
		Error:     userMessage(err),
	})
}

func (rt *CommandRouter) reply(conn *Connection, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to marshal response")
		return
	}
	conn.enqueue(data)
}

// userMessage maps an app error to the message shown to the requester.
// ErrStaleTimer never appears here: the app swallows it before it can reach a
// user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrStorageUnavailable):
		return "service temporarily unavailable"
	case errors.Is(err, room.ErrValidation):
		return "invalid request"
	case err != nil:
		return err.Error()
	}
	return ""
}
