package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"squadpick/internal/catalog"
	"squadpick/internal/room"
)

// Type identifies a room event.
type Type string

const (
	TypeRoomStateChanged Type = "room-state-changed"
	TypeMemberJoined     Type = "member-joined"
	TypeMemberLeft       Type = "member-left"
	TypeSelectionStarted Type = "selection-started"
	TypeTurnChanged      Type = "turn-changed"
	TypeItemPicked       Type = "item-picked"
	TypeAutoPicked       Type = "auto-picked"
	TypeRoomCompleted    Type = "room-completed"
	TypeServiceDegraded  Type = "service-degraded"
)

// Event is the envelope broadcast to every connected member of a room. Within
// one room, events are delivered in the order the mutations were applied.
type Event struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New builds an event envelope with a fresh ID and the payload marshaled in.
func New(roomID string, typ Type, now time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      typ,
		Timestamp: now,
		Data:      data,
	}, nil
}

// MemberView is the wire shape of a member inside event payloads. The
// connection handle stays server-side.
type MemberView struct {
	DisplayName string `json:"display_name"`
	IsOwner     bool   `json:"is_owner"`
	TeamSize    int    `json:"team_size"`
}

// ViewOf converts a member to its wire shape.
func ViewOf(m room.Member) MemberView {
	return MemberView{
		DisplayName: m.DisplayName,
		IsOwner:     m.IsOwner,
		TeamSize:    len(m.Team),
	}
}

// ViewsOf converts a member list to wire shapes, preserving order.
func ViewsOf(members []room.Member) []MemberView {
	out := make([]MemberView, len(members))
	for i, m := range members {
		out[i] = ViewOf(m)
	}
	return out
}

// RoomStatePayload carries a full room snapshot.
type RoomStatePayload struct {
	Room *room.Room `json:"room"`
}

// MemberJoinedPayload announces a join or a reconnect.
type MemberJoinedPayload struct {
	Member      MemberView `json:"member"`
	Reconnected bool       `json:"reconnected"`
	MemberCount int        `json:"member_count"`
}

// MemberLeftPayload announces a departure, including any ownership promotion.
type MemberLeftPayload struct {
	DisplayName string      `json:"display_name"`
	NewOwner    *MemberView `json:"new_owner,omitempty"`
	MemberCount int         `json:"member_count"`
}

// SelectionStartedPayload carries the fixed turn order and the initial pool.
type SelectionStartedPayload struct {
	TurnOrder     []MemberView     `json:"turn_order"`
	CurrentHolder MemberView       `json:"current_holder"`
	Pool          []catalog.Player `json:"pool"`
	DeadlineSec   int              `json:"deadline_sec"`
}

// TurnChangedPayload announces the new holder and their deadline.
type TurnChangedPayload struct {
	Holder      MemberView `json:"holder"`
	Cursor      int        `json:"cursor"`
	DeadlineSec int        `json:"deadline_sec"`
}

// ItemPickedPayload announces a pick (user-driven or automatic).
type ItemPickedPayload struct {
	Item        catalog.Player  `json:"item"`
	PickedBy    string          `json:"picked_by"`
	Auto        bool            `json:"auto"`
	Next        *MemberView     `json:"next,omitempty"`
	PoolSize    int             `json:"pool_size"`
	Standings   []room.Standing `json:"standings"`
	DeadlineSec int             `json:"deadline_sec,omitempty"`
}

// RoomCompletedPayload carries the final standings.
type RoomCompletedPayload struct {
	Standings []room.Standing `json:"standings"`
	Message   string          `json:"message"`
}

// ServiceDegradedPayload signals that room storage is unreachable and no
// further mutations can succeed.
type ServiceDegradedPayload struct {
	Message string `json:"message"`
}
