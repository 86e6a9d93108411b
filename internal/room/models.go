package room

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"squadpick/internal/catalog"
)

// Phase is the coarse lifecycle stage of a room. Transitions are one-way:
// Waiting -> Selecting -> Completed.
type Phase string

const (
	PhaseWaiting   Phase = "WAITING"
	PhaseSelecting Phase = "SELECTING"
	PhaseCompleted Phase = "COMPLETED"
)

// Member is a participant in a room, distinct from their transient connection.
// UserID is the opaque connection handle of the member's current connection.
type Member struct {
	UserID      string           `json:"user_id"`
	DisplayName string           `json:"display_name"`
	IsOwner     bool             `json:"is_owner"`
	Team        []catalog.Player `json:"team"`
}

// Room is an isolated selection session with its own members, pool and turn
// state. It is always mutated as a whole snapshot; partial updates are not
// permitted anywhere in the codebase.
type Room struct {
	ID          string           `json:"id"`
	Members     []Member         `json:"members"`
	Pool        []catalog.Player `json:"pool"`
	TurnOrder   []string         `json:"turn_order"` // member user IDs, fixed at selection start
	TurnCursor  int              `json:"turn_cursor"`
	Phase       Phase            `json:"phase"`
	TargetPicks int              `json:"target_picks"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Summary is the listing view of a room.
type Summary struct {
	ID          string    `json:"id"`
	MemberCount int       `json:"member_count"`
	Phase       Phase     `json:"phase"`
	CreatedAt   time.Time `json:"created_at"`
}

// Standing is one row of a room's leaderboard.
type Standing struct {
	DisplayName string `json:"display_name"`
	IsOwner     bool   `json:"is_owner"`
	TeamSize    int    `json:"team_size"`
	TeamScore   int    `json:"team_score"`
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// IDLength is the length of generated room codes.
const IDLength = 6

// NewID generates a short human-shareable room code. Callers must
// collision-check the result against the store before use.
func NewID(rng *rand.Rand) string {
	var b strings.Builder
	for i := 0; i < IDLength; i++ {
		b.WriteByte(idAlphabet[rng.Intn(len(idAlphabet))])
	}
	return b.String()
}

// New creates a room in the Waiting phase with the owner as its only member.
func New(id, ownerID, ownerName string, pool []catalog.Player, targetPicks int, now time.Time) (*Room, error) {
	if strings.TrimSpace(ownerName) == "" {
		return nil, ErrValidation
	}
	return &Room{
		ID: id,
		Members: []Member{{
			UserID:      ownerID,
			DisplayName: ownerName,
			IsOwner:     true,
			Team:        []catalog.Player{},
		}},
		Pool:        pool,
		TargetPicks: targetPicks,
		Phase:       PhaseWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Member returns the member with the given user ID.
func (r *Room) Member(userID string) *Member {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

func (r *Room) memberByName(name string) *Member {
	for i := range r.Members {
		if strings.EqualFold(r.Members[i].DisplayName, name) {
			return &r.Members[i]
		}
	}
	return nil
}

// Owner returns the room owner. Every non-empty room has exactly one.
func (r *Room) Owner() *Member {
	for i := range r.Members {
		if r.Members[i].IsOwner {
			return &r.Members[i]
		}
	}
	return nil
}

// CurrentHolder returns the member whose turn is active, or nil when the room
// is not in the Selecting phase.
func (r *Room) CurrentHolder() *Member {
	if r.Phase != PhaseSelecting || len(r.TurnOrder) == 0 {
		return nil
	}
	return r.Member(r.TurnOrder[r.TurnCursor])
}

// Summary returns the listing view of the room.
func (r *Room) Summary() Summary {
	return Summary{
		ID:          r.ID,
		MemberCount: len(r.Members),
		Phase:       r.Phase,
		CreatedAt:   r.CreatedAt,
	}
}

// Standings returns the leaderboard, best total rating first.
func (r *Room) Standings() []Standing {
	out := make([]Standing, 0, len(r.Members))
	for _, m := range r.Members {
		score := 0
		for _, p := range m.Team {
			score += p.Rating
		}
		out = append(out, Standing{
			DisplayName: m.DisplayName,
			IsOwner:     m.IsOwner,
			TeamSize:    len(m.Team),
			TeamScore:   score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TeamScore > out[j].TeamScore })
	return out
}
