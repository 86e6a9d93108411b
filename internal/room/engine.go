package room

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"squadpick/internal/catalog"
)

// PickOutcome describes a successfully applied pick.
type PickOutcome struct {
	Item      catalog.Player
	Cursor    int
	Next      *Member // nil when the room completed
	Completed bool
	Auto      bool
}

// RemoveOutcome describes the effects of removing a member.
type RemoveOutcome struct {
	Removed    Member
	RoomEmpty  bool    // no members remain; caller deletes the room
	EndedEarly bool    // one member left mid-selection; room was completed
	NewOwner   *Member // set when ownership was promoted
	TurnPassed bool    // the current holder changed without a pick
	Next       *Member // new holder when selection continues
	Completed  bool    // phase became Completed as a result
}

// AddMember appends a new member, or treats a case-insensitive display-name
// match as a reconnect and updates that member's connection handle instead.
// Returns the affected member and whether it was a reconnect.
func (r *Room) AddMember(userID, displayName string, maxMembers int, now time.Time) (*Member, bool, error) {
	if userID == "" || strings.TrimSpace(displayName) == "" {
		return nil, false, ErrValidation
	}
	switch r.Phase {
	case PhaseSelecting:
		return nil, false, ErrSelectionInProgress
	case PhaseCompleted:
		return nil, false, ErrRoomCompleted
	}

	if existing := r.memberByName(displayName); existing != nil {
		existing.UserID = userID
		r.UpdatedAt = now
		return existing, true, nil
	}

	if len(r.Members) >= maxMembers {
		return nil, false, ErrRoomFull
	}
	r.Members = append(r.Members, Member{
		UserID:      userID,
		DisplayName: displayName,
		Team:        []catalog.Player{},
	})
	m := &r.Members[len(r.Members)-1]
	r.UpdatedAt = now
	return m, false, nil
}

// StartSelection fixes the turn order (owner first, rest shuffled) and moves
// the room into the Selecting phase.
func (r *Room) StartSelection(requesterID string, rng *rand.Rand, now time.Time) error {
	owner := r.Owner()
	if owner == nil || owner.UserID != requesterID {
		return ErrNotOwner
	}
	if len(r.Members) < 2 {
		return ErrInsufficientMembers
	}
	if r.Phase != PhaseWaiting {
		return ErrAlreadyStarted
	}

	others := make([]string, 0, len(r.Members)-1)
	for _, m := range r.Members {
		if !m.IsOwner {
			others = append(others, m.UserID)
		}
	}
	rng.Shuffle(len(others), func(i, j int) {
		others[i], others[j] = others[j], others[i]
	})

	r.TurnOrder = append([]string{owner.UserID}, others...)
	r.TurnCursor = 0
	r.Phase = PhaseSelecting
	r.UpdatedAt = now
	return nil
}

// Pick validates and applies a pick by the current turn holder: the item moves
// from the pool to the requester's team and the cursor advances to the next
// member below quota. The room completes when every member reached quota or
// the pool ran dry. A failed pick never mutates the room.
func (r *Room) Pick(requesterID string, itemID int, now time.Time) (*PickOutcome, error) {
	if r.Phase != PhaseSelecting {
		return nil, ErrNotActive
	}
	if r.TurnOrder[r.TurnCursor] != requesterID {
		return nil, ErrNotYourTurn
	}

	idx := -1
	for i := range r.Pool {
		if r.Pool[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrItemUnavailable
	}

	item := r.Pool[idx]
	r.Pool = append(r.Pool[:idx], r.Pool[idx+1:]...)
	m := r.Member(requesterID)
	m.Team = append(m.Team, item)
	r.UpdatedAt = now

	out := &PickOutcome{Item: item, Cursor: r.TurnCursor}
	if r.IsComplete() || len(r.Pool) == 0 {
		r.Phase = PhaseCompleted
		out.Completed = true
		return out, nil
	}

	r.TurnCursor = r.nextEligible((r.TurnCursor + 1) % len(r.TurnOrder))
	out.Cursor = r.TurnCursor
	out.Next = r.CurrentHolder()
	return out, nil
}

// AutoPick picks a uniformly random pool item on behalf of the current holder.
// expectedMemberID is the holder the caller's timer was armed for; a mismatch
// means a pick already advanced the turn and yields ErrStaleTimer.
func (r *Room) AutoPick(expectedMemberID string, rng *rand.Rand, now time.Time) (*PickOutcome, error) {
	if r.Phase != PhaseSelecting {
		return nil, ErrStaleTimer
	}
	if r.TurnOrder[r.TurnCursor] != expectedMemberID {
		return nil, ErrStaleTimer
	}
	if len(r.Pool) == 0 {
		return nil, ErrNoItemsLeft
	}

	item := r.Pool[rng.Intn(len(r.Pool))]
	out, err := r.Pick(expectedMemberID, item.ID, now)
	if err != nil {
		return nil, err
	}
	out.Auto = true
	return out, nil
}

// RemoveMember removes the member from the room, splicing the turn order and
// promoting ownership as needed. The caller is responsible for acting on
// RoomEmpty (delete the room) and EndedEarly (announce completion).
func (r *Room) RemoveMember(userID string, now time.Time) (*RemoveOutcome, error) {
	idx := -1
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: unknown member", ErrValidation)
	}

	removed := r.Members[idx]
	wasHolder := r.Phase == PhaseSelecting && len(r.TurnOrder) > 0 && r.TurnOrder[r.TurnCursor] == userID
	r.Members = append(r.Members[:idx], r.Members[idx+1:]...)
	r.UpdatedAt = now

	out := &RemoveOutcome{Removed: removed}
	if len(r.Members) == 0 {
		out.RoomEmpty = true
		return out, nil
	}

	if r.Phase == PhaseSelecting {
		if pos := r.turnOrderIndex(userID); pos != -1 {
			r.TurnOrder = append(r.TurnOrder[:pos], r.TurnOrder[pos+1:]...)
			if r.TurnCursor > pos {
				r.TurnCursor--
			}
			if r.TurnCursor >= len(r.TurnOrder) {
				r.TurnCursor = 0
			}
		}
	}

	if removed.IsOwner {
		out.NewOwner = r.promoteOwner()
	}

	if r.Phase == PhaseSelecting {
		if len(r.Members) == 1 {
			// A single remaining member cannot drive a round; end with the
			// partial teams rather than deadlock.
			r.Phase = PhaseCompleted
			out.EndedEarly = true
			out.Completed = true
			return out, nil
		}
		if wasHolder {
			out.TurnPassed = true
			if r.IsComplete() || len(r.Pool) == 0 {
				r.Phase = PhaseCompleted
				out.Completed = true
				return out, nil
			}
			r.TurnCursor = r.nextEligible(r.TurnCursor)
			out.Next = r.CurrentHolder()
		}
	}
	return out, nil
}

// IsComplete reports whether every member has reached the pick quota.
func (r *Room) IsComplete() bool {
	for _, m := range r.Members {
		if len(m.Team) < r.TargetPicks {
			return false
		}
	}
	return true
}

// MarkCompleted sets the Completed phase if the quota is met everywhere.
// Idempotent: calling it on a completed room changes nothing.
func (r *Room) MarkCompleted() bool {
	if r.IsComplete() {
		r.Phase = PhaseCompleted
	}
	return r.Phase == PhaseCompleted
}

// nextEligible returns the first turn-order index at or after start (cyclic)
// whose member is still below quota. Callers must ensure one exists.
func (r *Room) nextEligible(start int) int {
	for i := 0; i < len(r.TurnOrder); i++ {
		idx := (start + i) % len(r.TurnOrder)
		if m := r.Member(r.TurnOrder[idx]); m != nil && len(m.Team) < r.TargetPicks {
			return idx
		}
	}
	return start
}

func (r *Room) turnOrderIndex(userID string) int {
	for i, id := range r.TurnOrder {
		if id == userID {
			return i
		}
	}
	return -1
}

// promoteOwner makes the front of the turn order (or the first remaining
// member before selection starts) the new owner. During selection the new
// owner is relocated to the front of the turn order, preserving the relative
// order of the others and keeping the cursor on the same logical holder.
func (r *Room) promoteOwner() *Member {
	var newOwner *Member
	if r.Phase == PhaseSelecting && len(r.TurnOrder) > 0 {
		newOwner = r.Member(r.TurnOrder[0])
		r.relocateToFront(r.TurnOrder[0])
	} else {
		newOwner = &r.Members[0]
	}
	if newOwner != nil {
		newOwner.IsOwner = true
	}
	return newOwner
}

func (r *Room) relocateToFront(userID string) {
	pos := r.turnOrderIndex(userID)
	if pos <= 0 {
		return
	}
	holderID := r.TurnOrder[r.TurnCursor]
	order := make([]string, 0, len(r.TurnOrder))
	order = append(order, userID)
	order = append(order, r.TurnOrder[:pos]...)
	order = append(order, r.TurnOrder[pos+1:]...)
	r.TurnOrder = order
	for i, id := range r.TurnOrder {
		if id == holderID {
			r.TurnCursor = i
			break
		}
	}
}
