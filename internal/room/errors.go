package room

import "errors"

// Expected, recoverable failure conditions surfaced to callers. The gateway
// maps each of these to a user-visible message on the requesting connection.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrSelectionInProgress = errors.New("selection already in progress")
	ErrRoomCompleted       = errors.New("selection has ended")
	ErrNotOwner            = errors.New("only the room owner can start selection")
	ErrInsufficientMembers = errors.New("need at least 2 members to start selection")
	ErrAlreadyStarted      = errors.New("selection already started")
	ErrNotActive           = errors.New("selection is not active")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrItemUnavailable     = errors.New("player not available")
	ErrNoItemsLeft         = errors.New("no players available for auto-selection")
	ErrValidation          = errors.New("invalid input")

	// ErrStaleTimer means a turn timer fired after the turn it was armed for
	// had already passed. It is a normal race outcome and never reaches users.
	ErrStaleTimer = errors.New("stale turn timer")

	// ErrStorageUnavailable wraps room store I/O failures.
	ErrStorageUnavailable = errors.New("room storage unavailable")
)
