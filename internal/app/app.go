package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"squadpick/internal/catalog"
	"squadpick/internal/events"
	"squadpick/internal/room"
	"squadpick/internal/roomstore"
)

const maxIDAttempts = 5

// Config carries the tunable room constants.
type Config struct {
	MaxMembers   int
	TargetPicks  int
	TurnDuration time.Duration
	RoomTTL      time.Duration
}

// DefaultConfig returns the stock constants.
func DefaultConfig() Config {
	return Config{
		MaxMembers:   6,
		TargetPicks:  5,
		TurnDuration: 10 * time.Second,
		RoomTTL:      time.Hour,
	}
}

// TurnTimer is what the app needs from the timeout scheduler.
type TurnTimer interface {
	Arm(roomID, memberID string, d time.Duration)
	Cancel(roomID string)
}

// Stats is the read-only game summary for a room.
type Stats struct {
	RoomID        string          `json:"room_id"`
	Phase         room.Phase      `json:"phase"`
	MemberCount   int             `json:"member_count"`
	PoolRemaining int             `json:"pool_remaining"`
	CurrentRound  int             `json:"current_round"`
	Leaderboard   []room.Standing `json:"leaderboard"`
}

// App is the single write path for rooms. Every mutation of a given room runs
// under that room's lock, held across the full load-mutate-store cycle, so a
// user pick and a concurrently firing turn timeout can never interleave.
// Operations on different rooms proceed in parallel.
type App struct {
	cfg   Config
	store roomstore.Store
	clock clockwork.Clock
	sinks []events.Publisher

	timerMu sync.RWMutex
	timer   TurnTimer

	rngMu sync.Mutex
	rng   *rand.Rand

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates the app. Attach the timeout scheduler with SetTimer before
// serving traffic.
func New(cfg Config, store roomstore.Store, clock clockwork.Clock, sinks ...events.Publisher) *App {
	return &App{
		cfg:   cfg,
		store: store,
		clock: clock,
		sinks: sinks,
		rng:   rand.New(rand.NewSource(clock.Now().UnixNano())),
		locks: make(map[string]*sync.Mutex),
	}
}

// SetTimer wires in the turn scheduler. Split from New because the scheduler's
// fire callback points back at HandleTurnTimeout.
func (a *App) SetTimer(t TurnTimer) {
	a.timerMu.Lock()
	a.timer = t
	a.timerMu.Unlock()
}

// CreateRoom creates a room owned by the given connection and persists it.
func (a *App) CreateRoom(ctx context.Context, ownerID, ownerName string) (*room.Room, error) {
	id, err := a.newRoomID(ctx)
	if err != nil {
		return nil, err
	}

	a.rngMu.Lock()
	pool := catalog.Shuffled(a.rng)
	a.rngMu.Unlock()

	rm, err := room.New(id, ownerID, ownerName, pool, a.cfg.TargetPicks, a.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := a.put(ctx, rm); err != nil {
		return nil, err
	}

	log.Info().Str("room_id", id).Str("owner", ownerName).Msg("room created")
	a.emit(ctx, id, events.TypeRoomStateChanged, events.RoomStatePayload{Room: rm})
	return rm, nil
}

// JoinRoom adds the connection to the room, or reattaches it when the display
// name matches an existing member.
func (a *App) JoinRoom(ctx context.Context, roomID, userID, displayName string) (*room.Room, error) {
	unlock := a.lockRoom(roomID)
	defer unlock()

	rm, err := a.get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, rejoined, err := rm.AddMember(userID, displayName, a.cfg.MaxMembers, a.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := a.put(ctx, rm); err != nil {
		return nil, err
	}

	log.Info().
		Str("room_id", roomID).
		Str("member", member.DisplayName).
		Bool("reconnected", rejoined).
		Msg("member joined")

	a.emit(ctx, roomID, events.TypeMemberJoined, events.MemberJoinedPayload{
		Member:      events.ViewOf(*member),
		Reconnected: rejoined,
		MemberCount: len(rm.Members),
	})
	a.emit(ctx, roomID, events.TypeRoomStateChanged, events.RoomStatePayload{Room: rm})
	return rm, nil
}

// StartSelection fixes the turn order, announces it, and arms the first turn
// timer.
func (a *App) StartSelection(ctx context.Context, roomID, requesterID string) (*room.Room, error) {
	unlock := a.lockRoom(roomID)
	defer unlock()

	rm, err := a.get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	a.rngMu.Lock()
	err = rm.StartSelection(requesterID, a.rng, a.clock.Now())
	a.rngMu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := a.put(ctx, rm); err != nil {
		return nil, err
	}

	holder := rm.CurrentHolder()
	log.Info().
		Str("room_id", roomID).
		Str("first_turn", holder.DisplayName).
		Int("members", len(rm.Members)).
		Msg("selection started")

	turnOrder := make([]events.MemberView, 0, len(rm.TurnOrder))
	for _, id := range rm.TurnOrder {
		if m := rm.Member(id); m != nil {
			turnOrder = append(turnOrder, events.ViewOf(*m))
		}
	}
	a.emit(ctx, roomID, events.TypeSelectionStarted, events.SelectionStartedPayload{
		TurnOrder:     turnOrder,
		CurrentHolder: events.ViewOf(*holder),
		Pool:          rm.Pool,
		DeadlineSec:   a.deadlineSec(),
	})
	a.armTurn(roomID, holder.UserID)
	return rm, nil
}

// Pick applies a user-driven pick and advances the turn.
func (a *App) Pick(ctx context.Context, roomID, requesterID string, itemID int) (*room.Room, *room.PickOutcome, error) {
	unlock := a.lockRoom(roomID)
	defer unlock()

	rm, err := a.get(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	picker := rm.Member(requesterID)

	out, err := rm.Pick(requesterID, itemID, a.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	if err := a.put(ctx, rm); err != nil {
		return nil, nil, err
	}

	a.cancelTurn(roomID)
	a.finishPick(ctx, rm, picker.DisplayName, out)
	return rm, out, nil
}

// HandleTurnTimeout is the scheduler's fire callback: auto-pick for the
// holder the timer was armed for. Stale timers are a normal race outcome and
// are swallowed here.
func (a *App) HandleTurnTimeout(roomID, memberID string) {
	ctx := context.Background()

	unlock := a.lockRoom(roomID)
	defer unlock()

	rm, err := a.get(ctx, roomID)
	if err != nil {
		log.Debug().Err(err).Str("room_id", roomID).Msg("timeout for missing room")
		return
	}
	holder := rm.Member(memberID)
	holderName := ""
	if holder != nil {
		holderName = holder.DisplayName
	}

	a.rngMu.Lock()
	out, err := rm.AutoPick(memberID, a.rng, a.clock.Now())
	a.rngMu.Unlock()
	switch {
	case errors.Is(err, room.ErrStaleTimer):
		log.Debug().Str("room_id", roomID).Str("member_id", memberID).Msg("stale turn timer")
		return
	case errors.Is(err, room.ErrNoItemsLeft):
		// Defensive: an active turn with an empty pool should not happen, but
		// if it does the room is done.
		rm.MarkCompleted()
		if perr := a.put(ctx, rm); perr != nil {
			log.Error().Err(perr).Str("room_id", roomID).Msg("failed to store exhausted room")
			return
		}
		a.emitCompleted(ctx, rm)
		return
	case err != nil:
		log.Error().Err(err).Str("room_id", roomID).Msg("auto-pick failed")
		return
	}

	if err := a.put(ctx, rm); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to store auto-pick")
		return
	}

	log.Info().
		Str("room_id", roomID).
		Str("member", holderName).
		Str("item", out.Item.Name).
		Msg("auto-picked on timeout")
	a.finishPick(ctx, rm, holderName, out)
}

// Leave removes the connection's member from the room, deleting the room when
// it empties and ending the round early when one member remains.
func (a *App) Leave(ctx context.Context, roomID, userID string) (*room.RemoveOutcome, error) {
	unlock := a.lockRoom(roomID)
	defer unlock()

	rm, err := a.get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	out, err := rm.RemoveMember(userID, a.clock.Now())
	if err != nil {
		return nil, err
	}

	if out.RoomEmpty {
		a.cancelTurn(roomID)
		if err := a.store.Delete(ctx, roomID); err != nil {
			return nil, a.storageErr(ctx, err)
		}
		a.forgetLock(roomID)
		log.Info().Str("room_id", roomID).Msg("room deleted (empty)")
		return out, nil
	}

	if err := a.put(ctx, rm); err != nil {
		return nil, err
	}

	left := events.MemberLeftPayload{
		DisplayName: out.Removed.DisplayName,
		MemberCount: len(rm.Members),
	}
	if out.NewOwner != nil {
		v := events.ViewOf(*out.NewOwner)
		left.NewOwner = &v
	}
	a.emit(ctx, roomID, events.TypeMemberLeft, left)
	a.emit(ctx, roomID, events.TypeRoomStateChanged, events.RoomStatePayload{Room: rm})

	switch {
	case out.Completed:
		a.cancelTurn(roomID)
		a.emitCompleted(ctx, rm)
	case out.TurnPassed && out.Next != nil:
		a.armTurn(roomID, out.Next.UserID)
		a.emit(ctx, roomID, events.TypeTurnChanged, events.TurnChangedPayload{
			Holder:      events.ViewOf(*out.Next),
			Cursor:      rm.TurnCursor,
			DeadlineSec: a.deadlineSec(),
		})
	}

	log.Info().
		Str("room_id", roomID).
		Str("member", out.Removed.DisplayName).
		Msg("member left")
	return out, nil
}

// GetRoom returns the current full snapshot of a room.
func (a *App) GetRoom(ctx context.Context, roomID string) (*room.Room, error) {
	return a.get(ctx, roomID)
}

// ListRooms returns summaries of all live rooms.
func (a *App) ListRooms(ctx context.Context) ([]room.Summary, error) {
	sums, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, a.storageErr(ctx, err)
	}
	return sums, nil
}

// GetStats returns the leaderboard view of a room.
func (a *App) GetStats(ctx context.Context, roomID string) (*Stats, error) {
	rm, err := a.get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	picked := 0
	for _, m := range rm.Members {
		picked += len(m.Team)
	}
	round := 1
	if len(rm.Members) > 0 {
		round = picked/len(rm.Members) + 1
	}
	return &Stats{
		RoomID:        rm.ID,
		Phase:         rm.Phase,
		MemberCount:   len(rm.Members),
		PoolRemaining: len(rm.Pool),
		CurrentRound:  round,
		Leaderboard:   rm.Standings(),
	}, nil
}

// finishPick emits the pick event and either completes the room or hands the
// turn (and its timer) to the next holder. Callers hold the room lock.
func (a *App) finishPick(ctx context.Context, rm *room.Room, pickerName string, out *room.PickOutcome) {
	payload := events.ItemPickedPayload{
		Item:      out.Item,
		PickedBy:  pickerName,
		Auto:      out.Auto,
		PoolSize:  len(rm.Pool),
		Standings: rm.Standings(),
	}
	typ := events.TypeItemPicked
	if out.Auto {
		typ = events.TypeAutoPicked
	}
	if out.Next != nil {
		v := events.ViewOf(*out.Next)
		payload.Next = &v
		payload.DeadlineSec = a.deadlineSec()
	}
	a.emit(ctx, rm.ID, typ, payload)

	if out.Completed {
		a.emitCompleted(ctx, rm)
		return
	}
	a.armTurn(rm.ID, out.Next.UserID)
	a.emit(ctx, rm.ID, events.TypeTurnChanged, events.TurnChangedPayload{
		Holder:      *payload.Next,
		Cursor:      out.Cursor,
		DeadlineSec: a.deadlineSec(),
	})
}

func (a *App) emitCompleted(ctx context.Context, rm *room.Room) {
	log.Info().Str("room_id", rm.ID).Msg("selection completed")
	a.emit(ctx, rm.ID, events.TypeRoomCompleted, events.RoomCompletedPayload{
		Standings: rm.Standings(),
		Message:   "Team selection completed!",
	})
}

func (a *App) newRoomID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		a.rngMu.Lock()
		id := room.NewID(a.rng)
		a.rngMu.Unlock()

		_, err := a.store.Get(ctx, id)
		if errors.Is(err, room.ErrRoomNotFound) {
			return id, nil
		}
		if err != nil {
			return "", a.storageErr(ctx, err)
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique room code", room.ErrStorageUnavailable)
}

func (a *App) get(ctx context.Context, roomID string) (*room.Room, error) {
	rm, err := a.store.Get(ctx, roomID)
	if errors.Is(err, room.ErrRoomNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, a.storageErr(ctx, err)
	}
	return rm, nil
}

func (a *App) put(ctx context.Context, rm *room.Room) error {
	if err := a.store.Put(ctx, rm, a.cfg.RoomTTL); err != nil {
		return a.storageErr(ctx, err)
	}
	return nil
}

// storageErr tags a store failure and broadcasts the degraded-service signal:
// if the store is unreachable no further mutation can succeed anywhere.
func (a *App) storageErr(ctx context.Context, err error) error {
	if !errors.Is(err, room.ErrStorageUnavailable) {
		err = fmt.Errorf("%w: %v", room.ErrStorageUnavailable, err)
	}
	log.Error().Err(err).Msg("room storage failure")
	a.emit(ctx, "", events.TypeServiceDegraded, events.ServiceDegradedPayload{
		Message: "service degraded: room storage unavailable",
	})
	return err
}

func (a *App) emit(ctx context.Context, roomID string, typ events.Type, payload any) {
	evt, err := events.New(roomID, typ, a.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to build event")
		return
	}
	for _, sink := range a.sinks {
		if err := sink.Publish(ctx, evt); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Str("event_type", string(typ)).Msg("event sink failed")
		}
	}
}

func (a *App) armTurn(roomID, memberID string) {
	a.timerMu.RLock()
	t := a.timer
	a.timerMu.RUnlock()
	if t != nil {
		t.Arm(roomID, memberID, a.cfg.TurnDuration)
	}
}

func (a *App) cancelTurn(roomID string) {
	a.timerMu.RLock()
	t := a.timer
	a.timerMu.RUnlock()
	if t != nil {
		t.Cancel(roomID)
	}
}

func (a *App) deadlineSec() int {
	return int(a.cfg.TurnDuration.Seconds())
}

func (a *App) lockRoom(roomID string) func() {
	a.locksMu.Lock()
	l, ok := a.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[roomID] = l
	}
	a.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (a *App) forgetLock(roomID string) {
	a.locksMu.Lock()
	delete(a.locks, roomID)
	a.locksMu.Unlock()
}
