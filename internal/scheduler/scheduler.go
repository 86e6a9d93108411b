package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// FireFunc is invoked when a turn deadline expires. memberID is the holder
// the timer was armed for; the receiver is responsible for detecting that the
// turn has since moved on (stale timer) and treating that as a no-op.
type FireFunc func(roomID, memberID string)

// TurnScheduler keeps at most one outstanding turn timer per room. Arming a
// room replaces any existing timer; cancelling drops it. Timers use a
// clockwork.Clock so tests can drive them with a fake clock.
type TurnScheduler struct {
	clock clockwork.Clock
	fire  FireFunc

	mu     sync.Mutex
	timers map[string]*armed
}

type armed struct {
	memberID string
	timer    clockwork.Timer
	cancel   chan struct{}
}

// New creates a scheduler. fire runs on the timer goroutine; it must not
// block indefinitely.
func New(clock clockwork.Clock, fire FireFunc) *TurnScheduler {
	return &TurnScheduler{
		clock:  clock,
		fire:   fire,
		timers: make(map[string]*armed),
	}
}

// Arm schedules an auto-pick for the given holder after d, replacing any
// timer already armed for the room.
func (s *TurnScheduler) Arm(roomID, memberID string, d time.Duration) {
	a := &armed{
		memberID: memberID,
		timer:    s.clock.NewTimer(d),
		cancel:   make(chan struct{}),
	}

	s.mu.Lock()
	if prev, ok := s.timers[roomID]; ok {
		close(prev.cancel)
		stopAndDrain(prev.timer)
	}
	s.timers[roomID] = a
	s.mu.Unlock()

	go s.wait(roomID, a)

	log.Debug().
		Str("room_id", roomID).
		Str("member_id", memberID).
		Dur("deadline", d).
		Msg("armed turn timer")
}

// Cancel drops the room's timer if one is armed. Safe to call when none is.
func (s *TurnScheduler) Cancel(roomID string) {
	s.mu.Lock()
	a, ok := s.timers[roomID]
	if ok {
		delete(s.timers, roomID)
		close(a.cancel)
		stopAndDrain(a.timer)
	}
	s.mu.Unlock()

	if ok {
		log.Debug().Str("room_id", roomID).Msg("cancelled turn timer")
	}
}

// Stop cancels every outstanding timer.
func (s *TurnScheduler) Stop() {
	s.mu.Lock()
	for roomID, a := range s.timers {
		delete(s.timers, roomID)
		close(a.cancel)
		stopAndDrain(a.timer)
	}
	s.mu.Unlock()
}

func (s *TurnScheduler) wait(roomID string, a *armed) {
	select {
	case <-a.timer.Chan():
		s.mu.Lock()
		if cur, ok := s.timers[roomID]; ok && cur == a {
			delete(s.timers, roomID)
		}
		s.mu.Unlock()
		s.fire(roomID, a.memberID)
	case <-a.cancel:
	}
}

// stopAndDrain stops a timer and drains its channel so a concurrent fire
// cannot leak into a later arm of the same room.
func stopAndDrain(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
