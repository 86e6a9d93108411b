package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firing struct {
	roomID   string
	memberID string
}

type recorder struct {
	mu    sync.Mutex
	fired []firing
	ch    chan firing
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan firing, 16)}
}

func (r *recorder) fire(roomID, memberID string) {
	r.mu.Lock()
	r.fired = append(r.fired, firing{roomID, memberID})
	r.mu.Unlock()
	r.ch <- firing{roomID, memberID}
}

func (r *recorder) waitOne(t *testing.T) firing {
	t.Helper()
	select {
	case f := <-r.ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
		return firing{}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func TestArm_FiresAfterDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	s := New(clock, rec.fire)
	defer s.Stop()

	s.Arm("ROOM01", "conn-a", 10*time.Second)
	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)

	f := rec.waitOne(t)
	assert.Equal(t, "ROOM01", f.roomID)
	assert.Equal(t, "conn-a", f.memberID)
}

func TestCancel_SuppressesFire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	s := New(clock, rec.fire)
	defer s.Stop()

	s.Arm("ROOM01", "conn-a", 10*time.Second)
	clock.BlockUntil(1)
	s.Cancel("ROOM01")
	clock.Advance(time.Minute)

	select {
	case f := <-rec.ch:
		t.Fatalf("cancelled timer fired: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancel_WithoutTimerIsNoop(t *testing.T) {
	s := New(clockwork.NewFakeClock(), func(string, string) {})
	defer s.Stop()
	s.Cancel("ROOM01")
}

func TestArm_ReplacesExistingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	s := New(clock, rec.fire)
	defer s.Stop()

	s.Arm("ROOM01", "conn-a", 10*time.Second)
	clock.BlockUntil(1)
	s.Arm("ROOM01", "conn-b", 10*time.Second)
	clock.BlockUntil(1)

	clock.Advance(10 * time.Second)
	f := rec.waitOne(t)
	assert.Equal(t, "conn-b", f.memberID)

	clock.Advance(time.Minute)
	select {
	case f := <-rec.ch:
		t.Fatalf("replaced timer fired: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 1, rec.count())
}

func TestArm_IndependentRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	s := New(clock, rec.fire)
	defer s.Stop()

	s.Arm("ROOM01", "conn-a", 5*time.Second)
	s.Arm("ROOM02", "conn-b", 10*time.Second)
	clock.BlockUntil(2)

	clock.Advance(5 * time.Second)
	assert.Equal(t, "ROOM01", rec.waitOne(t).roomID)

	clock.Advance(5 * time.Second)
	assert.Equal(t, "ROOM02", rec.waitOne(t).roomID)
}

func TestStop_CancelsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	s := New(clock, rec.fire)

	s.Arm("ROOM01", "conn-a", 10*time.Second)
	s.Arm("ROOM02", "conn-b", 10*time.Second)
	clock.BlockUntil(2)
	s.Stop()
	clock.Advance(time.Minute)

	select {
	case f := <-rec.ch:
		t.Fatalf("stopped timer fired: %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRearmAfterFire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rec := newRecorder()
	s := New(clock, rec.fire)
	defer s.Stop()

	s.Arm("ROOM01", "conn-a", 10*time.Second)
	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	rec.waitOne(t)

	s.Arm("ROOM01", "conn-b", 10*time.Second)
	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	f := rec.waitOne(t)
	assert.Equal(t, "conn-b", f.memberID)
}
