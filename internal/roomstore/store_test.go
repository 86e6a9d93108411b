package roomstore

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadpick/internal/catalog"
	"squadpick/internal/room"
)

func newTestStore(t *testing.T) (*MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewMemoryStore(clock, DefaultConfig()), clock
}

func newStoredRoom(t *testing.T, clock clockwork.Clock, id string) *room.Room {
	t.Helper()
	rm, err := room.New(id, "conn-0", "Asha", catalog.All(), 5, clock.Now())
	require.NoError(t, err)
	return rm
}

func TestPutGet_RoundTripIsSnapshot(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	rm := newStoredRoom(t, clock, "AAA111")
	require.NoError(t, store.Put(ctx, rm, time.Hour))

	got, err := store.Get(ctx, "AAA111")
	require.NoError(t, err)
	assert.Equal(t, rm.ID, got.ID)
	assert.Len(t, got.Members, 1)

	// Mutating one snapshot must not leak into the next Get.
	got.Members[0].DisplayName = "hacked"
	again, err := store.Get(ctx, "AAA111")
	require.NoError(t, err)
	assert.Equal(t, "Asha", again.Members[0].DisplayName)
}

func TestGet_Missing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "NOPE01")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestGet_ExpiredTTL(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newStoredRoom(t, clock, "AAA111"), time.Hour))
	clock.Advance(time.Hour + time.Second)

	_, err := store.Get(ctx, "AAA111")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestPut_RefreshesSlidingTTL(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	rm := newStoredRoom(t, clock, "AAA111")
	require.NoError(t, store.Put(ctx, rm, time.Hour))

	clock.Advance(50 * time.Minute)
	require.NoError(t, store.Put(ctx, rm, time.Hour))

	// Past the original deadline but inside the refreshed one.
	clock.Advance(30 * time.Minute)
	_, err := store.Get(ctx, "AAA111")
	assert.NoError(t, err)
}

func TestPut_FullReplace(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	rm := newStoredRoom(t, clock, "AAA111")
	require.NoError(t, store.Put(ctx, rm, time.Hour))

	_, _, err := rm.AddMember("conn-1", "Ravi", 6, clock.Now())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, rm, time.Hour))

	got, err := store.Get(ctx, "AAA111")
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
}

func TestDelete(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newStoredRoom(t, clock, "AAA111"), time.Hour))
	require.NoError(t, store.Delete(ctx, "AAA111"))

	_, err := store.Get(ctx, "AAA111")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	// Deleting an absent room is not an error.
	assert.NoError(t, store.Delete(ctx, "AAA111"))
}

func TestListAll_SkipsExpired(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newStoredRoom(t, clock, "AAA111"), 10*time.Minute))
	require.NoError(t, store.Put(ctx, newStoredRoom(t, clock, "BBB222"), time.Hour))

	clock.Advance(30 * time.Minute)

	sums, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, "BBB222", sums[0].ID)
}

func TestSweep_AgeCutoffs(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	old := newStoredRoom(t, clock, "OLD111")
	require.NoError(t, store.Put(ctx, old, time.Hour))

	done := newStoredRoom(t, clock, "DONE11")
	done.Phase = room.PhaseCompleted
	require.NoError(t, store.Put(ctx, done, time.Hour))

	fresh := newStoredRoom(t, clock, "NEW111")
	require.NoError(t, store.Put(ctx, fresh, time.Hour))

	// 31 minutes in: the completed room is past its cutoff. Keep the others
	// alive by refreshing their TTLs the way active traffic would.
	clock.Advance(31 * time.Minute)
	require.NoError(t, store.Put(ctx, old, time.Hour))
	require.NoError(t, store.Put(ctx, fresh, time.Hour))
	store.sweep()

	_, err := store.Get(ctx, "DONE11")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
	_, err = store.Get(ctx, "OLD111")
	assert.NoError(t, err)

	// Past two hours overall age: reaped regardless of TTL refreshes.
	clock.Advance(90 * time.Minute)
	require.NoError(t, store.Put(ctx, old, time.Hour))
	store.sweep()

	_, err = store.Get(ctx, "OLD111")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestReap_RunsOnTicker(t *testing.T) {
	store, clock := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Put(ctx, newStoredRoom(t, clock, "AAA111"), time.Minute))

	go store.Reap(ctx)
	clock.BlockUntilContext(ctx, 1)

	clock.Advance(2 * time.Minute)
	clock.BlockUntilContext(ctx, 1)

	// The entry is expired either way; the reaper should also have removed it
	// from the map. Assert through the public surface.
	_, err := store.Get(ctx, "AAA111")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}
