package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadpick/internal/app"
	"squadpick/internal/catalog"
	"squadpick/internal/roomstore"
)

func newTestHandler(t *testing.T) (*http.ServeMux, *app.App) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := roomstore.NewMemoryStore(clock, roomstore.DefaultConfig())
	cm := NewConnectionManager(DefaultConnectionConfig())
	roomApp := app.New(app.DefaultConfig(), store, clock, cm)
	roomApp.SetTimer(&noopTimer{})

	mux := http.NewServeMux()
	NewHandler(cm, roomApp).RegisterRoutes(mux)
	return mux, roomApp
}

type noopTimer struct{}

func (noopTimer) Arm(roomID, memberID string, d time.Duration) {}
func (noopTimer) Cancel(roomID string)                         {}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	mux, _ := newTestHandler(t)
	rec := get(t, mux, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestPlayers_All(t *testing.T) {
	mux, _ := newTestHandler(t)
	rec := get(t, mux, "/api/players")
	require.Equal(t, http.StatusOK, rec.Code)

	var players []catalog.Player
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &players))
	assert.Len(t, players, 30)
}

func TestPlayers_Top(t *testing.T) {
	mux, _ := newTestHandler(t)
	rec := get(t, mux, "/api/players?top=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var players []catalog.Player
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &players))
	require.Len(t, players, 3)
	assert.GreaterOrEqual(t, players[0].Rating, players[1].Rating)
}

func TestPlayers_TopInvalid(t *testing.T) {
	mux, _ := newTestHandler(t)
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/players?top=zero").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/players?top=0").Code)
}

func TestPlayers_ByRole(t *testing.T) {
	mux, _ := newTestHandler(t)
	rec := get(t, mux, "/api/players?role=Wicket-keeper")
	require.Equal(t, http.StatusOK, rec.Code)

	var players []catalog.Player
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &players))
	require.NotEmpty(t, players)
	for _, p := range players {
		assert.Equal(t, catalog.RoleWicketKeeper, p.Role)
	}
}

func TestRooms_ListAndFetch(t *testing.T) {
	mux, roomApp := newTestHandler(t)
	rm, err := roomApp.CreateRoom(context.Background(), "conn-a", "Asha")
	require.NoError(t, err)

	rec := get(t, mux, "/api/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	var sums []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sums))
	require.Len(t, sums, 1)
	assert.Equal(t, rm.ID, sums[0]["id"])

	rec = get(t, mux, "/api/rooms/"+rm.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, rm.ID, fetched["id"])
}

func TestRooms_NotFound(t *testing.T) {
	mux, _ := newTestHandler(t)
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/rooms/NOPE01").Code)
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/stats/NOPE01").Code)
}

func TestStats(t *testing.T) {
	mux, roomApp := newTestHandler(t)
	ctx := context.Background()
	rm, err := roomApp.CreateRoom(ctx, "conn-a", "Asha")
	require.NoError(t, err)
	_, err = roomApp.JoinRoom(ctx, rm.ID, "conn-b", "Ravi")
	require.NoError(t, err)

	rec := get(t, mux, "/api/stats/"+rm.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats app.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, rm.ID, stats.RoomID)
	assert.Equal(t, 2, stats.MemberCount)
	assert.Equal(t, 30, stats.PoolRemaining)
	assert.Len(t, stats.Leaderboard, 2)
}

func TestConnStats(t *testing.T) {
	mux, _ := newTestHandler(t)
	rec := get(t, mux, "/ws/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["total_connections"])
}
