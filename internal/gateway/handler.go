package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"squadpick/internal/catalog"
	"squadpick/internal/room"
)

// Handler serves the websocket upgrade endpoint and the read-only REST API.
type Handler struct {
	cm  *ConnectionManager
	app RoomApp
}

// NewHandler creates the HTTP handler.
func NewHandler(cm *ConnectionManager, roomApp RoomApp) *Handler {
	return &Handler{cm: cm, app: roomApp}
}

// RegisterRoutes registers all gateway routes with the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/players", h.handlePlayers)
	mux.HandleFunc("GET /api/rooms", h.handleRooms)
	mux.HandleFunc("GET /api/rooms/{id}", h.handleRoom)
	mux.HandleFunc("GET /api/stats/{id}", h.handleStats)
	mux.HandleFunc("GET /ws/stats", h.handleConnStats)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	if err := h.cm.UpgradeConnection(w, r); err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) handlePlayers(w http.ResponseWriter, r *http.Request) {
	if topStr := r.URL.Query().Get("top"); topStr != "" {
		n, err := strconv.Atoi(topStr)
		if err != nil || n < 1 {
			http.Error(w, "invalid top count", http.StatusBadRequest)
			return
		}
		writeJSON(w, catalog.Top(n))
		return
	}
	if role := r.URL.Query().Get("role"); role != "" {
		writeJSON(w, catalog.ByRole(catalog.Role(role)))
		return
	}
	writeJSON(w, catalog.All())
}

func (h *Handler) handleRooms(w http.ResponseWriter, r *http.Request) {
	sums, err := h.app.ListRooms(r.Context())
	if err != nil {
		http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, sums)
}

func (h *Handler) handleRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.app.GetRoom(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, rm)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.GetStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, stats)
}

func (h *Handler) handleConnStats(w http.ResponseWriter, r *http.Request) {
	total, rooms := h.cm.Stats()
	writeJSON(w, map[string]any{
		"total_connections": total,
		"active_rooms":      len(rooms),
		"room_connections":  rooms,
	})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		http.Error(w, "room not found", http.StatusNotFound)
	case errors.Is(err, room.ErrStorageUnavailable):
		http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
