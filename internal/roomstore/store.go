package roomstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"squadpick/internal/room"
)

// Store owns the mapping from room ID to serialized Room state. Every Put is
// a full replace of the snapshot under its key with a refreshed sliding TTL;
// partial-field updates are not part of the contract.
type Store interface {
	Get(ctx context.Context, roomID string) (*room.Room, error)
	Put(ctx context.Context, rm *room.Room, ttl time.Duration) error
	Delete(ctx context.Context, roomID string) error
	ListAll(ctx context.Context) ([]room.Summary, error)
}

// Config tunes the expiry policy of the in-memory store.
type Config struct {
	// MaxRoomAge deletes rooms this old regardless of activity.
	MaxRoomAge time.Duration
	// CompletedMaxAge deletes completed rooms this old.
	CompletedMaxAge time.Duration
	// SweepInterval is how often the reaper runs.
	SweepInterval time.Duration
}

// DefaultConfig returns the stock expiry policy.
func DefaultConfig() Config {
	return Config{
		MaxRoomAge:      2 * time.Hour,
		CompletedMaxAge: 30 * time.Minute,
		SweepInterval:   time.Minute,
	}
}

type entry struct {
	payload   []byte
	summary   room.Summary
	expiresAt time.Time
}

// MemoryStore is the in-process Store implementation. Rooms round-trip
// through JSON so every Get hands back an independent snapshot; callers can
// mutate it freely and Put it back.
type MemoryStore struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	cfg     Config
	entries map[string]entry
}

// NewMemoryStore creates an empty store. Run Reap in a goroutine to enforce
// the age cutoffs.
func NewMemoryStore(clock clockwork.Clock, cfg Config) *MemoryStore {
	return &MemoryStore{
		clock:   clock,
		cfg:     cfg,
		entries: make(map[string]entry),
	}
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (*room.Room, error) {
	s.mu.RLock()
	e, ok := s.entries[roomID]
	s.mu.RUnlock()
	if !ok || !s.clock.Now().Before(e.expiresAt) {
		return nil, room.ErrRoomNotFound
	}

	var rm room.Room
	if err := json.Unmarshal(e.payload, &rm); err != nil {
		return nil, fmt.Errorf("%w: decode room %s: %v", room.ErrStorageUnavailable, roomID, err)
	}
	return &rm, nil
}

func (s *MemoryStore) Put(ctx context.Context, rm *room.Room, ttl time.Duration) error {
	payload, err := json.Marshal(rm)
	if err != nil {
		return fmt.Errorf("%w: encode room %s: %v", room.ErrStorageUnavailable, rm.ID, err)
	}

	s.mu.Lock()
	s.entries[rm.ID] = entry{
		payload:   payload,
		summary:   rm.Summary(),
		expiresAt: s.clock.Now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	delete(s.entries, roomID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]room.Summary, error) {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]room.Summary, 0, len(s.entries))
	for _, e := range s.entries {
		if now.Before(e.expiresAt) {
			out = append(out, e.summary)
		}
	}
	return out, nil
}

// Reap periodically deletes expired entries and rooms past the absolute age
// cutoffs. Blocks until ctx is cancelled.
func (s *MemoryStore) Reap(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		age := now.Sub(e.summary.CreatedAt)
		stale := !now.Before(e.expiresAt) ||
			age > s.cfg.MaxRoomAge ||
			(e.summary.Phase == room.PhaseCompleted && age > s.cfg.CompletedMaxAge)
		if stale {
			delete(s.entries, id)
			log.Debug().Str("room_id", id).Dur("age", age).Msg("reaped expired room")
		}
	}
}
