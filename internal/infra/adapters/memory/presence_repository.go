package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/runtime"
)

type PresenceRepository interface {
	// Add a live connection to a room
	Add(ctx context.Context, entry runtime.PresenceEntry)

	// Remove a connection; false if it was already gone
	Remove(ctx context.Context, connID uuid.UUID) (runtime.PresenceEntry, bool)

	// Update applies fn to the entry under the lock and returns the updated copy
	Update(ctx context.Context, connID uuid.UUID, fn func(e *runtime.PresenceEntry)) (runtime.PresenceEntry, bool)

	Get(ctx context.Context, connID uuid.UUID) (runtime.PresenceEntry, bool)

	// Get all connections in a room ordered by join time
	ListRoom(ctx context.Context, roomID uuid.UUID) []runtime.PresenceEntry

	// All returns every tracked connection across rooms
	All(ctx context.Context) []runtime.PresenceEntry
}

type presenceRepository struct {
	rooms map[uuid.UUID]map[uuid.UUID]*runtime.PresenceEntry
	conns map[uuid.UUID]*runtime.PresenceEntry
	mu    sync.RWMutex
}

func NewPresenceRepository() PresenceRepository {
	return &presenceRepository{
		rooms: make(map[uuid.UUID]map[uuid.UUID]*runtime.PresenceEntry),
		conns: make(map[uuid.UUID]*runtime.PresenceEntry),
	}
}

func (r *presenceRepository) Add(ctx context.Context, entry runtime.PresenceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := entry

	if r.rooms[e.RoomID] == nil {
		r.rooms[e.RoomID] = make(map[uuid.UUID]*runtime.PresenceEntry)
	}

	r.rooms[e.RoomID][e.ConnectionID] = &e
	r.conns[e.ConnectionID] = &e
}

func (r *presenceRepository) Remove(ctx context.Context, connID uuid.UUID) (runtime.PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return runtime.PresenceEntry{}, false
	}

	delete(r.conns, connID)

	if room, ok := r.rooms[e.RoomID]; ok {
		delete(room, connID)

		if len(room) == 0 {
			delete(r.rooms, e.RoomID)
		}
	}

	return *e, true
}

func (r *presenceRepository) Update(ctx context.Context, connID uuid.UUID, fn func(e *runtime.PresenceEntry)) (runtime.PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[connID]
	if !ok {
		return runtime.PresenceEntry{}, false
	}

	fn(e)

	return *e, true
}

func (r *presenceRepository) Get(ctx context.Context, connID uuid.UUID) (runtime.PresenceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return runtime.PresenceEntry{}, false
	}

	return *e, true
}

func (r *presenceRepository) ListRoom(ctx context.Context, roomID uuid.UUID) []runtime.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]runtime.PresenceEntry, 0, len(r.rooms[roomID]))

	for _, e := range r.rooms[roomID] {
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})

	return entries
}

func (r *presenceRepository) All(ctx context.Context) []runtime.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]runtime.PresenceEntry, 0, len(r.conns))

	for _, e := range r.conns {
		entries = append(entries, *e)
	}

	return entries
}
