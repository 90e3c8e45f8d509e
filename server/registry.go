package server

import (
	"errors"
	"sync"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")

// Registry tracks every live room by invite code. Rooms are created
// implicitly by the first joiner and reclaimed once they have sat empty
// beyond the retention window.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for an invite code, creating it on first use.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[id]; ok {
		return room
	}
	room = newRoom(id)
	g.rooms[id] = room
	return room
}

// Get retrieves an existing room.
func (g *Registry) Get(id string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// List returns all live rooms.
func (g *Registry) List() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		result = append(result, room)
	}
	return result
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// CleanupIdle removes rooms that have been empty since before the retention
// window and returns how many were reclaimed.
func (g *Registry) CleanupIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, room := range g.rooms {
		if room.idleSince(cutoff) {
			delete(g.rooms, id)
			removed++
		}
	}
	return removed
}
