package server

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryGetOrCreate(t *testing.T) {
	reg := NewRegistry()

	room := reg.GetOrCreate("room-1")
	if room == nil {
		t.Fatal("GetOrCreate returned nil")
	}
	if room.ID() != "room-1" {
		t.Errorf("Expected id room-1, got %q", room.ID())
	}

	again := reg.GetOrCreate("room-1")
	if again != room {
		t.Error("GetOrCreate should return the same room for the same code")
	}
	if reg.Count() != 1 {
		t.Errorf("Expected 1 room, got %d", reg.Count())
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Get("ghost"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestRegistryCleanupIdle(t *testing.T) {
	reg := NewRegistry()

	stale := reg.GetOrCreate("stale")
	stale.mu.Lock()
	stale.lastActive = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	fresh := reg.GetOrCreate("fresh")

	removed := reg.CleanupIdle(30 * time.Minute)
	if removed != 1 {
		t.Errorf("Expected 1 room reclaimed, got %d", removed)
	}
	if _, err := reg.Get("stale"); !errors.Is(err, ErrRoomNotFound) {
		t.Error("stale room should be gone")
	}
	if got, err := reg.Get("fresh"); err != nil || got != fresh {
		t.Errorf("fresh room should survive cleanup, got %v err %v", got, err)
	}
}

func TestRegistryCleanupSparesOccupiedRooms(t *testing.T) {
	reg := NewRegistry()

	room := reg.GetOrCreate("occupied")
	room.mu.Lock()
	room.members = append(room.members, &member{id: "p1", name: "alice"})
	room.lastActive = time.Now().Add(-time.Hour)
	room.mu.Unlock()

	if removed := reg.CleanupIdle(30 * time.Minute); removed != 0 {
		t.Errorf("Occupied rooms must not be reclaimed, got %d removed", removed)
	}
}
