// Package race provides the client-side room state machine for TypeRush.
//
// The race package implements:
//   - The room state tuple: roster, host, phase, shared paragraph, local input
//   - Reconciliation rules for every inbound server event
//   - Guards for the outbound start and typed-input actions
//   - Leaderboard derivation from the roster
//
// Core Types:
//
// Room is the single source of truth for one room membership. Player
// represents one connected participant as reported by the server. Phase is
// the room lifecycle stage (not-started, in-progress, finished).
//
// Event Sourcing:
//
// The Room never mutates itself optimistically on behalf of a local action.
// Local actions only request; every state transition is driven by the
// corresponding inbound event. Applying an event that does not fit the
// current state (duplicate join, score for a departed player, game-started
// while already racing) is an idempotent no-op rather than an error.
//
// Usage:
//
//	room := race.NewRoom()
//	room.SetSelfID(connID)
//	room.ApplyRoster(players)
//	room.ApplyGameStarted("the quick brown fox")
//	if room.SetInput("the q") {
//		// emit player-typed upstream
//	}
//	board := room.Leaderboard()
//
// Concurrency:
//
// Room is not synchronized. It is owned by exactly one RoomClient, which
// serializes the transport dispatch goroutine and local input behind a
// single lock, so no two reconciliation rules ever run concurrently.
package race
