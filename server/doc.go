// Package server provides the TypeRush practice server.
//
// The server package implements the authoritative side of the wire contract
// the client consumes:
//   - Room registry keyed by invite code, created implicitly on first join
//   - Host assignment to the earliest joiner, explicit reassignment on leave
//   - Percent-complete score computation from typed buffers
//   - Paragraph selection from JSON packs with embedded defaults
//
// It exists for local play, bots, and integration tests. The production
// session server's score and paragraph policies are outside this repo; the
// practice server only guarantees the same event vocabulary and ordering so
// the client cannot tell the difference at the protocol boundary.
//
// HTTP surface:
//
//	GET /healthz      liveness probe
//	GET /api/rooms    active room listing
//	GET /ws           WebSocket upgrade, one session per participant
//
// Each accepted session is greeted with a connect event carrying its
// server-assigned connection identifier, then joins a room via join-game.
package server
