// Package mcp exposes the TypeRush race client over the Model Context
// Protocol so an agent can join rooms, race, and read standings as tools.
//
// The package wraps game/client memberships behind an MCP server:
//   - create_room: generate a fresh invite code
//   - join_room: open a membership in a room
//   - room_state: phase, paragraph, typed progress, and standings
//   - start_race: request a start (host only)
//   - type_text: submit the full typed buffer
//   - leaderboard: score-ordered standings
//   - leave_room: tear the membership down
//   - list_rooms: active memberships held by this process
//
// Each joined room is one live WebSocket membership owned by this process.
// Server-reported errors are collected per membership and surfaced in the
// next room_state output rather than interrupting the tool call.
package mcp
