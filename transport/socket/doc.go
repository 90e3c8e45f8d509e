// Package socket provides the WebSocket event transport for TypeRush.
//
// The socket package implements:
//   - One long-lived, full-duplex channel per room membership
//   - Named JSON events ({"event": ..., "data": ...}) in both directions
//   - Serial handler dispatch in arrival order
//   - Ping/pong keepalive
//   - Idempotent teardown with a best-effort departure notice
//
// Handler Semantics:
//
// On registers a single handler per event name; registering again for the
// same name replaces the previous handler instead of stacking, so a caller
// that rebuilds its handler table never reconciles the same event twice.
// All handlers run on the session's dispatch goroutine, one at a time, in
// the order frames arrive.
//
// Emit is best-effort: there is no delivery acknowledgment, and emitting on
// a session that is not open is a silent no-op. Callers gate their actions
// on application state rather than transport state.
//
// Usage:
//
//	sess, err := socket.Dial(ctx, "ws://localhost:8080/ws")
//	if err != nil {
//		log.Fatal(err)
//	}
//	sess.On("player-joined", func(data json.RawMessage) { ... })
//	sess.Emit("join-game", payload)
//	defer sess.Close()
//
// The same Session type backs both ends: Dial produces the client side and
// Accept upgrades an incoming HTTP request on the server side.
package socket
