// Package client binds one socket session to one race room.
//
// The client package implements:
//   - Join: dial, install the full handler table, announce the participant
//   - Inbound reconciliation into the race.Room state machine
//   - Guarded outbound actions (start, typed input, leave)
//   - Snapshots for whatever is rendering the room
//
// RoomClient owns its transport session and its room for the lifetime of one
// membership. A rejoin builds a fresh RoomClient; nothing is shared between
// memberships and there is no process-wide connection handle.
//
// Local actions never mutate the room. Start only asks the server to start;
// the phase changes when (and only when) the matching game-started event
// arrives. Typed input is forwarded as the full current buffer while a race
// is in progress and dropped otherwise.
//
// Usage:
//
//	c := client.New("ws://localhost:8080/ws")
//	c.Notifier = client.NotifierFunc(func(msg string) { fmt.Println(msg) })
//	c.OnChange = func(snap client.Snapshot) { render(snap) }
//	if err := c.Join(ctx, roomID, name); err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
package client
