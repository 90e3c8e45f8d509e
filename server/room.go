package server

import (
	"sync"
	"time"

	"github.com/typerush/typerush-go/game/race"
	"github.com/typerush/typerush-go/transport/socket"
)

// sendQueueSize bounds the per-member outbound queue. A member whose queue
// fills up has stalled and is dropped rather than holding up the room.
const sendQueueSize = 256

// envelope is one queued outbound event.
type envelope struct {
	event string
	data  interface{}
}

// member is one connected participant inside a server-side room.
type member struct {
	id    string
	name  string
	score float64
	sess  *socket.Session

	// send decouples room broadcasts from the peer's TCP window. It is
	// written and closed only under the room lock; gone marks it closed.
	send chan envelope
	gone bool
}

// writeLoop drains the member's queue onto their session. When the queue is
// closed the session goes with it; a room departure ends the connection.
func (m *member) writeLoop() {
	for env := range m.send {
		m.sess.Emit(env.event, env.data)
	}
	m.sess.Close()
}

// enqueue queues one event without ever blocking. Callers hold r.mu. A full
// queue drops the member; their session close is picked up as a disconnect.
func (m *member) enqueue(event string, data interface{}) {
	if m.gone {
		return
	}
	select {
	case m.send <- envelope{event: event, data: data}:
	default:
		m.gone = true
		close(m.send)
	}
}

// dismiss closes the member's queue. Callers hold r.mu.
func (m *member) dismiss() {
	if m.gone {
		return
	}
	m.gone = true
	close(m.send)
}

// Room is the authoritative state of one race room on the practice server.
type Room struct {
	id string

	mu         sync.Mutex
	members    []*member
	host       string
	phase      race.Phase
	paragraph  string
	lastActive time.Time
}

func newRoom(id string) *Room {
	return &Room{
		id:         id,
		phase:      race.PhaseNotStarted,
		lastActive: time.Now(),
	}
}

// ID returns the room's invite code.
func (r *Room) ID() string { return r.id }

// Size returns the number of connected participants.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Phase returns the room's current phase.
func (r *Room) Phase() race.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// snapshot builds the full roster in join order. Callers hold r.mu.
func (r *Room) snapshotLocked() []race.Player {
	players := make([]race.Player, 0, len(r.members))
	for _, m := range r.members {
		players = append(players, race.Player{ID: m.id, Name: m.name, Score: m.score})
	}
	return players
}

// broadcastLocked queues an event for every member. Callers hold r.mu; the
// actual writes happen on each member's writeLoop, so a stalled peer never
// blocks the room.
func (r *Room) broadcastLocked(event string, data interface{}) {
	for _, m := range r.members {
		m.enqueue(event, data)
	}
}

// join adds a participant: the joiner gets the full roster snapshot and the
// current host, everyone else gets player-joined. The earliest joiner of an
// empty room becomes host via an explicit new-host broadcast.
func (r *Room) join(id, name string, sess *socket.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	for _, m := range r.members {
		if m.id == id {
			return
		}
	}

	joined := &member{id: id, name: name, sess: sess, send: make(chan envelope, sendQueueSize)}
	go joined.writeLoop()

	r.broadcastLocked(race.EventPlayerJoined, race.Player{ID: id, Name: name})
	r.members = append(r.members, joined)

	joined.enqueue(race.EventPlayers, r.snapshotLocked())

	if r.host == "" {
		r.host = id
		r.broadcastLocked(race.EventNewHost, r.host)
	} else {
		joined.enqueue(race.EventNewHost, r.host)
	}
}

// leave removes a participant and broadcasts player-left. When the host
// departs, the earliest remaining joiner is promoted with an explicit
// new-host broadcast; clients never have to infer the vacancy.
func (r *Room) leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	idx := -1
	for i, m := range r.members {
		if m.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	departed := r.members[idx]
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	departed.dismiss()
	r.broadcastLocked(race.EventPlayerLeft, id)

	if r.host == id {
		r.host = ""
		if len(r.members) > 0 {
			r.host = r.members[0].id
			r.broadcastLocked(race.EventNewHost, r.host)
		}
	}
}

// start begins a race on behalf of a participant. Non-host requests and
// requests during an active race are answered with an error event to the
// requester only.
func (r *Room) start(id, paragraph string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	requester := r.memberLocked(id)
	if requester == nil {
		return
	}
	if r.host != id {
		requester.enqueue(race.EventError, "Only the host can start the game")
		return
	}
	if r.phase == race.PhaseInProgress {
		requester.enqueue(race.EventError, "Game is already in progress")
		return
	}

	r.phase = race.PhaseInProgress
	r.paragraph = paragraph
	for _, m := range r.members {
		m.score = 0
		r.broadcastLocked(race.EventPlayerScore, race.ScorePayload{ID: m.id, Score: 0})
	}
	r.broadcastLocked(race.EventGameStarted, paragraph)
}

// typed recomputes a participant's score from their full buffer and
// broadcasts it. The first participant to complete the paragraph finishes
// the race for everyone. Buffers outside an active race are dropped.
func (r *Room) typed(id, buffer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActive = time.Now()

	if r.phase != race.PhaseInProgress {
		return
	}
	m := r.memberLocked(id)
	if m == nil {
		return
	}

	m.score = progressScore(r.paragraph, buffer)
	r.broadcastLocked(race.EventPlayerScore, race.ScorePayload{ID: m.id, Score: m.score})

	if m.score >= 100 {
		r.phase = race.PhaseFinished
		r.broadcastLocked(race.EventGameFinished, nil)
	}
}

func (r *Room) memberLocked(id string) *member {
	for _, m := range r.members {
		if m.id == id {
			return m
		}
	}
	return nil
}

// idleSince reports whether the room is empty and untouched since the cutoff.
func (r *Room) idleSince(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0 && r.lastActive.Before(cutoff)
}

// progressScore is the percentage of the paragraph covered by the longest
// correct prefix of the typed buffer. The server is the sole score
// authority; clients only ever display this value.
func progressScore(paragraph, buffer string) float64 {
	if paragraph == "" {
		return 0
	}

	target := []rune(paragraph)
	typed := []rune(buffer)

	matched := 0
	for matched < len(target) && matched < len(typed) {
		if typed[matched] != target[matched] {
			break
		}
		matched++
	}

	return float64(matched) * 100 / float64(len(target))
}
