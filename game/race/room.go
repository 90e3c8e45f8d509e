package race

import "sort"

// Room holds the client's authoritative view of one room membership:
// roster, host, phase, shared paragraph, and the local transcription buffer.
// Players keep their insertion order so leaderboard ties resolve by arrival.
type Room struct {
	selfID    string
	players   []Player
	host      string
	phase     Phase
	paragraph string
	input     string
}

// NewRoom creates an empty room in the not-started phase.
func NewRoom() *Room {
	return &Room{phase: PhaseNotStarted}
}

// SetSelfID records the local participant's connection identifier once the
// server hands it out.
func (r *Room) SetSelfID(id string) {
	r.selfID = id
}

// SelfID returns the local participant's connection identifier, or "" if the
// handshake has not completed yet.
func (r *Room) SelfID() string { return r.selfID }

// Host returns the current host id, or "" when no host is known.
func (r *Room) Host() string { return r.host }

// Phase returns the current room phase.
func (r *Room) Phase() Phase { return r.phase }

// Paragraph returns the shared text for the current or most recent race.
func (r *Room) Paragraph() string { return r.paragraph }

// Input returns the local transcription buffer.
func (r *Room) Input() string { return r.input }

// IsHost reports whether the local participant currently holds the host role.
func (r *Room) IsHost() bool {
	return r.selfID != "" && r.selfID == r.host
}

// Players returns a copy of the roster in insertion order.
func (r *Room) Players() []Player {
	out := make([]Player, len(r.players))
	copy(out, r.players)
	return out
}

// Player looks up a roster member by id.
func (r *Room) Player(id string) (Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// ApplyRoster replaces the roster wholesale with a full snapshot from the
// server. Snapshot order becomes the new insertion order.
func (r *Room) ApplyRoster(players []Player) {
	r.players = make([]Player, len(players))
	copy(r.players, players)
}

// ApplyPlayerJoined inserts a participant at the end of the roster. Applying
// it again for an id already present leaves the roster unchanged.
func (r *Room) ApplyPlayerJoined(p Player) {
	if _, ok := r.Player(p.ID); ok {
		return
	}
	r.players = append(r.players, p)
}

// ApplyPlayerLeft removes a participant by id. Removing an absent id is a
// no-op. The host value is left alone even when the host departs; only an
// explicit new-host event reassigns it.
func (r *Room) ApplyPlayerLeft(id string) {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return
		}
	}
}

// ApplyScore overwrites a participant's score. A score for an id that has
// already left is dropped rather than resurrecting the participant.
func (r *Room) ApplyScore(id string, score float64) {
	for i := range r.players {
		if r.players[i].ID == id {
			r.players[i].Score = score
			return
		}
	}
}

// ApplyGameStarted transitions into in-progress, storing the shared
// paragraph and clearing the local buffer. A duplicate game-started while
// already in-progress is ignored so an in-flight buffer is not erased.
// It reports whether the transition was applied.
func (r *Room) ApplyGameStarted(paragraph string) bool {
	if r.phase == PhaseInProgress {
		return false
	}
	r.phase = PhaseInProgress
	r.paragraph = paragraph
	r.input = ""
	return true
}

// ApplyGameFinished transitions from in-progress to finished and clears the
// local buffer. The paragraph is retained for display. Outside in-progress
// the event is ignored. It reports whether the transition was applied.
func (r *Room) ApplyGameFinished() bool {
	if r.phase != PhaseInProgress {
		return false
	}
	r.phase = PhaseFinished
	r.input = ""
	return true
}

// ApplyNewHost replaces the host id unconditionally. The client treats host
// changes as opaque reassignments; there is never more than one host value.
func (r *Room) ApplyNewHost(id string) {
	r.host = id
}

// CanStart reports whether the local participant may request a race start:
// it must hold the host role and the room must not be mid-race.
func (r *Room) CanStart() bool {
	return r.IsHost() && (r.phase == PhaseNotStarted || r.phase == PhaseFinished)
}

// SetInput replaces the local transcription buffer. Input is accepted only
// while a race is in progress; outside that phase keystrokes are inert.
// It reports whether the buffer was updated.
func (r *Room) SetInput(buffer string) bool {
	if r.phase != PhaseInProgress {
		return false
	}
	r.input = buffer
	return true
}

// Leaderboard derives the score-ordered standings from the roster: score
// descending, ties keeping roster insertion order. It is recomputed on
// demand and never stored.
func (r *Room) Leaderboard() []Player {
	board := r.Players()
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	return board
}
