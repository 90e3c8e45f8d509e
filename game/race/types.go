package race

// Phase represents the room lifecycle stage
type Phase string

const (
	PhaseNotStarted Phase = "not-started"
	PhaseInProgress Phase = "in-progress"
	PhaseFinished   Phase = "finished"
)

// Wire event names exchanged with the session server. Outbound events are
// emitted by the client; inbound events are reconciled into the Room.
const (
	// Client -> server
	EventJoinGame    = "join-game"
	EventStartGame   = "start-game"
	EventPlayerTyped = "player-typed"
	EventLeave       = "leave"

	// Server -> client
	EventConnect      = "connect"
	EventPlayers      = "players"
	EventPlayerJoined = "player-joined"
	EventPlayerLeft   = "player-left"
	EventPlayerScore  = "player-score"
	EventGameStarted  = "game-started"
	EventGameFinished = "game-finished"
	EventNewHost      = "new-host"
	EventError        = "error"

	// Lobby verification replies
	EventVerified = "verified"
	EventInvalid  = "invalid"
)

// Player represents one connected participant as reported by the server.
// The ID is the server-assigned connection identifier and is not stable
// across reconnects. Score is server-authoritative and never computed
// locally.
type Player struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// JoinPayload is the join-game event payload.
type JoinPayload struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
}

// ScorePayload is the player-score event payload.
type ScorePayload struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}
