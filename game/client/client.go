package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/typerush/typerush-go/game/race"
	"github.com/typerush/typerush-go/transport/socket"
)

var (
	ErrEmptyRoomID     = errors.New("room id must not be empty")
	ErrEmptyName       = errors.New("participant name must not be empty")
	ErrAlreadyJoined   = errors.New("client already joined a room")
	ErrNotJoined       = errors.New("client has not joined a room")
	ErrStartNotAllowed = errors.New("start requires host role outside an active race")
)

// Notifier receives server-reported error messages. It is the toast analog:
// messages are surfaced verbatim and cause no state change or retry.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Snapshot is an immutable view of the room handed to the presentation
// collaborator after every reconciliation.
type Snapshot struct {
	SelfID      string
	Host        string
	Phase       race.Phase
	Paragraph   string
	Input       string
	Players     []race.Player
	Leaderboard []race.Player
}

// RoomClient owns one transport session and one room state machine for a
// single room membership. Notifier and OnChange should be set before Join;
// they are not re-read safely afterwards.
type RoomClient struct {
	serverURL string

	// Notifier receives error event messages. Optional.
	Notifier Notifier

	// OnChange receives a snapshot after every applied event. Optional.
	// It runs on the session's dispatch goroutine, so it must not block.
	OnChange func(Snapshot)

	mu   sync.Mutex
	sess *socket.Session
	room *race.Room
}

// New creates a RoomClient targeting a TypeRush server URL.
func New(serverURL string) *RoomClient {
	return &RoomClient{serverURL: serverURL}
}

// Join establishes the session and announces the participant. The handler
// table is installed in full before dispatch starts, so neither the server's
// connect greeting nor the initial roster snapshot can slip past an
// unregistered handler. Join may be called once per RoomClient.
func (c *RoomClient) Join(ctx context.Context, roomID, name string) error {
	if roomID == "" {
		return ErrEmptyRoomID
	}
	if name == "" {
		return ErrEmptyName
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return ErrAlreadyJoined
	}

	sess, err := socket.Dial(ctx, c.serverURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.serverURL, err)
	}

	c.sess = sess
	c.room = race.NewRoom()
	c.registerHandlers(sess)

	sess.OnDisconnect(func(err error) {
		if err != nil && c.Notifier != nil {
			c.Notifier.Notify(fmt.Sprintf("connection lost: %v", err))
		}
	})
	sess.Start()

	sess.Emit(race.EventJoinGame, race.JoinPayload{GameID: roomID, Name: name})
	return nil
}

// registerHandlers installs the complete event table on a fresh session.
// Registration replaces by name, so rebuilding the table can never stack a
// duplicate reconciliation path.
func (c *RoomClient) registerHandlers(sess *socket.Session) {
	sess.On(race.EventConnect, func(data json.RawMessage) {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			log.Printf("client: bad connect payload: %v", err)
			return
		}
		c.apply(func(r *race.Room) bool {
			r.SetSelfID(id)
			return true
		})
	})

	sess.On(race.EventPlayers, func(data json.RawMessage) {
		var players []race.Player
		if err := json.Unmarshal(data, &players); err != nil {
			log.Printf("client: bad players payload: %v", err)
			return
		}
		c.apply(func(r *race.Room) bool {
			r.ApplyRoster(players)
			return true
		})
	})

	sess.On(race.EventPlayerJoined, func(data json.RawMessage) {
		var p race.Player
		if err := json.Unmarshal(data, &p); err != nil {
			log.Printf("client: bad player-joined payload: %v", err)
			return
		}
		c.apply(func(r *race.Room) bool {
			r.ApplyPlayerJoined(p)
			return true
		})
	})

	sess.On(race.EventPlayerLeft, func(data json.RawMessage) {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			log.Printf("client: bad player-left payload: %v", err)
			return
		}
		c.apply(func(r *race.Room) bool {
			r.ApplyPlayerLeft(id)
			return true
		})
	})

	sess.On(race.EventPlayerScore, func(data json.RawMessage) {
		var score race.ScorePayload
		if err := json.Unmarshal(data, &score); err != nil {
			log.Printf("client: bad player-score payload: %v", err)
			return
		}
		c.apply(func(r *race.Room) bool {
			r.ApplyScore(score.ID, score.Score)
			return true
		})
	})

	sess.On(race.EventGameStarted, func(data json.RawMessage) {
		var paragraph string
		if err := json.Unmarshal(data, &paragraph); err != nil {
			log.Printf("client: bad game-started payload: %v", err)
			return
		}
		c.apply(func(r *race.Room) bool {
			if !r.ApplyGameStarted(paragraph) {
				log.Printf("client: ignoring game-started while already in progress")
				return false
			}
			return true
		})
	})

	sess.On(race.EventGameFinished, func(json.RawMessage) {
		c.apply(func(r *race.Room) bool {
			return r.ApplyGameFinished()
		})
	})

	sess.On(race.EventNewHost, func(data json.RawMessage) {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			log.Printf("client: bad new-host payload: %v", err)
			return
		}
		c.apply(func(r *race.Room) bool {
			r.ApplyNewHost(id)
			return true
		})
	})

	sess.On(race.EventError, func(data json.RawMessage) {
		var message string
		if err := json.Unmarshal(data, &message); err != nil {
			message = string(data)
		}
		if c.Notifier != nil {
			c.Notifier.Notify(message)
		}
	})
}

// apply runs one reconciliation rule under the client lock and publishes a
// snapshot when the rule reports a change.
func (c *RoomClient) apply(rule func(*race.Room) bool) {
	c.mu.Lock()
	if c.room == nil {
		c.mu.Unlock()
		return
	}
	changed := rule(c.room)
	var snap Snapshot
	if changed {
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()

	if changed && c.OnChange != nil {
		c.OnChange(snap)
	}
}

// Start requests a race start. The request is emitted only when the local
// participant holds the host role and no race is in progress; the phase
// itself changes only when the server's game-started event comes back.
func (c *RoomClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ErrNotJoined
	}
	if !c.room.CanStart() {
		return ErrStartNotAllowed
	}
	c.sess.Emit(race.EventStartGame, nil)
	return nil
}

// Type replaces the local transcription buffer and forwards the full buffer
// upstream. Outside an in-progress race the keystroke is inert and nothing
// is emitted. It reports whether the buffer was accepted.
func (c *RoomClient) Type(buffer string) bool {
	c.mu.Lock()
	if c.sess == nil || !c.room.SetInput(buffer) {
		c.mu.Unlock()
		return false
	}
	snap := c.snapshotLocked()
	c.sess.Emit(race.EventPlayerTyped, buffer)
	c.mu.Unlock()

	if c.OnChange != nil {
		c.OnChange(snap)
	}
	return true
}

// Snapshot returns the current room view.
func (c *RoomClient) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *RoomClient) snapshotLocked() Snapshot {
	if c.room == nil {
		return Snapshot{Phase: race.PhaseNotStarted}
	}
	return Snapshot{
		SelfID:      c.room.SelfID(),
		Host:        c.room.Host(),
		Phase:       c.room.Phase(),
		Paragraph:   c.room.Paragraph(),
		Input:       c.room.Input(),
		Players:     c.room.Players(),
		Leaderboard: c.room.Leaderboard(),
	}
}

// Done is closed when the underlying session has shut down. Before Join it
// returns a nil channel, which blocks forever.
func (c *RoomClient) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.Done()
}

// Close tears the membership down: the session unregisters every handler,
// sends the departure notice best-effort, and closes the channel. Close is
// safe to call multiple times and before Join.
func (c *RoomClient) Close() error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Close()
}

// Verify performs the lobby round-trip for an invite code on a throwaway
// session: it announces the code and waits for the server's verified or
// invalid reply. The session is closed before returning.
func Verify(ctx context.Context, serverURL, code string) (bool, error) {
	if code == "" {
		return false, ErrEmptyRoomID
	}

	sess, err := socket.Dial(ctx, serverURL)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	defer sess.Close()

	reply := make(chan bool, 1)
	sess.On(race.EventVerified, func(json.RawMessage) {
		select {
		case reply <- true:
		default:
		}
	})
	sess.On(race.EventInvalid, func(json.RawMessage) {
		select {
		case reply <- false:
		default:
		}
	})
	sess.Start()

	sess.Emit(race.EventJoinGame, race.JoinPayload{GameID: code, Name: "user"})

	select {
	case ok := <-reply:
		return ok, nil
	case <-sess.Done():
		return false, errors.New("connection closed before verification reply")
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(10 * time.Second):
		return false, errors.New("verification timed out")
	}
}
