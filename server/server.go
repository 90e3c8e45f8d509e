package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/typerush/typerush-go/game/race"
	"github.com/typerush/typerush-go/transport/socket"
)

// maxInviteCodeLen bounds invite codes; the lobby generates UUIDs (36 chars)
// but any non-empty code up to this length is accepted.
const maxInviteCodeLen = 64

// Server is the practice server: room registry, paragraph source, and the
// HTTP/WebSocket surface.
type Server struct {
	registry   *Registry
	paragraphs *ParagraphSource
	router     *mux.Router
}

// NewServer creates a practice server backed by a paragraph source.
func NewServer(paragraphs *ParagraphSource) *Server {
	s := &Server{
		registry:   NewRegistry(),
		paragraphs: paragraphs,
		router:     mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP surface.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/rooms", s.handleListRooms).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry exposes the room registry for cleanup routines.
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	type roomInfo struct {
		ID      string     `json:"id"`
		Players int        `json:"players"`
		Phase   race.Phase `json:"phase"`
	}

	rooms := s.registry.List()
	infos := make([]roomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, roomInfo{ID: room.ID(), Players: room.Size(), Phase: room.Phase()})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(infos),
		"rooms": infos,
	})
}

// handleWebSocket upgrades the request and runs one participant session.
// The session is greeted with its connection id, then driven entirely by
// events until it leaves or drops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := socket.Accept(w, r)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	sess.Emit(race.EventConnect, connID)

	var (
		room      *Room
		departure sync.Once
	)

	// leaveRoom runs at most once per connection, whether the participant
	// said leave, disconnected, or both.
	leaveRoom := func() {
		departure.Do(func() {
			if room != nil {
				room.leave(connID)
				log.Printf("server: %s left room %s (%d remaining)",
					connID, room.ID(), room.Size())
			}
		})
	}

	sess.On(race.EventJoinGame, func(data json.RawMessage) {
		var join race.JoinPayload
		if err := json.Unmarshal(data, &join); err != nil {
			sess.Emit(race.EventError, "malformed join request")
			return
		}
		if join.GameID == "" || len(join.GameID) > maxInviteCodeLen {
			sess.Emit(race.EventInvalid, nil)
			return
		}
		if room != nil {
			// One membership per connection.
			return
		}
		if join.Name == "" {
			join.Name = "Anonymous"
		}

		sess.Emit(race.EventVerified, join.GameID)

		room = s.registry.GetOrCreate(join.GameID)
		room.join(connID, join.Name, sess)
		log.Printf("server: %s (%s) joined room %s (%d players)",
			join.Name, connID, room.ID(), room.Size())
	})

	sess.On(race.EventStartGame, func(json.RawMessage) {
		if room == nil {
			return
		}
		room.start(connID, s.paragraphs.Pick())
	})

	sess.On(race.EventPlayerTyped, func(data json.RawMessage) {
		if room == nil {
			return
		}
		var buffer string
		if err := json.Unmarshal(data, &buffer); err != nil {
			return
		}
		room.typed(connID, buffer)
	})

	sess.On(race.EventLeave, func(json.RawMessage) {
		leaveRoom()
	})

	go func() {
		<-sess.Done()
		leaveRoom()
	}()

	sess.Start()
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
