package socket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next keepalive from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Paragraphs and full typing
	// buffers ride in single frames, so this is roomier than a chat line.
	maxMessageSize = 16384
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Frame is the wire envelope for one named event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler consumes the payload of one inbound event occurrence.
type Handler func(data json.RawMessage)

// Session is one end of a named-event channel over a WebSocket. A Session is
// owned by exactly one room membership and is not reused across rejoins.
type Session struct {
	conn *websocket.Conn

	mu       sync.Mutex
	handlers map[string]Handler
	closed   bool

	writeMu sync.Mutex

	// leaveEvent, when non-empty, is emitted best-effort during Close.
	leaveEvent string

	// pinger is true on the dialing side, which drives keepalive.
	pinger bool

	onDisconnect func(error)

	startOnce sync.Once
	start     chan struct{}
	done      chan struct{}
}

// Dial establishes a client session against a TypeRush server URL
// (ws:// or wss://). The returned session does not dispatch inbound frames
// until Start is called, so the full handler table can be registered without
// racing the peer's greeting.
func Dial(ctx context.Context, url string) (*Session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	s := newSession(conn)
	s.leaveEvent = "leave"
	s.pinger = true
	go s.readLoop()
	go s.pingLoop()
	return s, nil
}

// Accept upgrades an incoming HTTP request into a server-side session.
func Accept(w http.ResponseWriter, r *http.Request) (*Session, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	s := newSession(conn)
	go s.readLoop()
	return s, nil
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		conn:     conn,
		handlers: make(map[string]Handler),
		start:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start releases inbound dispatch. Until Start, frames sit unread in the
// connection's buffers, so a one-shot event sent by the peer right after the
// handshake cannot slip past a handler registered moments later.
func (s *Session) Start() {
	s.startOnce.Do(func() { close(s.start) })
}

// On registers the handler for an event name, replacing any previous handler
// for the same name. A nil handler unregisters the name.
func (s *Session) On(event string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if handler == nil {
		delete(s.handlers, event)
		return
	}
	s.handlers[event] = handler
}

// Emit sends a named event with an optional payload. The send is
// best-effort: emitting on a closed session is a silent no-op, and there is
// no delivery acknowledgment.
func (s *Session) Emit(event string, data interface{}) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.writeFrame(event, data)
}

func (s *Session) writeFrame(event string, data interface{}) {
	frame := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Printf("socket: failed to marshal %q payload: %v", event, err)
			return
		}
		frame.Data = raw
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("socket: failed to marshal %q frame: %v", event, err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("socket: write %q failed: %v", event, err)
	}
}

// OnDisconnect registers a callback invoked once when the receive loop ends
// for any reason other than a local Close.
func (s *Session) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// Done is closed when the session has fully shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the session down: every handler is unregistered first so
// nothing fires against a discarded owner, then a departure notice is sent
// best-effort, then the channel is terminated. Close is safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handlers = make(map[string]Handler)
	leave := s.leaveEvent
	s.mu.Unlock()

	if leave != "" {
		s.writeFrame(leave, nil)
	}

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	s.writeMu.Unlock()

	err := s.conn.Close()

	// Release a receive loop still waiting on Start so it can observe the
	// closed connection and finish.
	s.Start()

	return err
}

// readLoop pumps inbound frames and dispatches them serially. Because every
// handler runs here, no two reconciliation rules for one session can ever
// execute concurrently.
func (s *Session) readLoop() {
	defer close(s.done)

	<-s.start

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	if s.pinger {
		s.conn.SetPongHandler(func(string) error {
			s.conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
	} else {
		// The accepting side refreshes its deadline on the dialer's pings.
		defaultPing := s.conn.PingHandler()
		s.conn.SetPingHandler(func(appData string) error {
			s.conn.SetReadDeadline(time.Now().Add(pongWait))
			return defaultPing(appData)
		})
	}

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			log.Printf("socket: dropping malformed frame: %v", err)
			continue
		}

		s.mu.Lock()
		handler := s.handlers[frame.Event]
		s.mu.Unlock()

		if handler != nil {
			handler(frame.Data)
		}
	}
}

// finish marks the session closed after a read failure and notifies the
// disconnect callback unless the shutdown was locally initiated.
func (s *Session) finish(err error) {
	s.mu.Lock()
	wasClosed := s.closed
	s.closed = true
	s.handlers = make(map[string]Handler)
	notify := s.onDisconnect
	s.mu.Unlock()

	s.conn.Close()

	if !wasClosed && notify != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			err = nil
		}
		notify(err)
	}
}

// pingLoop drives keepalive from the dialing side.
func (s *Session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
