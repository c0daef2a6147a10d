package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hackmate/pkg/wire"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	dialWait  = 10 * time.Second
)

// SocketConfig configures the session-wide socket.
type SocketConfig struct {
	// URL of the websocket endpoint, e.g. ws://localhost:8080/ws/chat.
	URL    string
	UserID string

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration

	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Socket is the single long-lived connection of a client session. It is
// shared by every conversation the session opens and reconnects with a
// fixed delay and a bounded number of attempts when the link drops.
type Socket struct {
	cfg    SocketConfig
	dialer *websocket.Dialer
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	listeners map[string]map[uint64]Handler
	nextID    uint64
	rooms     map[string]string // teamID -> userID

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSocket applies defaults to cfg and returns an unconnected socket.
func NewSocket(cfg SocketConfig) *Socket {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = dialWait
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Socket{
		cfg:       cfg,
		dialer:    dialer,
		logger:    logger,
		listeners: make(map[string]map[uint64]Handler),
		rooms:     make(map[string]string),
		done:      make(chan struct{}),
	}
}

// Connect dials the server and starts the read loop. A failed first dial
// is retried with the reconnect policy until ctx ends or the attempts run
// out. Later drops are recovered in the background.
func (s *Socket) Connect(ctx context.Context) error {
	conn, err := s.dial(ctx)
	for attempt := 1; err != nil && attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		s.logger.Warn("socket connect failed", "attempt", attempt, "max_attempts", s.cfg.MaxReconnectAttempts, "error", err)
		if werr := s.wait(ctx); werr != nil {
			return werr
		}
		conn, err = s.dial(ctx)
	}
	if err != nil {
		return err
	}
	s.attach(conn)
	s.logger.Info("socket connected", "url", s.cfg.URL, "user_id", s.cfg.UserID)

	s.wg.Add(1)
	go s.run(conn)
	s.dispatch(EventConnected, nil)
	return nil
}

// Connected reports whether a connection is currently up.
func (s *Socket) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("user_id", s.cfg.UserID)
	u.RawQuery = q.Encode()

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

func (s *Socket) attach(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Socket) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

func (s *Socket) run(conn *websocket.Conn) {
	defer s.wg.Done()

	for {
		err := s.readLoop(conn)
		s.detach(conn)

		select {
		case <-s.done:
			return
		default:
		}

		s.logger.Warn("socket disconnected", "error", err)
		s.dispatch(EventDisconnected, nil)

		conn = s.reconnect()
		if conn == nil {
			select {
			case <-s.done:
			default:
				s.dispatch(EventReconnectFailed, nil)
			}
			return
		}
		select {
		case <-s.done:
			conn.Close()
			return
		default:
		}
		s.attach(conn)
		s.rejoin()
		s.dispatch(EventConnected, nil)
	}
}

func (s *Socket) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		s.dispatch(env.Event, env.Data)
	}
}

func (s *Socket) reconnect() *websocket.Conn {
	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		if s.wait(context.Background()) != nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandshakeTimeout)
		conn, err := s.dial(ctx)
		cancel()
		if err == nil {
			s.logger.Info("socket reconnected", "attempt", attempt)
			return conn
		}
		s.logger.Warn("socket reconnect failed", "attempt", attempt, "max_attempts", s.cfg.MaxReconnectAttempts, "error", err)
	}
	s.logger.Error("socket reconnect attempts exhausted", "attempts", s.cfg.MaxReconnectAttempts)
	return nil
}

// wait sleeps for the reconnect delay.
func (s *Socket) wait(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Socket) rejoin() {
	s.mu.RLock()
	rooms := make(map[string]string, len(s.rooms))
	for teamID, userID := range s.rooms {
		rooms[teamID] = userID
	}
	s.mu.RUnlock()

	for teamID, userID := range rooms {
		if err := s.Emit(wire.EventJoinTeamRoom, wire.Room{UserID: userID, TeamID: teamID}); err != nil {
			s.logger.Warn("rejoin team room failed", "team_id", teamID, "error", err)
		}
	}
}

func (s *Socket) dispatch(event string, data json.RawMessage) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.listeners[event]))
	for _, h := range s.listeners[event] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug("no listener for event", "event", event)
		return
	}
	for _, h := range handlers {
		h(data)
	}
}

// On registers h for event and returns a func that removes it.
func (s *Socket) On(event string, h Handler) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.listeners[event] == nil {
		s.listeners[event] = make(map[uint64]Handler)
	}
	s.listeners[event][id] = h
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners[event], id)
			if len(s.listeners[event]) == 0 {
				delete(s.listeners, event)
			}
			s.mu.Unlock()
		})
	}
}

// Emit writes one event frame. It returns ErrNotConnected while the socket
// is down; nothing is queued.
func (s *Socket) Emit(event string, payload any) error {
	env, err := wire.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// JoinRoom joins a team room. The room is remembered and rejoined after
// every reconnect, even when this emit fails.
func (s *Socket) JoinRoom(userID, teamID string) error {
	s.mu.Lock()
	s.rooms[teamID] = userID
	s.mu.Unlock()
	return s.Emit(wire.EventJoinTeamRoom, wire.Room{UserID: userID, TeamID: teamID})
}

// LeaveRoom leaves a team room and forgets it.
func (s *Socket) LeaveRoom(userID, teamID string) error {
	s.mu.Lock()
	delete(s.rooms, teamID)
	s.mu.Unlock()
	return s.Emit(wire.EventLeaveTeamRoom, wire.Room{UserID: userID, TeamID: teamID})
}

// Close stops reconnecting, closes the connection and waits for the read
// loop to exit.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn != nil {
			s.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			s.writeMu.Unlock()
			conn.Close()
		}
	})
	s.wg.Wait()
	return nil
}
