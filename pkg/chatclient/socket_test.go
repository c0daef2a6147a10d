package chatclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"hackmate/pkg/wire"
)

// echoServer accepts websocket connections, records every frame and lets
// tests push frames and drop the current connection.
type echoServer struct {
	t        *testing.T
	upgrader websocket.Upgrader
	srv      *httptest.Server

	// rejects is the number of upgrade requests to refuse before accepting.
	rejects atomic.Int32

	mu     sync.Mutex
	conns  []*websocket.Conn
	frames chan wire.Envelope
	users  chan string
}

func newEchoServer(t *testing.T) (*echoServer, string) {
	t.Helper()
	es := &echoServer{
		t:      t,
		frames: make(chan wire.Envelope, 32),
		users:  make(chan string, 8),
	}
	es.srv = httptest.NewServer(http.HandlerFunc(es.serve))
	t.Cleanup(es.srv.Close)
	return es, "ws" + strings.TrimPrefix(es.srv.URL, "http") + "/ws/chat"
}

func (es *echoServer) serve(w http.ResponseWriter, r *http.Request) {
	if es.rejects.Add(-1) >= 0 {
		http.Error(w, "warming up", http.StatusServiceUnavailable)
		return
	}
	conn, err := es.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	es.mu.Lock()
	es.conns = append(es.conns, conn)
	es.mu.Unlock()
	es.users <- r.URL.Query().Get("user_id")

	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		es.frames <- env
	}
}

func (es *echoServer) push(event string, payload any) {
	es.t.Helper()
	env, err := wire.NewEnvelope(event, payload)
	require.NoError(es.t, err)
	es.mu.Lock()
	conn := es.conns[len(es.conns)-1]
	es.mu.Unlock()
	require.NoError(es.t, conn.WriteJSON(env))
}

func (es *echoServer) dropCurrent() {
	es.mu.Lock()
	conn := es.conns[len(es.conns)-1]
	es.mu.Unlock()
	conn.Close()
}

func (es *echoServer) nextFrame(t *testing.T) wire.Envelope {
	t.Helper()
	select {
	case env := <-es.frames:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return wire.Envelope{}
	}
}

func waitUser(t *testing.T, es *echoServer) string {
	t.Helper()
	select {
	case u := <-es.users:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no connection received")
		return ""
	}
}

func TestSocket_EmitAndReceive(t *testing.T) {
	es, url := newEchoServer(t)
	s := NewSocket(SocketConfig{URL: url, UserID: "u-1"})
	t.Cleanup(func() { s.Close() })

	require.ErrorIs(t, s.Emit(wire.EventTyping, wire.Typing{UserID: "u-1"}), ErrNotConnected)

	received := make(chan wire.Message, 1)
	s.On(wire.EventNewMessage, func(data json.RawMessage) {
		var m wire.Message
		if json.Unmarshal(data, &m) == nil {
			received <- m
		}
	})

	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, "u-1", waitUser(t, es))
	require.True(t, s.Connected())

	require.NoError(t, s.Emit(wire.EventSendMessage, wire.SendMessage{SenderID: "u-1", ReceiverID: "u-2", Message: "hi", MessageID: "tmp-1"}))
	env := es.nextFrame(t)
	require.Equal(t, wire.EventSendMessage, env.Event)
	var sm wire.SendMessage
	require.NoError(t, env.Decode(&sm))
	require.Equal(t, "tmp-1", sm.MessageID)

	es.push(wire.EventNewMessage, wire.Message{ID: "srv-9", SenderID: "u-2", ReceiverID: "u-1", Message: "yo"})
	select {
	case m := <-received:
		require.Equal(t, "srv-9", m.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("message not dispatched")
	}
}

func TestSocket_OffStopsDelivery(t *testing.T) {
	es, url := newEchoServer(t)
	s := NewSocket(SocketConfig{URL: url, UserID: "u-1"})
	t.Cleanup(func() { s.Close() })

	var (
		mu    sync.Mutex
		count int
	)
	off := s.On(wire.EventUserTyping, func(json.RawMessage) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	seen := make(chan struct{}, 4)
	s.On(wire.EventUserStoppedTyping, func(json.RawMessage) { seen <- struct{}{} })

	require.NoError(t, s.Connect(context.Background()))
	waitUser(t, es)

	off()
	off()
	es.push(wire.EventUserTyping, wire.Typing{UserID: "u-2"})
	es.push(wire.EventUserStoppedTyping, wire.Typing{UserID: "u-2"})

	// Frames are dispatched in order, so once the second arrives the first
	// has been handled.
	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("marker event not dispatched")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, count)
}

func TestSocket_ReconnectRejoinsRooms(t *testing.T) {
	es, url := newEchoServer(t)
	s := NewSocket(SocketConfig{URL: url, UserID: "u-1", ReconnectDelay: 10 * time.Millisecond, MaxReconnectAttempts: 3})
	t.Cleanup(func() { s.Close() })

	events := make(chan string, 8)
	s.On(EventConnected, func(json.RawMessage) { events <- EventConnected })
	s.On(EventDisconnected, func(json.RawMessage) { events <- EventDisconnected })

	require.NoError(t, s.Connect(context.Background()))
	waitUser(t, es)
	require.Equal(t, EventConnected, <-events)

	require.NoError(t, s.JoinRoom("u-1", "t-1"))
	require.Equal(t, wire.EventJoinTeamRoom, es.nextFrame(t).Event)

	es.dropCurrent()
	require.Equal(t, EventDisconnected, <-events)
	waitUser(t, es)

	env := es.nextFrame(t)
	require.Equal(t, wire.EventJoinTeamRoom, env.Event)
	var room wire.Room
	require.NoError(t, env.Decode(&room))
	require.Equal(t, wire.Room{UserID: "u-1", TeamID: "t-1"}, room)
	require.Equal(t, EventConnected, <-events)

	require.NoError(t, s.LeaveRoom("u-1", "t-1"))
	require.Equal(t, wire.EventLeaveTeamRoom, es.nextFrame(t).Event)
}

func TestSocket_ReconnectGivesUp(t *testing.T) {
	es, url := newEchoServer(t)
	s := NewSocket(SocketConfig{URL: url, UserID: "u-1", ReconnectDelay: 5 * time.Millisecond, MaxReconnectAttempts: 2})
	t.Cleanup(func() { s.Close() })

	failed := make(chan struct{}, 1)
	s.On(EventReconnectFailed, func(json.RawMessage) { failed <- struct{}{} })

	require.NoError(t, s.Connect(context.Background()))
	waitUser(t, es)

	// Stop accepting and drop the link.
	es.srv.Close()
	es.dropCurrent()

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect_failed not dispatched")
	}
	require.False(t, s.Connected())
	require.ErrorIs(t, s.Emit(wire.EventTyping, wire.Typing{}), ErrNotConnected)
}

func TestSocket_ConnectRetriesTransientFailures(t *testing.T) {
	es, url := newEchoServer(t)
	es.rejects.Store(2)
	s := NewSocket(SocketConfig{URL: url, UserID: "u-1", ReconnectDelay: 5 * time.Millisecond, MaxReconnectAttempts: 3})
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Connect(context.Background()))
	require.Equal(t, "u-1", waitUser(t, es))
	require.True(t, s.Connected())
}

func TestSocket_ConnectGivesUpAfterAttempts(t *testing.T) {
	es, url := newEchoServer(t)
	es.rejects.Store(100)
	s := NewSocket(SocketConfig{URL: url, UserID: "u-1", ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 2})
	t.Cleanup(func() { s.Close() })

	require.Error(t, s.Connect(context.Background()))
	require.False(t, s.Connected())
	require.Equal(t, int32(100-3), es.rejects.Load())
}

func TestSocket_ConnectStopsWhenContextEnds(t *testing.T) {
	es, url := newEchoServer(t)
	es.rejects.Store(100)
	s := NewSocket(SocketConfig{URL: url, UserID: "u-1", ReconnectDelay: time.Hour})
	t.Cleanup(func() { s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Connect(ctx), context.DeadlineExceeded)
}
