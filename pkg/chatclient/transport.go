package chatclient

import "encoding/json"

// Synthetic events dispatched by Socket about its own connection state.
const (
	EventConnected       = "connect"
	EventDisconnected    = "disconnect"
	EventReconnectFailed = "reconnect_failed"
)

// Handler receives the raw payload of an inbound event.
type Handler func(data json.RawMessage)

// Transport is the session-scoped connection a Session emits on and listens
// to. Handlers may be called from another goroutine.
type Transport interface {
	Emit(event string, payload any) error
	On(event string, h Handler) (off func())
}

// RoomJoiner is implemented by transports that keep team room membership
// across reconnects.
type RoomJoiner interface {
	JoinRoom(userID, teamID string) error
	LeaveRoom(userID, teamID string) error
}
