package chatclient

import "errors"

var (
	// ErrEmptyBody is returned for sends whose body is empty after trimming.
	ErrEmptyBody = errors.New("chatclient: message body is empty")
	// ErrNoConversation is returned when no conversation is active.
	ErrNoConversation = errors.New("chatclient: no active conversation")
	// ErrUnknownMessage is returned when a message id is not in the store.
	ErrUnknownMessage = errors.New("chatclient: unknown message")
	// ErrNotRetryable is returned when retrying a message that has not failed.
	ErrNotRetryable = errors.New("chatclient: message is not in failed state")
	// ErrNotConnected is returned by Socket.Emit while no connection is up.
	ErrNotConnected = errors.New("chatclient: socket not connected")
	// ErrClosed is returned by Socket.Connect once the socket is closed.
	ErrClosed = errors.New("chatclient: socket closed")
)
