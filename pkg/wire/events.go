// Package wire holds the socket protocol shared by the chat server and its clients.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client -> server events.
const (
	EventSendMessage     = "sendMessage"
	EventSendTeamMessage = "sendTeamMessage"
	EventJoinTeamRoom    = "joinTeamRoom"
	EventLeaveTeamRoom   = "leaveTeamRoom"
	EventTypingInTeam    = "typingInTeam"
	EventStopTypingTeam  = "stopTypingInTeam"
	EventTyping          = "typing"
	EventStopTyping      = "stopTyping"
)

// Server -> client events.
const (
	EventNewMessage        = "newMessage"
	EventNewTeamMessage    = "newTeamMessage"
	EventMessageSent       = "messageSent"
	EventTeamMessageSent   = "teamMessageSent"
	EventMessageError      = "messageError"
	EventUserTypingInTeam  = "userTypingInTeam"
	EventUserStoppedInTeam = "userStoppedTypingInTeam"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventMessagesRead      = "messagesRead"
	EventRoomJoined        = "roomJoined"
)

// Envelope is the frame every socket message travels in.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an envelope for event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if event == "" {
		return Envelope{}, fmt.Errorf("wire: event name required")
	}
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: encode %s: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("wire: %s has no payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("wire: decode %s: %w", e.Event, err)
	}
	return nil
}

// SendMessage is emitted for both direct and team sends. For team sends
// ReceiverID carries the team identity. MessageID is the client's
// correlation identity and is echoed back on ack or error.
type SendMessage struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message"`
	MessageID  string `json:"messageId,omitempty"`
}

// Message is the server's canonical message record.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	ReceiverID string    `json:"receiverId"`
	TeamID     string    `json:"teamId,omitempty"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
	MessageID  string    `json:"messageId,omitempty"`
	Read       bool      `json:"read"`
}

// MessageError reports a rejected send.
type MessageError struct {
	Error     string `json:"error"`
	MessageID string `json:"messageId,omitempty"`
}

// Room is the join/leave payload for team rooms.
type Room struct {
	UserID string `json:"userId"`
	TeamID string `json:"teamId"`
}

// Typing is used for typing signals in both directions. TeamID is set for
// team chat, ReceiverID for direct chat.
type Typing struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName,omitempty"`
	TeamID     string `json:"teamId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
}

// MessagesRead tells a sender that their messages were read.
type MessagesRead struct {
	ReaderID string `json:"readerId"`
	PeerID   string `json:"peerId,omitempty"`
	TeamID   string `json:"teamId,omitempty"`
}
