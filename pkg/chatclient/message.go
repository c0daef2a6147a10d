package chatclient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"hackmate/pkg/wire"
)

// State is the delivery state of a message held by the client.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

const placeholderPrefix = "tmp-"

// Kind tells direct conversations apart from team conversations.
type Kind int

const (
	KindDirect Kind = iota
	KindTeam
)

func (k Kind) String() string {
	if k == KindTeam {
		return "team"
	}
	return "direct"
}

// Target identifies the peer or team a conversation is held with.
type Target struct {
	Kind Kind
	ID   string
}

// Direct returns the target for a one-to-one conversation with peerID.
func Direct(peerID string) Target { return Target{Kind: KindDirect, ID: peerID} }

// Team returns the target for the group conversation of teamID.
func Team(teamID string) Target { return Target{Kind: KindTeam, ID: teamID} }

func (t Target) String() string { return t.Kind.String() + ":" + t.ID }

// Message is a chat message as the client holds it.
type Message struct {
	ID         string
	SenderID   string
	SenderName string
	ReceiverID string
	TeamID     string
	Body       string
	CreatedAt  time.Time
	State      State
	// CorrelationID is the placeholder identity the send was emitted with.
	// Set on optimistic entries and on server records that echo it.
	CorrelationID string
}

// NewPlaceholderID returns a locally unique identity for an optimistic entry.
// Placeholders never collide with server-issued identities.
func NewPlaceholderID() string {
	return placeholderPrefix + uuid.NewString()
}

// IsPlaceholder reports whether id was generated by NewPlaceholderID.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

// FromWire converts a server record into a confirmed client message.
func FromWire(m wire.Message) Message {
	return Message{
		ID:            m.ID,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		ReceiverID:    m.ReceiverID,
		TeamID:        m.TeamID,
		Body:          m.Message,
		CreatedAt:     m.CreatedAt,
		State:         StateConfirmed,
		CorrelationID: m.MessageID,
	}
}
