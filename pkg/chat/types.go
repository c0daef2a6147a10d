package chat

import (
	"context"
	"time"
)

// NewMessage is a validated message about to be persisted. TeamID is set
// for team messages, ReceiverID for direct ones.
type NewMessage struct {
	SenderID        string
	ReceiverID      string
	TeamID          string
	Content         string
	ClientMessageID string
	SentAt          time.Time
}

// TeamDirectory answers team membership questions for room joins and team sends.
type TeamDirectory interface {
	IsMember(ctx context.Context, teamID, userID string) (bool, error)
}

// Limits bound what a single connection may send.
type Limits struct {
	MaxMessageLength int
	// RatePerSecond and Burst configure the per-connection token bucket.
	// RatePerSecond <= 0 disables limiting.
	RatePerSecond float64
	Burst         int
	HistoryLimit  int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageLength: 10000,
		RatePerSecond:    10,
		Burst:            20,
		HistoryLimit:     50,
	}
}

// MarkReadRequest is the body of PUT /messages/read.
type MarkReadRequest struct {
	SenderID   string `json:"senderId" binding:"required"`
	ReceiverID string `json:"receiverId" binding:"required"`
}

// MarkTeamReadRequest is the body of PUT /teams/:teamId/messages/read.
type MarkTeamReadRequest struct {
	UserID string `json:"userId" binding:"required"`
}
