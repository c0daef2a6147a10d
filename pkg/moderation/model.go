package moderation

import "time"

const (
	ReasonSpam          = "spam"
	ReasonHarassment    = "harassment"
	ReasonInappropriate = "inappropriate"
	ReasonOther         = "other"
)

const (
	StatusOpen      = "open"
	StatusReviewed  = "reviewed"
	StatusDismissed = "dismissed"
)

// EventMessageReported is the event name published for every new report.
const EventMessageReported = "message.reported"

type Report struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"messageId"`
	ReporterID string    `json:"reporterId"`
	Reason     string    `json:"reason"`
	Details    string    `json:"details"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`

	// Snapshot of the reported message.
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

type ReportList struct {
	Items []Report `json:"items"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

// ReportedEvent is the Kafka payload for EventMessageReported.
type ReportedEvent struct {
	Event      string    `json:"event"`
	ReportID   string    `json:"reportId"`
	MessageID  string    `json:"messageId"`
	ReporterID string    `json:"reporterId"`
	SenderID   string    `json:"senderId"`
	Reason     string    `json:"reason"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func isValidReason(reason string) bool {
	switch reason {
	case ReasonSpam, ReasonHarassment, ReasonInappropriate, ReasonOther:
		return true
	}
	return false
}

func isValidStatus(status string) bool {
	switch status {
	case StatusOpen, StatusReviewed, StatusDismissed:
		return true
	}
	return false
}
