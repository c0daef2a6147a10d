package teams

import "time"

const (
	MemberRoleMember = "member"
	MemberRoleLead   = "lead"
	MemberRoleMentor = "mentor"
)

type Team struct {
	ID          int64     `json:"id"`
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Hackathon   string    `json:"hackathon"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member is a participant's view inside one team.
type Member struct {
	UserUUID string    `json:"user_uuid"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type TeamList struct {
	Items []Team `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

func isValidMemberRole(role string) bool {
	switch role {
	case MemberRoleMember, MemberRoleLead, MemberRoleMentor:
		return true
	default:
		return false
	}
}
