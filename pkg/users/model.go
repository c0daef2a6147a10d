package users

import "time"

const (
	RoleStudent   = "student"
	RoleMentor    = "mentor"
	RoleModerator = "moderator"
)

type User struct {
	ID            int64     `json:"id"`
	UUID          string    `json:"uuid"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	ProfilePicURL string    `json:"profile_pic_url"`
	LastActiveAt  int64     `json:"last_active_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type UserList struct {
	Items []User `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

func validRole(role string) bool {
	switch role {
	case RoleStudent, RoleMentor, RoleModerator:
		return true
	}
	return false
}
