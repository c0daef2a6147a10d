package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidRole = errors.New("invalid role")
	ErrInvalidUUID = errors.New("invalid user uuid")
	ErrEmailTaken  = errors.New("user exists with that email")
)

type UserService interface {
	CreateUser(ctx context.Context, name, email, role, profilePicURL string) (User, error)
	UpdateUserByUUID(ctx context.Context, uuid string, u User) (User, error)
	GetUserByUUID(ctx context.Context, uuid string) (User, error)
	ListUsers(ctx context.Context, role string, page, limit int) ([]User, int64, error)
	// ModeratorEmails lists the addresses of every user with the moderator role.
	ModeratorEmails(ctx context.Context) ([]string, error)
}

type userService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) CreateUser(ctx context.Context, name, email, role, profilePicURL string) (User, error) {
	if role == "" {
		role = RoleStudent
	}
	if !validRole(role) {
		return User{}, ErrInvalidRole
	}
	u, err := s.repo.CreateUser(ctx, strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(email)), role, profilePicURL)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

func (s *userService) UpdateUserByUUID(ctx context.Context, id string, u User) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrInvalidUUID
	}
	if u.Role != "" && !validRole(u.Role) {
		return User{}, ErrInvalidRole
	}
	return s.repo.UpdateUserByUUID(ctx, id, u)
}

func (s *userService) GetUserByUUID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrInvalidUUID
	}
	return s.repo.GetUserByUUID(ctx, id)
}

func (s *userService) ListUsers(ctx context.Context, role string, page, limit int) ([]User, int64, error) {
	if role != "" && !validRole(role) {
		return nil, 0, ErrInvalidRole
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.ListUsers(ctx, role, limit, offset)
}

func (s *userService) ModeratorEmails(ctx context.Context) ([]string, error) {
	return s.repo.ListEmailsByRole(ctx, RoleModerator)
}
