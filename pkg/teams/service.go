package teams

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidTeam = errors.New("team name is required")
	ErrInvalidRole = errors.New("invalid member role")
	ErrInvalidUUID = errors.New("invalid uuid")
)

type TeamService interface {
	CreateTeam(ctx context.Context, input Team) (Team, error)
	GetTeam(ctx context.Context, teamUUID string) (Team, error)
	ListTeams(ctx context.Context, hackathon string, page, limit int) ([]Team, int64, error)
	ListTeamsByUser(ctx context.Context, userUUID string) ([]Team, error)
	AddMember(ctx context.Context, teamUUID, userUUID, role string) (Member, error)
	RemoveMember(ctx context.Context, teamUUID, userUUID string) error
	ListMembers(ctx context.Context, teamUUID string) ([]Member, error)
	IsMember(ctx context.Context, teamUUID, userUUID string) (bool, error)
}

// RoomLeaver drops a user from a live team room.
type RoomLeaver interface {
	LeaveRoom(teamID, userID string)
}

type teamService struct {
	repo  TeamRepository
	rooms RoomLeaver
}

// NewTeamService builds the service. rooms may be nil; when set, removed
// members are also dropped from the team's live chat room.
func NewTeamService(repo TeamRepository, rooms RoomLeaver) TeamService {
	return &teamService{repo: repo, rooms: rooms}
}

func validUUIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return ErrInvalidUUID
		}
	}
	return nil
}

func (s *teamService) CreateTeam(ctx context.Context, input Team) (Team, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Team{}, ErrInvalidTeam
	}
	return s.repo.CreateTeam(ctx, input)
}

func (s *teamService) GetTeam(ctx context.Context, teamUUID string) (Team, error) {
	if err := validUUIDs(teamUUID); err != nil {
		return Team{}, err
	}
	return s.repo.GetTeam(ctx, teamUUID)
}

func (s *teamService) ListTeams(ctx context.Context, hackathon string, page, limit int) ([]Team, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.ListTeams(ctx, hackathon, limit, offset)
}

func (s *teamService) ListTeamsByUser(ctx context.Context, userUUID string) ([]Team, error) {
	if err := validUUIDs(userUUID); err != nil {
		return nil, err
	}
	return s.repo.ListTeamsByUser(ctx, userUUID)
}

func (s *teamService) AddMember(ctx context.Context, teamUUID, userUUID, role string) (Member, error) {
	if err := validUUIDs(teamUUID, userUUID); err != nil {
		return Member{}, err
	}
	if role == "" {
		role = MemberRoleMember
	}
	if !isValidMemberRole(role) {
		return Member{}, ErrInvalidRole
	}
	return s.repo.AddMember(ctx, teamUUID, userUUID, role)
}

func (s *teamService) RemoveMember(ctx context.Context, teamUUID, userUUID string) error {
	if err := validUUIDs(teamUUID, userUUID); err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, teamUUID, userUUID); err != nil {
		return err
	}
	if s.rooms != nil {
		s.rooms.LeaveRoom(teamUUID, userUUID)
	}
	return nil
}

func (s *teamService) ListMembers(ctx context.Context, teamUUID string) ([]Member, error) {
	if _, err := s.GetTeam(ctx, teamUUID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, teamUUID)
}

// IsMember reports false for malformed ids rather than an error, so the chat
// handler can treat them like any other non-member.
func (s *teamService) IsMember(ctx context.Context, teamUUID, userUUID string) (bool, error) {
	if validUUIDs(teamUUID, userUUID) != nil {
		return false, nil
	}
	return s.repo.IsMember(ctx, teamUUID, userUUID)
}
