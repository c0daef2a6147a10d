package teams

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrMemberNotFound = errors.New("team member not found")
)

type TeamRepository interface {
	CreateTeam(ctx context.Context, input Team) (Team, error)
	GetTeam(ctx context.Context, uuid string) (Team, error)
	ListTeams(ctx context.Context, hackathon string, limit, offset int) ([]Team, int64, error)
	ListTeamsByUser(ctx context.Context, userUUID string) ([]Team, error)
	// AddMember inserts the membership or updates its role.
	AddMember(ctx context.Context, teamUUID, userUUID, role string) (Member, error)
	RemoveMember(ctx context.Context, teamUUID, userUUID string) error
	ListMembers(ctx context.Context, teamUUID string) ([]Member, error)
	IsMember(ctx context.Context, teamUUID, userUUID string) (bool, error)
}

const teamColumns = `t.id, t.uuid::text, t.name, t.description, t.hackathon, t.created_at`

type postgresTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &postgresTeamRepository{pool: pool}
}

func scanTeam(row pgx.Row) (Team, error) {
	var t Team
	err := row.Scan(&t.ID, &t.UUID, &t.Name, &t.Description, &t.Hackathon, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, ErrTeamNotFound
	}
	return t, err
}

func (r *postgresTeamRepository) CreateTeam(ctx context.Context, input Team) (Team, error) {
	query := `INSERT INTO teams AS t (name, description, hackathon)
              VALUES ($1, $2, $3)
              RETURNING ` + teamColumns
	return scanTeam(r.pool.QueryRow(ctx, query, input.Name, input.Description, input.Hackathon))
}

func (r *postgresTeamRepository) GetTeam(ctx context.Context, uuid string) (Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.uuid = $1`
	return scanTeam(r.pool.QueryRow(ctx, query, uuid))
}

func (r *postgresTeamRepository) ListTeams(ctx context.Context, hackathon string, limit, offset int) ([]Team, int64, error) {
	query := `SELECT ` + teamColumns + `
              FROM teams t
              WHERE ($1 = '' OR t.hackathon = $1)
              ORDER BY t.id
              LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, hackathon, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	list, err := collectTeams(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM teams WHERE ($1 = '' OR hackathon = $1)", hackathon).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *postgresTeamRepository) ListTeamsByUser(ctx context.Context, userUUID string) ([]Team, error) {
	query := `SELECT ` + teamColumns + `
              FROM teams t
              JOIN team_members tm ON tm.team_id = t.id
              JOIN users u ON u.id = tm.user_id
              WHERE u.uuid = $1
              ORDER BY tm.joined_at`
	rows, err := r.pool.Query(ctx, query, userUUID)
	if err != nil {
		return nil, err
	}
	return collectTeams(rows)
}

func collectTeams(rows pgx.Rows) ([]Team, error) {
	defer rows.Close()

	list := make([]Team, 0)
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *postgresTeamRepository) AddMember(ctx context.Context, teamUUID, userUUID, role string) (Member, error) {
	query := `INSERT INTO team_members (team_id, user_id, role)
              SELECT t.id, u.id, $3 FROM teams t, users u WHERE t.uuid = $1 AND u.uuid = $2
              ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role
              RETURNING (SELECT name FROM users WHERE id = team_members.user_id), role, joined_at`
	m := Member{UserUUID: userUUID}
	err := r.pool.QueryRow(ctx, query, teamUUID, userUUID, role).Scan(&m.Name, &m.Role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	return m, err
}

func (r *postgresTeamRepository) RemoveMember(ctx context.Context, teamUUID, userUUID string) error {
	cmd, err := r.pool.Exec(ctx, `
		DELETE FROM team_members tm
		USING teams t, users u
		WHERE tm.team_id = t.id AND tm.user_id = u.id AND t.uuid = $1 AND u.uuid = $2
	`, teamUUID, userUUID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *postgresTeamRepository) ListMembers(ctx context.Context, teamUUID string) ([]Member, error) {
	query := `SELECT u.uuid::text, u.name, tm.role, tm.joined_at
              FROM team_members tm
              JOIN teams t ON t.id = tm.team_id
              JOIN users u ON u.id = tm.user_id
              WHERE t.uuid = $1
              ORDER BY tm.joined_at, u.id`
	rows, err := r.pool.Query(ctx, query, teamUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserUUID, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *postgresTeamRepository) IsMember(ctx context.Context, teamUUID, userUUID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM team_members tm
			JOIN teams t ON t.id = tm.team_id
			JOIN users u ON u.id = tm.user_id
			WHERE t.uuid = $1 AND u.uuid = $2
		)
	`, teamUUID, userUUID).Scan(&ok)
	return ok, err
}
