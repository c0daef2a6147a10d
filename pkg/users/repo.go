package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	CreateUser(ctx context.Context, name, email, role, profilePicURL string) (User, error)
	UpdateUserByUUID(ctx context.Context, uuid string, u User) (User, error)
	GetUserByUUID(ctx context.Context, uuid string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// ListUsers filters by role when role is non-empty.
	ListUsers(ctx context.Context, role string, limit, offset int) ([]User, int64, error)
	ListEmailsByRole(ctx context.Context, role string) ([]string, error)
}

const userColumns = `id, uuid::text, name, email, role, profile_pic_url, last_active_at, created_at`

type postgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) UserRepository {
	return &postgresUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.UUID, &u.Name, &u.Email, &u.Role, &u.ProfilePicURL, &u.LastActiveAt, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (r *postgresUserRepository) CreateUser(ctx context.Context, name, email, role, profilePicURL string) (User, error) {
	query := `INSERT INTO users (name, email, role, profile_pic_url)
              VALUES ($1, $2, $3, $4)
              RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, name, email, role, profilePicURL))
}

func (r *postgresUserRepository) UpdateUserByUUID(ctx context.Context, uuid string, u User) (User, error) {
	query := `UPDATE users
              SET name = $1,
                  role = COALESCE(NULLIF($2, ''), role),
                  profile_pic_url = $3
              WHERE uuid = $4
              RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, query, u.Name, u.Role, u.ProfilePicURL, uuid))
}

func (r *postgresUserRepository) GetUserByUUID(ctx context.Context, uuid string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1`
	return scanUser(r.pool.QueryRow(ctx, query, uuid))
}

func (r *postgresUserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *postgresUserRepository) ListUsers(ctx context.Context, role string, limit, offset int) ([]User, int64, error) {
	query := `SELECT ` + userColumns + `
              FROM users
              WHERE ($1 = '' OR role = $1)
              ORDER BY id
              LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	countRow := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)", role)
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (r *postgresUserRepository) ListEmailsByRole(ctx context.Context, role string) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT email FROM users WHERE role = $1 ORDER BY id", role)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
