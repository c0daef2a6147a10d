package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hackmate/pkg/wire"
)

// ErrUnknownParticipant is returned when a sender, receiver or team does not exist.
var ErrUnknownParticipant = errors.New("unknown participant")

type MessageStore interface {
	SaveMessage(ctx context.Context, msg NewMessage) (wire.Message, error)
	UpdateLastActive(ctx context.Context, userUUID string, lastActiveEpoch int64) error
	MarkConversationRead(ctx context.Context, readerUUID, senderUUID string) (int64, error)
	MarkTeamRead(ctx context.Context, teamUUID, userUUID string, readAt time.Time) error
	GetConversationHistory(ctx context.Context, userUUID, peerUUID string, limit int, before time.Time) ([]wire.Message, error)
	GetTeamHistory(ctx context.Context, teamUUID string, limit int, before time.Time) ([]wire.Message, error)
}

type PostgresMessageStore struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageStore(pool *pgxpool.Pool) *PostgresMessageStore {
	return &PostgresMessageStore{pool: pool}
}

const (
	saveDirectSQL = `
		WITH s AS (SELECT id, name FROM users WHERE uuid = $1),
		     r AS (SELECT id FROM users WHERE uuid = $2),
		     ins AS (
		         INSERT INTO messages (sender_id, receiver_id, content, client_message_id, is_read, messaged_at)
		         SELECT s.id, r.id, $3, NULLIF($4, ''), FALSE, $5
		         FROM s, r
		         RETURNING id
		     )
		SELECT ins.id::text, s.name FROM ins, s
	`
	saveTeamSQL = `
		WITH s AS (SELECT id, name FROM users WHERE uuid = $1),
		     t AS (SELECT id FROM teams WHERE uuid = $2),
		     ins AS (
		         INSERT INTO messages (sender_id, team_id, content, client_message_id, is_read, messaged_at)
		         SELECT s.id, t.id, $3, NULLIF($4, ''), FALSE, $5
		         FROM s, t
		         RETURNING id
		     )
		SELECT ins.id::text, s.name FROM ins, s
	`
)

// SaveMessage inserts a direct or team message, resolving user and team
// UUIDs, and returns the stored record.
func (r *PostgresMessageStore) SaveMessage(ctx context.Context, msg NewMessage) (wire.Message, error) {
	if r.pool == nil {
		return wire.Message{}, errors.New("db pool is nil")
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	query, target := saveDirectSQL, msg.ReceiverID
	if msg.TeamID != "" {
		query, target = saveTeamSQL, msg.TeamID
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := wire.Message{
		SenderID:   msg.SenderID,
		ReceiverID: target,
		TeamID:     msg.TeamID,
		Message:    msg.Content,
		CreatedAt:  msg.SentAt,
		MessageID:  msg.ClientMessageID,
	}
	row := r.pool.QueryRow(ctxTimeout, query, msg.SenderID, target, msg.Content, msg.ClientMessageID, msg.SentAt)
	if err := row.Scan(&out.ID, &out.SenderName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isForeignKeyViolation(err) {
			return wire.Message{}, ErrUnknownParticipant
		}
		return wire.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return out, nil
}

// UpdateLastActive updates users.last_active_at with epoch seconds for the given user UUID.
func (r *PostgresMessageStore) UpdateLastActive(ctx context.Context, userUUID string, lastActiveEpoch int64) error {
	if r.pool == nil {
		return errors.New("db pool is nil")
	}

	const updateSQL = `
		UPDATE users
		SET last_active_at = $2
		WHERE uuid = $1
	`

	ctxTimeout, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	cmd, err := r.pool.Exec(ctxTimeout, updateSQL, userUUID, lastActiveEpoch)
	if err != nil {
		return fmt.Errorf("update last_active_at: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("no user found for uuid %s: %w", userUUID, ErrUnknownParticipant)
	}
	return nil
}

// MarkConversationRead marks every unread message from sender to reader as
// read and returns how many rows changed.
func (r *PostgresMessageStore) MarkConversationRead(ctx context.Context, readerUUID, senderUUID string) (int64, error) {
	if r.pool == nil {
		return 0, errors.New("db pool is nil")
	}

	const updateSQL = `
		UPDATE messages m
		SET is_read = TRUE
		FROM users s, users rd
		WHERE m.sender_id = s.id
		  AND m.receiver_id = rd.id
		  AND s.uuid = $1
		  AND rd.uuid = $2
		  AND m.is_read = FALSE
	`

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.pool.Exec(ctxTimeout, updateSQL, senderUUID, readerUUID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return cmd.RowsAffected(), nil
}

// MarkTeamRead moves the user's read position in the team forward to readAt.
func (r *PostgresMessageStore) MarkTeamRead(ctx context.Context, teamUUID, userUUID string, readAt time.Time) error {
	if r.pool == nil {
		return errors.New("db pool is nil")
	}

	const upsertSQL = `
		INSERT INTO team_message_reads (team_id, user_id, last_read_at)
		SELECT t.id, u.id, $3
		FROM teams t, users u
		WHERE t.uuid = $1 AND u.uuid = $2
		ON CONFLICT (team_id, user_id)
		DO UPDATE SET last_read_at = GREATEST(team_message_reads.last_read_at, EXCLUDED.last_read_at)
	`

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.pool.Exec(ctxTimeout, upsertSQL, teamUUID, userUUID, readAt)
	if err != nil {
		return fmt.Errorf("mark team read: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrUnknownParticipant
	}
	return nil
}

// GetConversationHistory returns the latest limit messages between two users
// sent before the cursor, oldest first.
func (r *PostgresMessageStore) GetConversationHistory(ctx context.Context, userUUID, peerUUID string, limit int, before time.Time) ([]wire.Message, error) {
	const querySQL = `
		SELECT id, sender_uuid, sender_name, receiver_uuid, content, client_message_id, is_read, messaged_at
		FROM (
			SELECT
				m.id::text AS id,
				s.uuid::text AS sender_uuid,
				s.name AS sender_name,
				r.uuid::text AS receiver_uuid,
				m.content,
				COALESCE(m.client_message_id, '') AS client_message_id,
				m.is_read,
				m.messaged_at
			FROM messages m
			JOIN users s ON m.sender_id = s.id
			JOIN users r ON m.receiver_id = r.id
			WHERE (
				(s.uuid = $1 AND r.uuid = $2)
				OR
				(s.uuid = $2 AND r.uuid = $1)
			)
			AND m.messaged_at < $3
			ORDER BY m.messaged_at DESC
			LIMIT $4
		) page
		ORDER BY messaged_at ASC
	`
	return r.history(ctx, querySQL, "", userUUID, peerUUID, before, clampLimit(limit))
}

// GetTeamHistory returns the latest limit messages of a team sent before
// the cursor, oldest first.
func (r *PostgresMessageStore) GetTeamHistory(ctx context.Context, teamUUID string, limit int, before time.Time) ([]wire.Message, error) {
	const querySQL = `
		SELECT id, sender_uuid, sender_name, team_uuid, content, client_message_id, is_read, messaged_at
		FROM (
			SELECT
				m.id::text AS id,
				s.uuid::text AS sender_uuid,
				s.name AS sender_name,
				t.uuid::text AS team_uuid,
				m.content,
				COALESCE(m.client_message_id, '') AS client_message_id,
				m.is_read,
				m.messaged_at
			FROM messages m
			JOIN users s ON m.sender_id = s.id
			JOIN teams t ON m.team_id = t.id
			WHERE t.uuid = $1
			AND m.messaged_at < $2
			ORDER BY m.messaged_at DESC
			LIMIT $3
		) page
		ORDER BY messaged_at ASC
	`
	return r.history(ctx, querySQL, teamUUID, teamUUID, before, clampLimit(limit))
}

func (r *PostgresMessageStore) history(ctx context.Context, query, teamUUID string, args ...any) ([]wire.Message, error) {
	if r.pool == nil {
		return nil, errors.New("db pool is nil")
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctxTimeout, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	result := make([]wire.Message, 0)
	for rows.Next() {
		var item wire.Message
		if err := rows.Scan(&item.ID, &item.SenderID, &item.SenderName, &item.ReceiverID, &item.Message, &item.MessageID, &item.Read, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		item.TeamID = teamUUID
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
