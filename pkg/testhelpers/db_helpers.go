package testhelpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var uniqueCounter int64

func nextSuffix() int64 {
	return atomic.AddInt64(&uniqueCounter, 1)
}

// CreateTestUser inserts a student and returns its UUID.
func CreateTestUser(t *testing.T, db *pgxpool.Pool) string {
	return CreateTestUserWithRole(t, db, "student")
}

// CreateTestUserWithRole inserts a user with the given role and returns its UUID.
func CreateTestUserWithRole(t *testing.T, db *pgxpool.Pool, role string) string {
	t.Helper()

	suffix := nextSuffix()
	name := fmt.Sprintf("test-user-%d", suffix)
	email := fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8])

	var id string
	err := db.QueryRow(context.Background(),
		"INSERT INTO users (name, email, role) VALUES ($1, $2, $3) RETURNING uuid::text",
		name, email, role).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateTestTeam inserts a team with the given member UUIDs and returns the team UUID.
func CreateTestTeam(t *testing.T, db *pgxpool.Pool, memberUUIDs ...string) string {
	t.Helper()

	ctx := context.Background()
	name := fmt.Sprintf("test-team-%d", nextSuffix())

	var id string
	err := db.QueryRow(ctx, "INSERT INTO teams (name, hackathon) VALUES ($1, 'test-hack') RETURNING uuid::text", name).Scan(&id)
	require.NoError(t, err)

	for _, member := range memberUUIDs {
		_, err := db.Exec(ctx, `
			INSERT INTO team_members (team_id, user_id)
			SELECT t.id, u.id FROM teams t, users u WHERE t.uuid = $1 AND u.uuid = $2
		`, id, member)
		require.NoError(t, err)
	}
	return id
}

// CreateTestMessage inserts a direct message and returns its UUID.
func CreateTestMessage(t *testing.T, db *pgxpool.Pool, senderUUID, receiverUUID, content string) string {
	t.Helper()

	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO messages (sender_id, receiver_id, content)
		SELECT s.id, r.id, $3 FROM users s, users r WHERE s.uuid = $1 AND r.uuid = $2
		RETURNING id::text
	`, senderUUID, receiverUUID, content).Scan(&id)
	require.NoError(t, err)
	return id
}
