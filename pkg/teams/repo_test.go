package teams

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"hackmate/pkg/testhelpers"
)

func setupTeamTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("DATABASE_URL_FOR_TEST not set; skipping team repository tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresTeamRepository_CreateAndGet(t *testing.T) {
	pool := setupTeamTestPool(t)
	repo := NewPostgresTeamRepository(pool)
	ctx := context.Background()

	created, err := repo.CreateTeam(ctx, Team{Name: "Rocket", Hackathon: "spring"})
	require.NoError(t, err)
	require.NotEmpty(t, created.UUID)

	got, err := repo.GetTeam(ctx, created.UUID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = repo.GetTeam(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestPostgresTeamRepository_Membership(t *testing.T) {
	pool := setupTeamTestPool(t)
	repo := NewPostgresTeamRepository(pool)
	ctx := context.Background()

	alice := testhelpers.CreateTestUser(t, pool)
	bob := testhelpers.CreateTestUser(t, pool)
	team := testhelpers.CreateTestTeam(t, pool, alice)

	ok, err := repo.IsMember(ctx, team, alice)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.IsMember(ctx, team, bob)
	require.NoError(t, err)
	require.False(t, ok)

	m, err := repo.AddMember(ctx, team, bob, MemberRoleMentor)
	require.NoError(t, err)
	require.Equal(t, MemberRoleMentor, m.Role)

	m, err = repo.AddMember(ctx, team, bob, MemberRoleLead)
	require.NoError(t, err)
	require.Equal(t, MemberRoleLead, m.Role)

	members, err := repo.ListMembers(ctx, team)
	require.NoError(t, err)
	require.Len(t, members, 2)

	byUser, err := repo.ListTeamsByUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	require.Equal(t, team, byUser[0].UUID)

	require.NoError(t, repo.RemoveMember(ctx, team, bob))
	require.ErrorIs(t, repo.RemoveMember(ctx, team, bob), ErrMemberNotFound)

	_, err = repo.AddMember(ctx, team, uuid.NewString(), MemberRoleMember)
	require.ErrorIs(t, err, ErrMemberNotFound)
}
