package moderation

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"hackmate/pkg/testhelpers"
)

func setupReportTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("DATABASE_URL_FOR_TEST not set; skipping report repository tests")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresReportRepository_CreateReport(t *testing.T) {
	pool := setupReportTestPool(t)
	repo := NewPostgresReportRepository(pool)
	ctx := context.Background()

	sender := testhelpers.CreateTestUser(t, pool)
	reporter := testhelpers.CreateTestUser(t, pool)
	msg := testhelpers.CreateTestMessage(t, pool, sender, reporter, "spammy text")

	report, err := repo.CreateReport(ctx, msg, reporter, ReasonSpam, "ads")
	require.NoError(t, err)
	require.Equal(t, msg, report.MessageID)
	require.Equal(t, reporter, report.ReporterID)
	require.Equal(t, sender, report.SenderID)
	require.Equal(t, "spammy text", report.Content)
	require.Equal(t, StatusOpen, report.Status)

	_, err = repo.CreateReport(ctx, msg, reporter, ReasonOther, "")
	require.ErrorIs(t, err, ErrAlreadyReported)

	_, err = repo.CreateReport(ctx, uuid.NewString(), reporter, ReasonSpam, "")
	require.ErrorIs(t, err, ErrMessageNotFound)

	updated, err := repo.UpdateStatus(ctx, report.ID, StatusReviewed)
	require.NoError(t, err)
	require.Equal(t, StatusReviewed, updated.Status)

	_, err = repo.UpdateStatus(ctx, uuid.NewString(), StatusReviewed)
	require.ErrorIs(t, err, ErrReportNotFound)

	list, total, err := repo.ListReports(ctx, StatusReviewed, 100, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, total, int64(1))
	require.NotEmpty(t, list)
}
