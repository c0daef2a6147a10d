package moderation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAlreadyReported = errors.New("message already reported by this user")
	ErrMessageNotFound = errors.New("message or reporter not found")
	ErrReportNotFound  = errors.New("report not found")
)

type ReportRepository interface {
	CreateReport(ctx context.Context, messageID, reporterID, reason, details string) (Report, error)
	ListReports(ctx context.Context, status string, limit, offset int) ([]Report, int64, error)
	UpdateStatus(ctx context.Context, reportID, status string) (Report, error)
}

const reportSelect = `
	SELECT r.id::text, m.id::text, rep.uuid::text, r.reason, r.details, r.status, r.created_at,
	       s.uuid::text, m.content
	FROM message_reports r
	JOIN messages m ON m.id = r.message_id
	JOIN users rep ON rep.id = r.reporter_id
	JOIN users s ON s.id = m.sender_id`

type postgresReportRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &postgresReportRepository{pool: pool}
}

func scanReport(row pgx.Row) (Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.MessageID, &r.ReporterID, &r.Reason, &r.Details, &r.Status, &r.CreatedAt, &r.SenderID, &r.Content)
	return r, err
}

func (r *postgresReportRepository) CreateReport(ctx context.Context, messageID, reporterID, reason, details string) (Report, error) {
	query := `
	WITH inserted AS (
		INSERT INTO message_reports (message_id, reporter_id, reason, details)
		SELECT m.id, u.id, $3, $4 FROM messages m, users u WHERE m.id = $1 AND u.uuid = $2
		RETURNING id, message_id, reporter_id, reason, details, status, created_at
	)
	SELECT r.id::text, m.id::text, rep.uuid::text, r.reason, r.details, r.status, r.created_at,
	       s.uuid::text, m.content
	FROM inserted r
	JOIN messages m ON m.id = r.message_id
	JOIN users rep ON rep.id = r.reporter_id
	JOIN users s ON s.id = m.sender_id`
	report, err := scanReport(r.pool.QueryRow(ctx, query, messageID, reporterID, reason, details))
	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return Report{}, ErrMessageNotFound
		case errors.As(err, &pgErr) && pgErr.Code == "23505":
			return Report{}, ErrAlreadyReported
		case errors.As(err, &pgErr) && pgErr.Code == "23503":
			return Report{}, ErrMessageNotFound
		}
		return Report{}, err
	}
	return report, nil
}

func (r *postgresReportRepository) ListReports(ctx context.Context, status string, limit, offset int) ([]Report, int64, error) {
	rows, err := r.pool.Query(ctx, reportSelect+`
	WHERE ($1 = '' OR r.status = $1)
	ORDER BY r.created_at DESC
	LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM message_reports WHERE ($1 = '' OR status = $1)", status).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *postgresReportRepository) UpdateStatus(ctx context.Context, reportID, status string) (Report, error) {
	cmd, err := r.pool.Exec(ctx, "UPDATE message_reports SET status = $1 WHERE id = $2", status, reportID)
	if err != nil {
		return Report{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Report{}, ErrReportNotFound
	}
	report, err := scanReport(r.pool.QueryRow(ctx, reportSelect+` WHERE r.id = $1`, reportID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	return report, err
}
