package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"hackmate/pkg/broker/kafka"
	"hackmate/pkg/sendemail"
)

const maxDetailsLength = 1000

var (
	ErrInvalidReason = errors.New("reason must be one of spam, harassment, inappropriate, other")
	ErrInvalidStatus = errors.New("status must be one of open, reviewed, dismissed")
	ErrInvalidUUID   = errors.New("invalid uuid")
	ErrDetailsLength = fmt.Errorf("details must be at most %d characters", maxDetailsLength)
)

type Service interface {
	ReportMessage(ctx context.Context, messageID, reporterID, reason, details string) (Report, error)
	ListReports(ctx context.Context, status string, page, limit int) ([]Report, int64, error)
	UpdateStatus(ctx context.Context, reportID, status string) (Report, error)
}

// ModeratorDirectory lists moderator addresses kept in the participants directory.
type ModeratorDirectory interface {
	ModeratorEmails(ctx context.Context) ([]string, error)
}

type Options struct {
	Email      sendemail.EmailService // nil disables email
	Publisher  kafka.Publisher        // nil disables publishing
	Topic      string
	Recipients []string
	Directory  ModeratorDirectory
}

type service struct {
	repo   ReportRepository
	logger *slog.Logger
	opts   Options
}

func NewService(repo ReportRepository, logger *slog.Logger, opts Options) Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &service{repo: repo, logger: logger.With("component", "moderation"), opts: opts}
}

func (s *service) ReportMessage(ctx context.Context, messageID, reporterID, reason, details string) (Report, error) {
	if _, err := uuid.Parse(messageID); err != nil {
		return Report{}, ErrInvalidUUID
	}
	if _, err := uuid.Parse(reporterID); err != nil {
		return Report{}, ErrInvalidUUID
	}
	reason = strings.ToLower(strings.TrimSpace(reason))
	if !isValidReason(reason) {
		return Report{}, ErrInvalidReason
	}
	details = strings.TrimSpace(details)
	if len([]rune(details)) > maxDetailsLength {
		return Report{}, ErrDetailsLength
	}

	report, err := s.repo.CreateReport(ctx, messageID, reporterID, reason, details)
	if err != nil {
		return Report{}, err
	}
	s.logger.Info("message reported", "report_id", report.ID, "message_id", messageID, "reason", reason)

	s.notify(ctx, report)
	s.publish(ctx, report)
	return report, nil
}

func (s *service) recipients(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(list []string) {
		for _, e := range list {
			e = strings.ToLower(strings.TrimSpace(e))
			if _, ok := seen[e]; ok || e == "" {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	add(s.opts.Recipients)
	if s.opts.Directory != nil {
		list, err := s.opts.Directory.ModeratorEmails(ctx)
		if err != nil {
			s.logger.Warn("moderator lookup failed", "error", err)
		}
		add(list)
	}
	return out
}

func (s *service) notify(ctx context.Context, r Report) {
	if s.opts.Email == nil {
		return
	}
	subject := fmt.Sprintf("Message reported for %s", r.Reason)
	plain := fmt.Sprintf("Report %s\nMessage: %s\nSender: %s\nReporter: %s\nReason: %s\nDetails: %s\n\n%s",
		r.ID, r.MessageID, r.SenderID, r.ReporterID, r.Reason, r.Details, r.Content)
	htmlBody := fmt.Sprintf("<p>Report <b>%s</b> (%s)</p><p>Sender %s, reporter %s</p><blockquote>%s</blockquote><p>%s</p>",
		html.EscapeString(r.ID), html.EscapeString(r.Reason), html.EscapeString(r.SenderID),
		html.EscapeString(r.ReporterID), html.EscapeString(r.Content), html.EscapeString(r.Details))

	for _, to := range s.recipients(ctx) {
		if err := s.opts.Email.SendEmail(subject, to, plain, htmlBody); err != nil {
			s.logger.Warn("moderator email failed", "to", to, "report_id", r.ID, "error", err)
		}
	}
}

func (s *service) publish(ctx context.Context, r Report) {
	if s.opts.Publisher == nil {
		return
	}
	payload, err := json.Marshal(ReportedEvent{
		Event:      EventMessageReported,
		ReportID:   r.ID,
		MessageID:  r.MessageID,
		ReporterID: r.ReporterID,
		SenderID:   r.SenderID,
		Reason:     r.Reason,
		Details:    r.Details,
		CreatedAt:  r.CreatedAt,
	})
	if err != nil {
		s.logger.Error("encode report event", "error", err)
		return
	}
	headers := map[string]string{"event": EventMessageReported}
	if err := s.opts.Publisher.Publish(ctx, s.opts.Topic, r.MessageID, payload, headers); err != nil {
		s.logger.Warn("publish report event failed", "topic", s.opts.Topic, "report_id", r.ID, "error", err)
	}
}

func (s *service) ListReports(ctx context.Context, status string, page, limit int) ([]Report, int64, error) {
	if status != "" && !isValidStatus(status) {
		return nil, 0, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListReports(ctx, status, limit, (page-1)*limit)
}

func (s *service) UpdateStatus(ctx context.Context, reportID, status string) (Report, error) {
	if _, err := uuid.Parse(reportID); err != nil {
		return Report{}, ErrInvalidUUID
	}
	if !isValidStatus(status) {
		return Report{}, ErrInvalidStatus
	}
	return s.repo.UpdateStatus(ctx, reportID, status)
}
