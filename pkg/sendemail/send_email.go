package sendemail

import (
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"hackmate/pkg/config"
)

var ErrNotConfigured = errors.New("sendgrid api key and sender email are required")

type EmailService interface {
	SendEmail(subject, toEmail, plainTextContent, htmlContent string) error
}

type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type emailService struct {
	client      mailSender
	senderEmail string
	senderName  string
}

func NewEmailService(cfg config.SendGridConfig) (EmailService, error) {
	if cfg.APIKey == "" || cfg.SenderEmail == "" {
		return nil, ErrNotConfigured
	}
	return &emailService{
		client:      sendgrid.NewSendClient(cfg.APIKey),
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
	}, nil
}

func (e *emailService) SendEmail(subject, toEmail, plainTextContent, htmlContent string) error {
	from := mail.NewEmail(e.senderName, e.senderEmail)
	to := mail.NewEmail("", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)
	response, err := e.client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email: status %d", response.StatusCode)
	}
	return nil
}
