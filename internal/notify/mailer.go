package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

func NewSendGridMailer(apiKey, fromName, fromAddr string) (*SendGridMailer, error) {
	if apiKey == "" {
		return nil, errors.New("SENDGRID_API_KEY is not set")
	}
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), fromName: fromName, fromAddr: fromAddr}, nil
}

func (s *SendGridMailer) Send(ctx context.Context, m Message) error {
	msg := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.fromAddr), m.Subject,
		mail.NewEmail(m.ToName, m.ToEmail), m.Text, m.HTML)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer prints mail instead of sending it; used when no API key is set.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Message) error {
	log.Printf("mail to %s <%s>: %s", m.ToName, m.ToEmail, m.Subject)
	return nil
}
