package notify

import (
	"context" // Context propagation
	"fmt"     // Error and message formatting
	"html"    // Escaping email bodies

	"github.com/sendgrid/sendgrid-go"              // SendGrid API client
	"github.com/sendgrid/sendgrid-go/helpers/mail" // Email builder
)

// Mailer sends a single email
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, body string) error
}

// SendGridMailer sends email through the SendGrid v3 API
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewSendGridMailer returns nil when apiKey is empty, which disables email
func NewSendGridMailer(apiKey, sender string) *SendGridMailer {
	if apiKey == "" {
		return nil
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail("InstaPay", sender),
	}
}

// Send delivers a plain text message with an HTML copy
func (m *SendGridMailer) Send(ctx context.Context, toEmail, toName, subject, body string) error {
	to := mail.NewEmail(toName, toEmail)
	htmlContent := "<p>" + html.EscapeString(body) + "</p>"
	message := mail.NewSingleEmail(m.from, subject, to, body, htmlContent)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
