// Package mailer delivers verification codes to members by email.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"socbot/internal/observability"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers a verification code to an email address out-of-band.
type Mailer interface {
	SendCode(ctx context.Context, email, code string) error
}

// SendgridMailer sends verification emails through SendGrid.
type SendgridMailer struct {
	apiKey string
	from   string
	dev    bool
	logger *observability.Logger
}

// NewSendgridMailer returns a SendgridMailer. In development mode delivery is
// skipped and the code is only logged, matching how the bot is run locally.
func NewSendgridMailer(apiKey, from string, dev bool) *SendgridMailer {
	return &SendgridMailer{
		apiKey: apiKey,
		from:   from,
		dev:    dev,
		logger: observability.Component("mailer"),
	}
}

// SendCode emails the verification code to the member.
func (m *SendgridMailer) SendCode(ctx context.Context, email, code string) error {
	m.logger.InfoContext(ctx, "sending verification email",
		slog.String("email", email),
	)

	if m.dev {
		m.logger.InfoContext(ctx, "development mode, skipping delivery",
			slog.String("code", code),
		)
		return nil
	}

	client := sendgrid.NewSendClient(m.apiKey)
	response, err := client.Send(m.buildMessage(email, code))
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d", response.StatusCode)
	}
	return nil
}

func (m *SendgridMailer) buildMessage(email, code string) *mail.SGMailV3 {
	return mail.NewSingleEmail(
		mail.NewEmail("ProgSoc Bot", m.from),
		"Verify your email",
		mail.NewEmail("", email),
		fmt.Sprintf("Your verification code is %s", code),
		fmt.Sprintf("<p>Your verification code is <strong>%s</strong></p>", code),
	)
}
