package channels

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"monitoring-service/internal/config"
	"monitoring-service/internal/models"
)

// EmailChannel delivers alerts over SMTP to a fixed recipient list.
type EmailChannel struct {
	cfg config.Config
}

func NewEmailChannel(cfg config.Config) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Configured() bool {
	e := c.cfg.Channels.Email
	return e.Enabled && e.SMTPServer != "" && e.Username != "" && e.Password != "" && len(e.Recipients) > 0
}

func (c *EmailChannel) Deliver(ctx context.Context, n models.Notification) error {
	e := c.cfg.Channels.Email

	for _, to := range e.Recipients {
		if !strings.Contains(to, "@") {
			return fmt.Errorf("invalid email address: %s", to)
		}
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(n.Severity), n.Subject)
	message := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		strings.Join(e.Recipients, ", "), subject, n.Body)

	auth := smtp.PlainAuth("", e.Username, e.Password, e.SMTPServer)
	addr := fmt.Sprintf("%s:%d", e.SMTPServer, e.SMTPPort)

	// smtp.SendMail has no context support; run it out-of-band and honor the
	// dispatcher's timeout here.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.Username, e.Recipients, []byte(message))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email delivery timed out: %w", ctx.Err())
	}
}
