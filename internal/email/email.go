package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// Sender delivers transactional mail.
type Sender interface {
	// SendWelcome tells a doctor they were added to an organization's roster.
	SendWelcome(ctx context.Context, to, name, organization string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

// New returns an SMTP sender, or a no-op sender when no host is configured.
func New(cfg Config) Sender {
	if cfg.Host == "" {
		return Noop{}
	}
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpSender) SendWelcome(ctx context.Context, to, name, organization string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("You have been added to %s on LivSafe", organization))
	m.SetBody("text/plain", welcomeBody(name, organization))

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send welcome mail: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func welcomeBody(name, organization string) string {
	return fmt.Sprintf("Hello %s,\n\n%s has added you to its LivSafe roster. "+
		"Sign in with the email address this message was sent to.\n\nThe LivSafe team\n", name, organization)
}

// Noop discards mail.
type Noop struct{}

func (Noop) SendWelcome(ctx context.Context, to, name, organization string) error {
	log.Debug().Str("to", to).Msg("smtp not configured, welcome mail skipped")
	return nil
}
