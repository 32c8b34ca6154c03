package mailer

import (
	"context"

	"drawtica/internal/infra"
)

// LogMailer stands in when no mail provider is configured. It logs the
// recipient, subject and link instead of sending.
type LogMailer struct {
	composer
	logger *infra.Logger
}

func NewLogMailer(baseURL, from, locale string, logger *infra.Logger) *LogMailer {
	return &LogMailer{composer: newComposer(baseURL, from, locale), logger: logger}
}

func (m *LogMailer) SendVerification(ctx context.Context, to, token string) error {
	msg, err := m.verification(to, token)
	if err != nil {
		return err
	}
	m.log(msg, m.link("/verify-email", token))
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	msg, err := m.passwordReset(to, token)
	if err != nil {
		return err
	}
	m.log(msg, m.link("/reset-password", token))
	return nil
}

func (m *LogMailer) log(msg Message, link string) {
	if m.logger == nil {
		return
	}
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("link", link).
		Msg("mailer: mock email sent")
}

var (
	_ Mailer = (*ResendMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
