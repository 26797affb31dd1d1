// Package email sends transactional mail (reviewer invitations). The
// console mailer is the default for development and tests; sendgrid is
// enabled through MAIL_DRIVER=sendgrid.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"sync"
	"time"
)

type Message struct {
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ConsoleMailer writes messages to the log and keeps them in memory so
// tests can assert on what was sent.
type ConsoleMailer struct {
	log  *slog.Logger
	from mail.Address

	mu   sync.Mutex
	sent []Message
}

func NewConsoleMailer(log *slog.Logger, from mail.Address) *ConsoleMailer {
	return &ConsoleMailer{log: log, from: from}
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	if msg.To.Address == "" {
		return fmt.Errorf("email: message has no recipient")
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.log.Info("mail (console)",
		"from", m.from.String(),
		"to", msg.To.String(),
		"subject", msg.Subject,
		"date", time.Now().Format(time.RFC1123Z),
	)
	m.log.Debug("mail body", "text", msg.Text)
	return nil
}

// Sent returns a copy of every message sent so far.
func (m *ConsoleMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
