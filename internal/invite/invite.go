// Package invite lets a teacher invite an external reviewer (a client,
// another teacher) to score one assessment. The invite travels by email
// as a single-use token; accepting it yields a session scoped to that
// assessment only.
package invite

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/projectmaat/projectmaat/internal/email"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRevoked  = "revoked"
)

var (
	ErrNotFound = errors.New("invite not found")
	ErrExpired  = errors.New("invite expired")
	ErrUsed     = errors.New("invite no longer valid")
	ErrBadEmail = errors.New("invalid email address")
)

type Invite struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessment_id"`
	Email        string `json:"email"`
	Token        string `json:"token,omitempty"`
	Status       string `json:"status"`
	ExpiresAt    int64  `json:"expires_at"`
	CreatedAt    int64  `json:"created_at"`
	AcceptedAt   *int64 `json:"accepted_at,omitempty"`
}

type Store interface {
	Create(ctx context.Context, inv Invite) (Invite, error)
	GetByToken(ctx context.Context, token string) (Invite, error)
	List(ctx context.Context, assessmentID string) ([]Invite, error)
	MarkAccepted(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
}

// Service creates invites and delivers them. Mail failures are logged
// by the caller, not treated as invite failures: the token stays valid
// and can be re-sent.
type Service struct {
	store     Store
	mailer    email.Mailer
	publicURL string
	ttl       time.Duration
}

func NewService(store Store, mailer email.Mailer, publicURL string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{store: store, mailer: mailer, publicURL: publicURL, ttl: ttl}
}

func (s *Service) Invite(ctx context.Context, assessmentID, toEmail, assessmentTitle, inviterName string) (Invite, error) {
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return Invite{}, ErrBadEmail
	}
	inv, err := s.store.Create(ctx, Invite{
		AssessmentID: assessmentID,
		Email:        toEmail,
		ExpiresAt:    time.Now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return Invite{}, err
	}

	if inviterName == "" {
		inviterName = "Je docent"
	}
	acceptURL := fmt.Sprintf("%s/beoordelen?token=%s", s.publicURL, inv.Token)
	msg := email.Message{
		To:      mail.Address{Address: toEmail},
		Subject: fmt.Sprintf("Uitnodiging om %q te beoordelen", assessmentTitle),
		Text: fmt.Sprintf(
			"%s nodigt je uit om het project %q te beoordelen.\n\n"+
				"Open de beoordeling via deze link:\n%s\n\n"+
				"De link is %d dagen geldig.\n",
			inviterName, assessmentTitle, acceptURL, int(s.ttl.Hours()/24)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return inv, fmt.Errorf("invite created but mail failed: %w", err)
	}
	return inv, nil
}

// Accept validates the token and burns it. The caller issues the
// scoped reviewer session from the returned invite.
func (s *Service) Accept(ctx context.Context, token string) (Invite, error) {
	inv, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return Invite{}, err
	}
	if inv.Status != StatusPending {
		return Invite{}, ErrUsed
	}
	if time.Now().Unix() > inv.ExpiresAt {
		return Invite{}, ErrExpired
	}
	if err := s.store.MarkAccepted(ctx, inv.ID); err != nil {
		return Invite{}, err
	}
	inv.Status = StatusAccepted
	return inv, nil
}

func (s *Service) List(ctx context.Context, assessmentID string) ([]Invite, error) {
	return s.store.List(ctx, assessmentID)
}

func (s *Service) Revoke(ctx context.Context, id string) error {
	return s.store.Revoke(ctx, id)
}
