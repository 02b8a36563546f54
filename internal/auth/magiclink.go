// ABOUTME: Magic-link login flow: issue emailed tokens and redeem them for sessions
// ABOUTME: Enforces the allowed email domain and single-use expiry

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/banrovegrie/makearjowork/internal/mail"
	"github.com/banrovegrie/makearjowork/internal/store"
)

// Flow errors surfaced to handlers.
var (
	ErrEmailRequired    = errors.New("email is required")
	ErrDomainNotAllowed = errors.New("email domain not allowed")
	ErrLinkInvalid      = errors.New("invalid or expired link")
)

// Config holds magic-link flow settings.
type Config struct {
	// BaseURL is the external URL of the service, used to build login links.
	BaseURL string

	// AllowedDomain restricts signups to one email domain (e.g. "fydy.ai").
	// Empty allows any domain.
	AllowedDomain string

	// LinkTTL is how long an emailed link stays valid.
	LinkTTL time.Duration
}

// Service implements the magic-link login flow.
type Service struct {
	store    store.Store
	sessions *Sessions
	mailer   mail.Sender
	config   Config
	logger   *slog.Logger
}

// NewService creates the login flow service.
func NewService(s store.Store, sessions *Sessions, mailer mail.Sender, cfg Config) *Service {
	if cfg.LinkTTL == 0 {
		cfg.LinkTTL = 15 * time.Minute
	}
	return &Service{
		store:    s,
		sessions: sessions,
		mailer:   mailer,
		config:   cfg,
		logger:   slog.Default().With("component", "auth"),
	}
}

// Sessions exposes the session manager for middleware wiring.
func (s *Service) Sessions() *Sessions {
	return s.sessions
}

// RequestLink validates the address, stores a single-use token and emails
// the login link. A failed email send is logged with the link and not
// treated as an error, so local development works without SMTP.
func (s *Service) RequestLink(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrEmailRequired
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailRequired, err)
	}
	if s.config.AllowedDomain != "" && !strings.HasSuffix(email, "@"+s.config.AllowedDomain) {
		return ErrDomainNotAllowed
	}

	token, err := NewLinkToken()
	if err != nil {
		return fmt.Errorf("generating link token: %w", err)
	}

	link := &store.MagicLink{
		Email:     email,
		Token:     token,
		ExpiresAt: time.Now().Add(s.config.LinkTTL),
	}
	if err := s.store.CreateMagicLink(ctx, link); err != nil {
		return fmt.Errorf("storing magic link: %w", err)
	}

	url := fmt.Sprintf("%s/auth/%s", strings.TrimRight(s.config.BaseURL, "/"), token)
	msg := mail.Message{
		To:      email,
		Subject: "Your login link for Make Arjo Work",
		Body: fmt.Sprintf(
			"Click here to log in: %s\n\nThis link expires in %d minutes.\n\nIf you didn't request this, you can ignore this email.\n",
			url, int(s.config.LinkTTL.Minutes())),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("email send failed, magic link follows", "error", err, "link", url)
	}
	return nil
}

// Redeem consumes a magic link and returns the user (created on first
// login) along with a signed session token.
func (s *Service) Redeem(ctx context.Context, token string) (*store.User, string, error) {
	link, err := s.store.ConsumeMagicLink(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrLinkConsumed) {
			return nil, "", ErrLinkInvalid
		}
		return nil, "", fmt.Errorf("consuming magic link: %w", err)
	}

	user, err := s.store.GetUserByEmail(ctx, link.Email)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.store.CreateUser(ctx, link.Email)
	}
	if err != nil {
		return nil, "", fmt.Errorf("resolving user: %w", err)
	}

	session, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issuing session: %w", err)
	}

	s.logger.Info("user logged in", "email", user.Email)
	return user, session, nil
}

// NewLinkToken generates a URL-safe random token for magic links.
func NewLinkToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
