package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/repository"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/security"

	"go.uber.org/zap"
)

// MinPasswordLength applies to signup and login.
const MinPasswordLength = 6

// AuthService creates principals and issues session tokens.
type AuthService interface {
	Signup(ctx context.Context, req Credentials) (*SessionToken, error)
	Login(ctx context.Context, req Credentials) (*SessionToken, error)
	// Authenticate verifies a session token. It does not check that the
	// principal still exists.
	Authenticate(ctx context.Context, token string) (*security.SessionClaims, error)
}

// Credentials come from an HTTP Basic Authorization header.
type Credentials struct {
	Email     string
	Password  string
	IPAddress string // logging only
}

// SessionToken is what the HTTP layer turns into the session cookie.
type SessionToken struct {
	Token       string
	ExpiresAt   time.Time
	PrincipalID string
	Email       string
}

type authService struct {
	principals     repository.PrincipalsRepository
	tokens         *security.TokenIssuer
	allowedDomains map[string]bool
	logger         *zap.Logger
}

// NewAuthService builds the service. An empty allowedDomains accepts any domain at login.
func NewAuthService(principals repository.PrincipalsRepository, tokens *security.TokenIssuer, allowedDomains []string, logger *zap.Logger) AuthService {
	domains := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		domains[strings.ToLower(d)] = true
	}
	return &authService{
		principals:     principals,
		tokens:         tokens,
		allowedDomains: domains,
		logger:         logger,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (s *authService) Signup(ctx context.Context, req Credentials) (*SessionToken, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := s.principals.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &domain.Principal{Email: email, PasswordHash: hash}
	if err := s.principals.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create principal: %w", err)
	}

	s.logger.Info("Principal created",
		zap.String("principal_id", p.ID),
		zap.String("ip_address", req.IPAddress),
	)
	return s.issue(p)
}

func (s *authService) Login(ctx context.Context, req Credentials) (*SessionToken, error) {
	email := strings.TrimSpace(req.Email)
	if valid, err := normalizeEmail(email); err == nil && len(s.allowedDomains) > 0 {
		domainPart := strings.ToLower(valid[strings.LastIndex(valid, "@")+1:])
		if !s.allowedDomains[domainPart] {
			return nil, ErrDomainNotAllowed
		}
	}
	if len(req.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	p, err := s.principals.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Login failed",
			zap.String("reason", "unknown_account"),
			zap.String("ip_address", req.IPAddress),
		)
		return nil, ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	if err := security.CheckPassword(p.PasswordHash, req.Password); err != nil {
		s.logger.Warn("Login failed",
			zap.String("reason", "wrong_password"),
			zap.String("principal_id", p.ID),
			zap.String("ip_address", req.IPAddress),
		)
		if errors.Is(err, security.ErrPasswordMismatch) {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("check password: %w", err)
	}

	return s.issue(p)
}

func (s *authService) Authenticate(_ context.Context, token string) (*security.SessionClaims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

func (s *authService) issue(p *domain.Principal) (*SessionToken, error) {
	token, exp, err := s.tokens.Issue(p.ID, p.Email)
	if err != nil {
		return nil, err
	}
	return &SessionToken{Token: token, ExpiresAt: exp, PrincipalID: p.ID, Email: p.Email}, nil
}
