// Package session obtains and holds the collector session credential.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNoSession    = errors.New("no session")
	ErrNoCredential = errors.New("login response carried no session cookie")
)

// Credentials are the device account's login.
type Credentials struct {
	Email    string
	Password string
}

// Session is an opaque credential, sent back to the collector as a Cookie header.
type Session struct {
	Token      string
	AcquiredAt time.Time
}

// Age is how long ago the session was acquired.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.AcquiredAt)
}

// AuthError is a rejected or unusable login.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.StatusCode > 0 && msg != "":
		return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, msg)
	case e.StatusCode > 0:
		return fmt.Sprintf("authentication failed (status %d)", e.StatusCode)
	default:
		return "authentication failed: " + msg
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// Authenticator performs one login attempt.
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) (Session, error)
}

// Holder owns the single session of the process. Refresh is the only writer;
// the session value is replaced wholesale, never edited in place.
type Holder struct {
	auth   Authenticator
	creds  Credentials
	logger *zap.Logger

	mu      sync.RWMutex
	current *Session

	// serializes logins so only one attempt is in flight
	refreshMu sync.Mutex
}

func NewHolder(auth Authenticator, creds Credentials, logger *zap.Logger) *Holder {
	return &Holder{auth: auth, creds: creds, logger: logger}
}

// Get returns the current session, if any.
func (h *Holder) Get() (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return Session{}, false
	}
	return *h.current, true
}

// Refresh logs in again. On failure the previous session is cleared.
func (h *Holder) Refresh(ctx context.Context) (Session, error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()
	return h.refreshLocked(ctx)
}

// RefreshAfterReject replaces a session the collector rejected. If another
// caller already replaced it, the newer session is returned without a login.
func (h *Holder) RefreshAfterReject(ctx context.Context, rejected Session) (Session, error) {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	if cur, ok := h.Get(); ok && cur.Token != rejected.Token {
		return cur, nil
	}
	h.Invalidate()
	return h.refreshLocked(ctx)
}

func (h *Holder) refreshLocked(ctx context.Context) (Session, error) {
	sess, err := h.auth.Authenticate(ctx, h.creds)
	if err != nil {
		h.Invalidate()
		return Session{}, err
	}

	h.mu.Lock()
	h.current = &sess
	h.mu.Unlock()

	h.logger.Info("Session established", zap.String("email", h.creds.Email))
	return sess, nil
}

// Invalidate drops the current session.
func (h *Holder) Invalidate() {
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()
}

// Maintain re-attempts login every interval while no session is held.
// It returns when ctx is done.
func (h *Holder) Maintain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, ok := h.Get(); ok {
				continue
			}
			if _, err := h.Refresh(ctx); err != nil {
				h.logger.Warn("Re-authentication failed", zap.Error(err))
			}
		}
	}
}
