package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// LoginPath is the collector's login endpoint.
const LoginPath = "/auth/login"

type errorBody struct {
	Err string `json:"err"`
}

// HTTPAuthenticator logs in with HTTP Basic credentials and keeps the
// cookies set by the response as the session token.
type HTTPAuthenticator struct {
	client *resty.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewHTTPAuthenticator uses client, which must carry the collector base URL.
func NewHTTPAuthenticator(client *resty.Client, logger *zap.Logger) *HTTPAuthenticator {
	return &HTTPAuthenticator{client: client, logger: logger, now: time.Now}
}

func (a *HTTPAuthenticator) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetBasicAuth(creds.Email, creds.Password).
		SetHeader("Content-Type", "application/json").
		Post(LoginPath)
	if err != nil {
		a.logger.Error("Login request failed", zap.Error(err))
		return Session{}, &AuthError{Err: err}
	}

	if !resp.IsSuccess() {
		var body errorBody
		_ = json.Unmarshal(resp.Body(), &body)
		a.logger.Error("Login rejected",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("err", body.Err),
		)
		return Session{}, &AuthError{StatusCode: resp.StatusCode(), Message: body.Err}
	}

	pairs := make([]string, 0, len(resp.Cookies()))
	for _, c := range resp.Cookies() {
		if c.Name == "" || c.Value == "" {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	if len(pairs) == 0 {
		a.logger.Warn("No cookie found in login response")
		return Session{}, &AuthError{StatusCode: resp.StatusCode(), Err: ErrNoCredential}
	}

	return Session{Token: strings.Join(pairs, "; "), AcquiredAt: a.now()}, nil
}
