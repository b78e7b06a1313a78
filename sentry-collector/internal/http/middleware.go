package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/security"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/service"

	"go.uber.org/zap"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "jwt"

type ctxKey int

const claimsKey ctxKey = iota

// ClaimsFromContext returns the session claims set by RequireSession.
func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.SessionClaims)
	return claims, ok
}

// RequireSession rejects requests without a valid session cookie.
func RequireSession(auth service.AuthService, logger *zap.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(SessionCookieName); err == nil {
			token = c.Value
		}
		claims, err := auth.Authenticate(r.Context(), token)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LogRequests logs one entry per request.
func LogRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", clientIP(r)),
		)
	})
}
