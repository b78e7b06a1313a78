package httpapi

import (
	"net/http"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/service"

	"go.uber.org/zap"
)

// AuthHandler serves signup, login and logout.
type AuthHandler struct {
	authService  service.AuthService
	cookieSecure bool
	logger       *zap.Logger
}

func NewAuthHandler(authService service.AuthService, cookieSecure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/auth/signup":
		h.Signup(w, r)
	case "/auth/login":
		h.Login(w, r)
	case "/auth/logout":
		h.Logout(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	creds, err := basicCredentials(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	tok, err := h.authService.Signup(r.Context(), creds)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, tok)
	writeMsg(w, http.StatusCreated, "User created successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := basicCredentials(r)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	tok, err := h.authService.Login(r.Context(), creds)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, tok)
	writeMsg(w, http.StatusOK, "Login successful")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
	writeMsg(w, http.StatusOK, "Logged out")
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, tok *service.SessionToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		MaxAge:   int(time.Until(tok.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteNoneMode,
	})
}
