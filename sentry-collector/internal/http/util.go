package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/service"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errMissingBasicAuth = errors.New("missing basic auth")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"err": msg})
}

// writeServiceError maps service errors to status codes and client messages.
// Anything unrecognised is logged and reported as 500.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, errMissingBasicAuth):
		writeErr(w, http.StatusBadRequest, "Missing Basic Auth")
	case errors.Is(err, service.ErrInvalidEmail):
		writeErr(w, http.StatusBadRequest, "Invalid email format")
	case errors.Is(err, service.ErrDomainNotAllowed):
		writeErr(w, http.StatusBadRequest, "Email domain not allowed")
	case errors.Is(err, service.ErrWeakPassword):
		writeErr(w, http.StatusBadRequest, "Password must be at least 6 characters")
	case errors.Is(err, service.ErrEmailTaken):
		writeErr(w, http.StatusConflict, "Email already in use")
	case errors.Is(err, service.ErrUnknownAccount):
		writeErr(w, http.StatusNotFound, "Incorrect password or email")
	case errors.Is(err, service.ErrWrongPassword):
		writeErr(w, http.StatusUnauthorized, "Incorrect password or email")
	case errors.Is(err, service.ErrUnauthenticated):
		writeErr(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrUnknownOwner):
		writeErr(w, http.StatusBadRequest, "Unknown owner")
	case errors.Is(err, service.ErrInvalidSensorType), errors.Is(err, service.ErrInvalidSensorValue):
		writeErr(w, http.StatusBadRequest, "Invalid sensor data format")
	case errors.Is(err, service.ErrInvalidTimeframe):
		writeErr(w, http.StatusBadRequest, "Invalid or missing timeframe parameter")
	default:
		logger.Error("Request failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "Internal server error")
	}
}

// readBodyJSON decodes at most maxBytes of the body into out. An empty body is
// an error.
func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return io.ErrUnexpectedEOF
	}
	return json.Unmarshal(body, out)
}

func basicCredentials(r *http.Request) (service.Credentials, error) {
	email, password, ok := r.BasicAuth()
	if !ok {
		return service.Credentials{}, errMissingBasicAuth
	}
	return service.Credentials{Email: email, Password: password, IPAddress: clientIP(r)}, nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
