package httpapi

import (
	"net/http"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/service"

	"go.uber.org/zap"
)

// Router wraps http.ServeMux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes registers /ping.
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/ping", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeMsg(w, http.StatusOK, "pong")
	})
}

func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.HandleHandler("/auth/signup", h)
	r.HandleHandler("/auth/login", h)
	r.HandleHandler("/auth/logout", h)
}

// RegisterSensorDataRoutes registers the sensor data routes behind session auth.
func (r *Router) RegisterSensorDataRoutes(h *SensorDataHandler, auth service.AuthService) {
	protected := RequireSession(auth, r.logger, h.ServeHTTP)
	r.Handle("/user/sensor-data", protected)
	r.Handle("/user/sensor-data/", protected)
}
