package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server runs the collector HTTP API.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{httpServer: s, logger: logger}
}

// Start blocks until the server stops. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("Starting sentry-collector HTTP server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping sentry-collector HTTP server")
	return s.httpServer.Shutdown(ctx)
}
