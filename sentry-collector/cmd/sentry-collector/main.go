package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/config"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/db/migrate"
	httpapi "github.com/anb2473/Archeology-Sentry/sentry-collector/internal/http"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/repository"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/security"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/service"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/store"
	"github.com/anb2473/Archeology-Sentry/sentry-common/database"
	"github.com/anb2473/Archeology-Sentry/sentry-common/logger"
	sentryredis "github.com/anb2473/Archeology-Sentry/sentry-common/redis"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "sentry-collector")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	var principals repository.PrincipalsRepository
	var points repository.DataPointsRepository

	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			zapLogger.Info("DB enabled for sentry-collector", zap.String("host", cfg.Database.Host))
		} else {
			zapLogger.Warn("DB enabled but connection failed, falling back to memory", zap.Error(err))
		}
	}
	if db != nil {
		defer database.Close(db)
		if cfg.DBAutoMigrate {
			if err := migrate.Run(cfg.Database.GetURL(), migrate.DirectionUp); err != nil {
				zapLogger.Fatal("Failed to apply migrations", zap.Error(err))
			}
			zapLogger.Info("Migrations applied")
		}
		principals = repository.NewPostgresPrincipalsRepository(db)
		points = repository.NewPostgresDataPointsRepository(db)
	} else {
		// data is lost on restart
		memPrincipals := repository.NewMemoryPrincipalsRepo()
		principals = memPrincipals
		points = repository.NewMemoryDataPointsRepo(memPrincipals)
	}

	var latest *store.LatestReadings
	if cfg.Redis.Enabled {
		redisClient := sentryredis.NewRedisClient(&cfg.Redis)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := sentryredis.Ping(pingCtx, redisClient)
		pingCancel()
		if err != nil {
			zapLogger.Warn("Redis unreachable, latest-reading cache disabled",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
			_ = sentryredis.Close(redisClient)
		} else {
			defer sentryredis.Close(redisClient)
			latest = store.NewLatestReadings(redisClient, cfg.LatestTTL)
		}
	}

	tokens, err := security.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	if err != nil {
		zapLogger.Fatal("Failed to create token issuer", zap.Error(err))
	}

	authSvc := service.NewAuthService(principals, tokens, cfg.Auth.AllowedDomains, zapLogger)
	sensorSvc := service.NewSensorDataService(points, principals, latest, zapLogger)

	router := httpapi.NewRouter(zapLogger)
	router.RegisterHealthRoutes()
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authSvc, cfg.Auth.CookieSecure, zapLogger))
	router.RegisterSensorDataRoutes(httpapi.NewSensorDataHandler(sensorSvc, cfg.Query.DefaultWindow, zapLogger), authSvc)

	srv := service.NewServer(cfg.HTTP.Addr, httpapi.LogRequests(zapLogger, router), zapLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
