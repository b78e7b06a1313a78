package config

import (
	"errors"
	"strings"
	"time"

	commoncfg "github.com/anb2473/Archeology-Sentry/sentry-common/config"
)

// Config is the collector (HTTP API) configuration.
type Config struct {
	HTTP struct {
		Addr string
	}

	DBEnabled     bool
	DBAutoMigrate bool
	Database      commoncfg.DatabaseConfig

	Redis     commoncfg.RedisConfig
	LatestTTL time.Duration

	Auth struct {
		JWTSecret      string
		JWTTTL         time.Duration
		CookieSecure   bool
		AllowedDomains []string
	}

	Query struct {
		DefaultWindow time.Duration
	}

	Log commoncfg.LogConfig
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = commoncfg.GetEnv("HTTP_ADDR", "")
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":" + commoncfg.GetEnv("PORT", "3000")
	}

	// DB unavailable at start means in-memory storage, see cmd/sentry-collector.
	cfg.DBEnabled = commoncfg.ParseBool(commoncfg.GetEnv("DB_ENABLED", ""), true)
	cfg.DBAutoMigrate = commoncfg.ParseBool(commoncfg.GetEnv("DB_AUTO_MIGRATE", ""), false)
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "sentry",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = commoncfg.RedisConfig{Enabled: true, Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.LatestTTL = commoncfg.ParseDuration(commoncfg.GetEnv("LATEST_READING_TTL", ""), 0)

	cfg.Auth.JWTSecret = commoncfg.GetEnv("JWT_SECRET", "")
	cfg.Auth.JWTTTL = commoncfg.ParseDuration(commoncfg.GetEnv("JWT_TTL", ""), 24*time.Hour)
	cfg.Auth.CookieSecure = commoncfg.ParseBool(commoncfg.GetEnv("COOKIE_SECURE", ""), false)
	for _, d := range commoncfg.SplitList(commoncfg.GetEnv("AUTH_ALLOWED_DOMAINS", "")) {
		cfg.Auth.AllowedDomains = append(cfg.Auth.AllowedDomains, strings.ToLower(d))
	}

	minutes := commoncfg.ParseInt(commoncfg.GetEnv("QUERY_DEFAULT_WINDOW_MINUTES", ""), 60)
	cfg.Query.DefaultWindow = time.Duration(minutes) * time.Minute

	cfg.Log = commoncfg.LogConfig{Level: "info", Format: "json"}
	cfg.Log.LoadFromEnv("LOG")

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.Query.DefaultWindow <= 0 {
		return nil, errors.New("QUERY_DEFAULT_WINDOW_MINUTES must be positive")
	}
	return cfg, nil
}
