package main

import (
	"fmt"
	"os"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/db/migrate"
	"github.com/anb2473/Archeology-Sentry/sentry-common/config"

	"github.com/spf13/pflag"
)

func main() {
	direction := pflag.StringP("direction", "d", migrate.DirectionUp, "migration direction: up or down")
	dbURL := pflag.String("database-url", "", "postgres URL (default: built from DB_* variables)")
	pflag.Parse()

	url := *dbURL
	if url == "" {
		cfg := config.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "sentry",
			SSLMode:  "disable",
		}
		cfg.LoadFromEnv("DB")
		url = cfg.GetURL()
	}

	if err := migrate.Run(url, *direction); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied (%s)\n", *direction)
}
