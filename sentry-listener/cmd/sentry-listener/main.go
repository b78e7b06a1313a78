package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-common/logger"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/config"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/service"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	replay := pflag.String("replay", "", "replay a captured device log instead of reading the device")
	replayDelay := pflag.Duration("replay-delay", 0, "pause between replayed lines")
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("sentry-listener", version)
		return
	}

	var opts []config.Option
	if *replay != "" {
		opts = append(opts, config.WithReplayFile(*replay, *replayDelay))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "sentry-listener")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting sentry-listener service",
		zap.String("version", version),
		zap.String("server_url", cfg.ServerURL),
		zap.String("device_source", cfg.Device.Source),
	)

	listener, err := service.NewListenerService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create listener service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := listener.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start listener service", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-listener.Done():
		if err := listener.Err(); err != nil {
			zapLogger.Info("Device source finished", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	cancel()
	if err := listener.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
