package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqttcommon "github.com/anb2473/Archeology-Sentry/sentry-common/mqtt"
	rediscommon "github.com/anb2473/Archeology-Sentry/sentry-common/redis"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/config"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/forwarder"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/observer"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/pipeline"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/session"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/source"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ListenerService wires the device source to the collector.
type ListenerService struct {
	config     *config.Config
	logger     *zap.Logger
	redis      *redis.Client
	mqttClient *mqttcommon.Client

	holder    *session.Holder
	pipeline  *pipeline.Pipeline
	newSource func() (source.Source, error)

	mu      sync.Mutex
	current source.Source
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// NewListenerService builds every component from cfg. Redis and MQTT are
// only dialed when the configuration asks for them.
func NewListenerService(cfg *config.Config, logger *zap.Logger) (*ListenerService, error) {
	var (
		redisClient *redis.Client
		mqttClient  *mqttcommon.Client
	)

	observers := observer.Multi{observer.NewLogObserver(logger)}
	if cfg.Redis.Enabled {
		redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			_ = rediscommon.Close(redisClient)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		observers = append(observers, observer.NewStreamObserver(redisClient, cfg.Stream.Name, cfg.Stream.MaxLen, cfg.Device.Source, logger))
	}

	var sub source.Subscriber
	if cfg.Device.Source == source.KindMQTT {
		c, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			_ = rediscommon.Close(redisClient)
			return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		mqttClient = c
		sub = c
	}

	client := forwarder.NewClient(cfg.ServerURL, forwarder.ClientOptions{
		Timeout:      cfg.Forward.Timeout,
		RetryCount:   cfg.Forward.RetryCount,
		RetryWait:    cfg.Forward.RetryWait,
		RetryMaxWait: cfg.Forward.RetryMaxWait,
		UserAgent:    "sentry-listener",
		Logger:       logger,
	})
	auth := session.NewHTTPAuthenticator(client, logger)

	srcCfg := source.Config{
		Kind:            cfg.Device.Source,
		SerialPort:      cfg.Device.Port,
		BaudRate:        cfg.Device.BaudRate,
		TCPAddr:         cfg.Device.TCPAddr,
		DialTimeout:     cfg.Device.DialTimeout,
		ReplayFile:      cfg.Device.ReplayFile,
		ReplayLineDelay: cfg.Device.ReplayLineDelay,
		MQTTTopic:       cfg.Device.MQTTTopic,
		MQTTQoS:         byte(cfg.MQTT.QoS),
	}

	s := newListenerService(cfg, logger, auth, client, observers, func() (source.Source, error) {
		return source.New(srcCfg, sub)
	})
	s.redis = redisClient
	s.mqttClient = mqttClient
	return s, nil
}

func newListenerService(
	cfg *config.Config,
	logger *zap.Logger,
	auth session.Authenticator,
	client *resty.Client,
	obs observer.Observer,
	newSource func() (source.Source, error),
) *ListenerService {
	holder := session.NewHolder(auth, session.Credentials{Email: cfg.Email, Password: cfg.Password}, logger)
	fwd := forwarder.New(client, holder, obs, logger)
	p := pipeline.New(fwd, obs, logger, pipeline.Options{
		QueueSize:     cfg.Forward.QueueSize,
		MaxLineLength: cfg.Device.MaxLineLength,
	})
	return &ListenerService{
		config:    cfg,
		logger:    logger,
		holder:    holder,
		pipeline:  p,
		newSource: newSource,
		done:      make(chan struct{}),
	}
}

// Start logs in once, then consumes the device in the background.
// A failed first login is not fatal: readings fail fast until the
// background re-authentication succeeds.
func (s *ListenerService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("listener already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("Starting listener service components",
		zap.String("server_url", s.config.ServerURL),
		zap.String("device_source", s.config.Device.Source),
	)

	if _, err := s.holder.Refresh(ctx); err != nil {
		s.logger.Warn("Initial login failed, readings will fail until it succeeds", zap.Error(err))
	}

	go s.holder.Maintain(runCtx, s.config.AuthRetryInterval)
	go func() {
		defer close(s.done)
		s.run(runCtx)
	}()

	s.logger.Info("Listener service started successfully")
	return nil
}

// Done is closed once the read loop has ended for good.
func (s *ListenerService) Done() <-chan struct{} {
	return s.done
}

// Err is the reason the read loop ended without Stop. Valid after Done.
func (s *ListenerService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Stats exposes the pipeline counters.
func (s *ListenerService) Stats() pipeline.Stats {
	return s.pipeline.Stats()
}

func (s *ListenerService) run(ctx context.Context) {
	delay := s.config.Device.ReconnectDelay
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if !s.config.Device.Reconnect {
			s.mu.Lock()
			s.runErr = err
			s.mu.Unlock()
			return
		}

		var openErr *openError
		if errors.As(err, &openErr) {
			s.logger.Error("Failed to open device source", zap.Error(err), zap.Duration("retry_in", delay))
		} else {
			delay = s.config.Device.ReconnectDelay
			s.logger.Warn("Device source stopped, reconnecting", zap.Error(err), zap.Duration("retry_in", delay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > s.config.Device.ReconnectMaxDelay {
			delay = s.config.Device.ReconnectMaxDelay
		}
	}
}

type openError struct{ err error }

func (e *openError) Error() string { return e.err.Error() }
func (e *openError) Unwrap() error { return e.err }

// consume opens a fresh source and runs the pipeline until it stops.
func (s *ListenerService) consume(ctx context.Context) error {
	src, err := s.newSource()
	if err != nil {
		return &openError{err}
	}
	if err := src.Open(ctx); err != nil {
		return &openError{fmt.Errorf("%s: %w", src, err)}
	}

	s.mu.Lock()
	s.current = src
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		_ = src.Close()
	}()

	s.logger.Info("Device source opened", zap.String("source", src.String()))
	return s.pipeline.Run(ctx, src)
}

// Stop cancels the read loop, closes the device and waits for the
// in-flight send to finish or ctx to expire.
func (s *ListenerService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping listener service")

	s.mu.Lock()
	cancel, current := s.cancel, s.current
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if current != nil {
		_ = current.Close()
	}

	var err error
	if cancel != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
			err = fmt.Errorf("listener did not stop in time: %w", ctx.Err())
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redis != nil {
		_ = rediscommon.Close(s.redis)
	}

	stats := s.pipeline.Stats()
	s.logger.Info("Listener service stopped",
		zap.Int64("lines", stats.Lines),
		zap.Int64("forwarded", stats.Forwarded),
		zap.Int64("failed", stats.Failed),
		zap.Int64("protocol_errors", stats.ProtocolErrors),
		zap.Int64("abandoned", stats.Abandoned),
	)
	return err
}
