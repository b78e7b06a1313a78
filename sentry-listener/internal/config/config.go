package config

import (
	"errors"
	"strings"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-common/config"
)

// Config is the listener configuration.
type Config struct {
	ServerURL string
	Email     string
	Password  string

	Device struct {
		Source          string // serial | tcp | file | mqtt
		Port            string
		BaudRate        int
		TCPAddr         string
		DialTimeout     time.Duration
		ReplayFile      string
		ReplayLineDelay time.Duration
		MQTTTopic       string
		MaxLineLength   int

		Reconnect         bool
		ReconnectDelay    time.Duration
		ReconnectMaxDelay time.Duration
	}

	Forward struct {
		QueueSize    int
		RetryCount   int
		RetryWait    time.Duration
		RetryMaxWait time.Duration
		Timeout      time.Duration
	}

	AuthRetryInterval time.Duration

	Redis config.RedisConfig
	// Stream receives device messages and failures when Redis is enabled.
	Stream struct {
		Name   string
		MaxLen int64
	}

	MQTT config.MQTTConfig
	Log  config.LogConfig
}

// Option adjusts the loaded configuration before validation.
type Option func(*Config)

// Load reads the configuration from the environment.
func Load(opts ...Option) (*Config, error) {
	cfg := &Config{}

	cfg.ServerURL = strings.TrimRight(config.GetEnv("SERVER_URL", ""), "/")
	cfg.Email = config.GetEnv("EMAIL", "")
	cfg.Password = config.GetEnv("PASSW", "")

	cfg.Device.Source = strings.ToLower(config.GetEnv("DEVICE_SOURCE", "serial"))
	cfg.Device.Port = config.GetEnv("ARDUINO_PORT", "/dev/ttyACM0")
	cfg.Device.BaudRate = config.ParseInt(config.GetEnv("DEVICE_BAUD_RATE", ""), 9600)
	cfg.Device.TCPAddr = config.GetEnv("DEVICE_TCP_ADDR", "")
	cfg.Device.DialTimeout = config.ParseDuration(config.GetEnv("DEVICE_DIAL_TIMEOUT", ""), 5*time.Second)
	cfg.Device.ReplayFile = config.GetEnv("DEVICE_REPLAY_FILE", "")
	cfg.Device.ReplayLineDelay = config.ParseDuration(config.GetEnv("DEVICE_REPLAY_DELAY", ""), 0)
	cfg.Device.MQTTTopic = config.GetEnv("DEVICE_MQTT_TOPIC", "sentry/device/lines")
	cfg.Device.MaxLineLength = config.ParseInt(config.GetEnv("DEVICE_MAX_LINE_LENGTH", ""), 4096)
	cfg.Device.Reconnect = config.ParseBool(config.GetEnv("DEVICE_RECONNECT", ""), true)
	cfg.Device.ReconnectDelay = config.ParseDuration(config.GetEnv("DEVICE_RECONNECT_DELAY", ""), time.Second)
	cfg.Device.ReconnectMaxDelay = config.ParseDuration(config.GetEnv("DEVICE_RECONNECT_MAX_DELAY", ""), 30*time.Second)

	cfg.Forward.QueueSize = config.ParseInt(config.GetEnv("FORWARD_QUEUE_SIZE", ""), 64)
	cfg.Forward.RetryCount = config.ParseInt(config.GetEnv("FORWARD_RETRY_COUNT", ""), 2)
	cfg.Forward.RetryWait = config.ParseDuration(config.GetEnv("FORWARD_RETRY_WAIT", ""), 500*time.Millisecond)
	cfg.Forward.RetryMaxWait = config.ParseDuration(config.GetEnv("FORWARD_RETRY_MAX_WAIT", ""), 5*time.Second)
	cfg.Forward.Timeout = config.ParseDuration(config.GetEnv("FORWARD_TIMEOUT", ""), 10*time.Second)

	cfg.AuthRetryInterval = config.ParseDuration(config.GetEnv("AUTH_RETRY_INTERVAL", ""), 30*time.Second)

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.Stream.Name = config.GetEnv("REDIS_STREAM", "sentry:listener:events")
	cfg.Stream.MaxLen = int64(config.ParseInt(config.GetEnv("REDIS_STREAM_MAXLEN", ""), 10000))

	cfg.MQTT = config.MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "sentry-listener", QoS: 1}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Log = config.LogConfig{Level: "info", Format: "json"}
	cfg.Log.LoadFromEnv("LOG")

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the listener cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerURL == "" {
		errs = append(errs, errors.New("SERVER_URL is required"))
	}
	if c.Email == "" || c.Password == "" {
		errs = append(errs, errors.New("EMAIL and PASSW are required"))
	}
	switch c.Device.Source {
	case "serial":
		if c.Device.Port == "" {
			errs = append(errs, errors.New("ARDUINO_PORT is required for the serial source"))
		}
	case "tcp":
		if c.Device.TCPAddr == "" {
			errs = append(errs, errors.New("DEVICE_TCP_ADDR is required for the tcp source"))
		}
	case "file":
		if c.Device.ReplayFile == "" {
			errs = append(errs, errors.New("DEVICE_REPLAY_FILE is required for the file source"))
		}
	case "mqtt":
		if c.Device.MQTTTopic == "" {
			errs = append(errs, errors.New("DEVICE_MQTT_TOPIC is required for the mqtt source"))
		}
		if err := c.MQTT.Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, errors.New("DEVICE_SOURCE must be one of serial, tcp, file, mqtt"))
	}
	if c.Device.Reconnect {
		if c.Device.ReconnectDelay <= 0 {
			errs = append(errs, errors.New("DEVICE_RECONNECT_DELAY must be positive"))
		}
		if c.Device.ReconnectMaxDelay < c.Device.ReconnectDelay {
			errs = append(errs, errors.New("DEVICE_RECONNECT_MAX_DELAY must not be below DEVICE_RECONNECT_DELAY"))
		}
	}
	if c.Forward.QueueSize <= 0 {
		errs = append(errs, errors.New("FORWARD_QUEUE_SIZE must be positive"))
	}
	if c.Forward.RetryCount < 0 {
		errs = append(errs, errors.New("FORWARD_RETRY_COUNT must not be negative"))
	}
	return errors.Join(errs...)
}

// WithReplayFile switches the device source to a capture file that is
// replayed once.
func WithReplayFile(path string, lineDelay time.Duration) Option {
	return func(c *Config) {
		c.Device.Source = "file"
		c.Device.ReplayFile = path
		c.Device.Reconnect = false
		if lineDelay > 0 {
			c.Device.ReplayLineDelay = lineDelay
		}
	}
}
