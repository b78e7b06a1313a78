package forwarder

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ClientOptions configures the HTTP client shared by the authenticator and
// the forwarder.
type ClientOptions struct {
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	UserAgent    string
	// Logger receives resty's own retry and transport messages. Nil keeps
	// resty's default stderr logger.
	Logger *zap.Logger
}

// NewClient builds a resty client for the collector at baseURL. Requests are
// retried sequentially with exponential backoff on transport errors and 5xx
// responses only; 4xx answers are final.
func NewClient(baseURL string, opts ClientOptions) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 5 * time.Second
	}
	if opts.RetryMaxWait < opts.RetryWait {
		opts.RetryMaxWait = opts.RetryWait
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")

	if opts.Logger != nil {
		client.SetLogger(opts.Logger.Named("resty").Sugar())
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return client
}
