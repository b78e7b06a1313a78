// Package forwarder maps parsed device events to collector API calls.
package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/observer"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/parser"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/session"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// SensorDataPath is the collector's ingestion endpoint.
const SensorDataPath = "/user/sensor-data"

// Payload is the ingestion request body.
type Payload struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type apiResponse struct {
	Msg string `json:"msg"`
	Err string `json:"err"`
}

// SendError is a failed ingestion call. StatusCode is zero for transport errors.
type SendError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SendError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("collector status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("collector status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("collector unreachable: %v", e.Err)
	}
}

func (e *SendError) Unwrap() error { return e.Err }

// Sessions is the session holder as seen by the forwarder.
type Sessions interface {
	Get() (session.Session, bool)
	RefreshAfterReject(ctx context.Context, rejected session.Session) (session.Session, error)
}

// Forwarder sends readings one at a time. Every failure is reported to the
// observer and returned to the caller, which is expected to carry on with
// the next event.
type Forwarder struct {
	client   *resty.Client
	sessions Sessions
	observer observer.Observer
	logger   *zap.Logger
}

func New(client *resty.Client, sessions Sessions, obs observer.Observer, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		client:   client,
		sessions: sessions,
		observer: obs,
		logger:   logger,
	}
}

// Forward handles one event. Info and DeviceError only reach the observer.
func (f *Forwarder) Forward(ctx context.Context, ev parser.Event) error {
	switch ev.(type) {
	case parser.Info, parser.DeviceError:
		f.observer.DeviceMessage(ev)
		return nil
	case parser.Temperature, parser.Humidity:
		if err := f.send(ctx, ev); err != nil {
			f.observer.ForwardFailed(ev, err)
			return err
		}
		f.observer.Forwarded(ev)
		return nil
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}
}

func (f *Forwarder) send(ctx context.Context, ev parser.Event) error {
	sess, ok := f.sessions.Get()
	if !ok {
		return session.ErrNoSession
	}

	value, _ := parser.Reading(ev)
	payload := Payload{Type: parser.Kind(ev), Value: value}

	err := f.post(ctx, sess, payload)
	var sendErr *SendError
	if !errors.As(err, &sendErr) || sendErr.StatusCode != http.StatusUnauthorized {
		return err
	}

	f.logger.Warn("Session rejected by collector, re-authenticating",
		zap.Duration("session_age", sess.Age(time.Now())),
	)
	fresh, rerr := f.sessions.RefreshAfterReject(ctx, sess)
	if rerr != nil {
		return fmt.Errorf("%w (re-authentication failed: %v)", err, rerr)
	}
	return f.post(ctx, fresh, payload)
}

func (f *Forwarder) post(ctx context.Context, sess session.Session, payload Payload) error {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Cookie", sess.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(SensorDataPath)
	if err != nil {
		return &SendError{Err: err}
	}

	var body apiResponse
	if jerr := json.Unmarshal(resp.Body(), &body); jerr != nil {
		if resp.IsSuccess() {
			return &SendError{StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", jerr)}
		}
		return &SendError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	if !resp.IsSuccess() {
		msg := body.Err
		if msg == "" {
			msg = "unknown error posting data"
		}
		return &SendError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}
