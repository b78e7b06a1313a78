package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/config"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/forwarder"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/observer"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/session"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collector struct {
	mu       sync.Mutex
	readings []forwarder.Payload
	logins   atomic.Int32
	reject   bool
}

func (c *collector) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(session.LoginPath, func(w http.ResponseWriter, r *http.Request) {
		c.logins.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if c.reject {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"err":"Incorrect password or email"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "jwt", Value: "tok"})
		_, _ = w.Write([]byte(`{"msg":"Login successful"}`))
	})
	mux.HandleFunc(forwarder.SensorDataPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "jwt=tok", r.Header.Get("Cookie"))
		var p forwarder.Payload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		c.mu.Lock()
		c.readings = append(c.readings, p)
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"msg":"Successfully added data"}`))
	})
	return mux
}

func (c *collector) received() []forwarder.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]forwarder.Payload(nil), c.readings...)
}

func (c *collector) count() int { return len(c.received()) }

func testConfig(reconnect bool) *config.Config {
	cfg := &config.Config{Email: "probe@gmail.com", Password: "secret1"}
	cfg.Device.Source = source.KindFile
	cfg.Device.Reconnect = reconnect
	cfg.Device.ReconnectDelay = time.Millisecond
	cfg.Device.ReconnectMaxDelay = 4 * time.Millisecond
	cfg.Forward.QueueSize = 8
	cfg.AuthRetryInterval = time.Hour
	return cfg
}

func writeCapture(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func build(t *testing.T, cfg *config.Config, c *collector, newSource func() (source.Source, error)) *ListenerService {
	t.Helper()
	srv := httptest.NewServer(c.handler(t))
	t.Cleanup(srv.Close)
	cfg.ServerURL = srv.URL

	client := forwarder.NewClient(srv.URL, forwarder.ClientOptions{Timeout: time.Second})
	logger := zap.NewNop()
	auth := session.NewHTTPAuthenticator(client, logger)
	return newListenerService(cfg, logger, auth, client, observer.NewLogObserver(logger), newSource)
}

func TestListener_ReplaysCaptureOnce(t *testing.T) {
	path := writeCapture(t, "Istarting\nT21.5\nH40\nXbad\n")
	c := &collector{}
	cfg := testConfig(false)
	svc := build(t, cfg, c, func() (source.Source, error) {
		return source.NewFileSource(path, 0), nil
	})

	require.NoError(t, svc.Start(context.Background()))
	select {
	case <-svc.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not finish the capture")
	}

	assert.Equal(t, []forwarder.Payload{{Type: "temperature", Value: 21.5}, {Type: "humidity", Value: 40}}, c.received())
	assert.Equal(t, int32(1), c.logins.Load())
	assert.Error(t, svc.Err())

	stats := svc.Stats()
	assert.Equal(t, int64(2), stats.Forwarded)
	assert.Equal(t, int64(1), stats.ProtocolErrors)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Stop(ctx))
}

func TestListener_ReconnectsAfterOpenFailures(t *testing.T) {
	path := writeCapture(t, "T20\n")
	c := &collector{}
	var attempts atomic.Int32
	svc := build(t, testConfig(true), c, func() (source.Source, error) {
		if attempts.Add(1) <= 2 {
			return nil, errors.New("port busy")
		}
		return source.NewFileSource(path, 0), nil
	})

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return c.count() >= 2 }, 3*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(4))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	assert.NoError(t, svc.Err())
}

func TestListener_LoginFailureDoesNotStopReading(t *testing.T) {
	path := writeCapture(t, "T20\nH30\n")
	c := &collector{reject: true}
	svc := build(t, testConfig(false), c, func() (source.Source, error) {
		return source.NewFileSource(path, 0), nil
	})

	require.NoError(t, svc.Start(context.Background()))
	<-svc.Done()

	assert.Zero(t, c.count())
	assert.Equal(t, int64(2), svc.Stats().Failed)
	require.NoError(t, svc.Stop(context.Background()))
}

func TestListener_StopUnblocksIdleSource(t *testing.T) {
	c := &collector{}
	pr := newBlockingSource()
	svc := build(t, testConfig(true), c, func() (source.Source, error) { return pr, nil })

	require.NoError(t, svc.Start(context.Background()))
	require.Eventually(t, func() bool { return pr.opened.Load() }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	assert.True(t, pr.closed.Load())
}

// blockingSource never produces data until closed.
type blockingSource struct {
	opened, closed atomic.Bool
	once           sync.Once
	done           chan struct{}
}

func newBlockingSource() *blockingSource {
	return &blockingSource{done: make(chan struct{})}
}

func (b *blockingSource) Open(context.Context) error {
	b.opened.Store(true)
	return nil
}

func (b *blockingSource) Read([]byte) (int, error) {
	<-b.done
	return 0, source.ErrNotOpen
}

func (b *blockingSource) Close() error {
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.done)
	})
	return nil
}

func (b *blockingSource) String() string { return "blocking" }
