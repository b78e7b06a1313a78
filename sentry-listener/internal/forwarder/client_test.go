package forwarder

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

func TestNewClient_RetryMessagesGoToZap(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	core, logs := zapobserver.New(zapcore.DebugLevel)
	opts := testClient(1)
	opts.Logger = zap.New(core)
	client := NewClient(url, opts)

	_, err := client.R().Get("/ping")
	require.Error(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("Attempt")
	assert.GreaterOrEqual(t, warnings.Len(), 1)
	for _, e := range warnings.All() {
		assert.Equal(t, "resty", e.LoggerName)
	}
}

func TestNewClient_RetriesOnlyServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, testClient(2))

	resp, err := client.R().Get("/bad")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, int32(1), hits.Load())

	hits.Store(0)
	resp, err = client.R().Get("/gateway")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode())
	assert.Equal(t, int32(3), hits.Load())
}
