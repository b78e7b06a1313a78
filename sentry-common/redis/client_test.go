package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anb2473/Archeology-Sentry/sentry-common/config"
)

func TestNewRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Enabled: true, Addr: mr.Addr()})
	defer Close(client)

	require.NoError(t, Ping(context.Background(), client))

	mr.Close()
	assert.Error(t, Ping(context.Background(), client))
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
