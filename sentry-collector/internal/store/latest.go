// Package store keeps the newest reading per sensor type in Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"

	"github.com/go-redis/redis/v8"
)

var ErrMiss = errors.New("cache miss")

const latestKeyPrefix = "sentry:latest:"

// Each key is a hash: "at" holds CreatedAt in unix microseconds, "data" the
// JSON reading. Microseconds stay exact in a Lua number.
const (
	fieldAt   = "at"
	fieldData = "data"
)

// putIfNotOlder writes the reading unless the stored one is newer.
// KEYS[1] key; ARGV[1] at; ARGV[2] data; ARGV[3] ttl in ms (0 keeps it).
var putIfNotOlder = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'at')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'at', ARGV[1], 'data', ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

type cachedReading struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Value      float64   `json:"value"`
	CreatedAt  time.Time `json:"createdAt"`
	OwnerID    string    `json:"ownerId,omitempty"`
	OwnerEmail string    `json:"ownerEmail,omitempty"`
}

// LatestReadings caches the newest data point per sensor type.
type LatestReadings struct {
	c   *redis.Client
	ttl time.Duration
}

// NewLatestReadings stores entries with ttl; zero keeps them until replaced.
func NewLatestReadings(c *redis.Client, ttl time.Duration) *LatestReadings {
	return &LatestReadings{c: c, ttl: ttl}
}

func latestKey(sensorType string) string {
	return latestKeyPrefix + sensorType
}

// Put records dp unless the cached entry is already newer. The check and the
// write run as one script, so concurrent writers cannot regress the entry.
// It reports whether dp was stored.
func (c *LatestReadings) Put(ctx context.Context, dp *domain.DataPoint) (bool, error) {
	b, err := json.Marshal(cachedReading{
		ID:         dp.ID,
		Type:       dp.Type,
		Value:      dp.Value,
		CreatedAt:  dp.CreatedAt,
		OwnerID:    dp.OwnerID,
		OwnerEmail: dp.OwnerEmail,
	})
	if err != nil {
		return false, err
	}

	stored, err := putIfNotOlder.Run(ctx, c.c,
		[]string{latestKey(dp.Type)},
		dp.CreatedAt.UnixMicro(), string(b), c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("put latest %s: %w", dp.Type, err)
	}
	return stored == 1, nil
}

// Get returns the cached reading for sensorType or ErrMiss.
func (c *LatestReadings) Get(ctx context.Context, sensorType string) (*domain.DataPoint, error) {
	raw, err := c.c.HGet(ctx, latestKey(sensorType), fieldData).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return decodeReading(raw)
}

// All returns every cached reading keyed by sensor type. Entries that vanish
// or fail to decode mid-scan are skipped.
func (c *LatestReadings) All(ctx context.Context) (map[string]*domain.DataPoint, error) {
	keys, err := c.scanKeys(ctx, latestKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*domain.DataPoint, len(keys))
	for _, key := range keys {
		sensorType := strings.TrimPrefix(key, latestKeyPrefix)
		dp, err := c.Get(ctx, sensorType)
		if err != nil {
			continue
		}
		out[sensorType] = dp
	}
	return out, nil
}

func (c *LatestReadings) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := c.c.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func decodeReading(raw string) (*domain.DataPoint, error) {
	var r cachedReading
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode cached reading: %w", err)
	}
	return &domain.DataPoint{
		ID:         r.ID,
		Type:       r.Type,
		Value:      r.Value,
		CreatedAt:  r.CreatedAt,
		OwnerID:    r.OwnerID,
		OwnerEmail: r.OwnerEmail,
	}, nil
}
