package service

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/repository"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/store"
)

type sensorFixture struct {
	svc        *sensorDataService
	points     *repository.MemoryDataPointsRepo
	principals *repository.MemoryPrincipalsRepo
	owner      *domain.Principal
}

func newSensorFixture(t *testing.T, latest *store.LatestReadings) *sensorFixture {
	t.Helper()
	principals := repository.NewMemoryPrincipalsRepo()
	owner := &domain.Principal{Email: "ops@dig.example", PasswordHash: "x"}
	require.NoError(t, principals.Create(context.Background(), owner))
	points := repository.NewMemoryDataPointsRepo(principals)

	svc := NewSensorDataService(points, principals, latest, zap.NewNop()).(*sensorDataService)
	return &sensorFixture{svc: svc, points: points, principals: principals, owner: owner}
}

func TestParseWindow(t *testing.T) {
	def := time.Hour

	w, err := ParseWindow("", false, def)
	require.NoError(t, err)
	assert.Equal(t, Window{Duration: time.Hour}, w)

	w, err = ParseWindow("all", true, def)
	require.NoError(t, err)
	assert.True(t, w.All)

	w, err = ParseWindow("15", true, def)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, w.Duration)

	w, err = ParseWindow(strconv.FormatInt(maxWindowMinutes, 10), true, def)
	require.NoError(t, err)
	assert.Greater(t, w.Duration, time.Duration(0))

	for _, raw := range []string{"", "0", "-5", "abc", "1.5", "200000000", "99999999999999999999"} {
		_, err := ParseWindow(raw, true, def)
		assert.ErrorIs(t, err, ErrInvalidTimeframe, raw)
	}
}

func TestSensorDataService_IngestAndQuery(t *testing.T) {
	f := newSensorFixture(t, nil)
	ctx := context.Background()

	dp, err := f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "temperature", Value: 21.5})
	require.NoError(t, err)
	assert.NotEmpty(t, dp.ID)
	assert.Equal(t, "ops@dig.example", dp.OwnerEmail)

	got, err := f.svc.Query(ctx, Window{Duration: time.Hour})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 21.5, got[0].Value)
	assert.Equal(t, "temperature", got[0].Type)
	assert.Equal(t, "ops@dig.example", got[0].OwnerEmail)
}

func TestSensorDataService_IngestValidation(t *testing.T) {
	f := newSensorFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "pressure", Value: 1})
	assert.ErrorIs(t, err, ErrInvalidSensorType)

	_, err = f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "humidity", Value: math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidSensorValue)

	_, err = f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "humidity", Value: math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidSensorValue)

	_, err = f.svc.Ingest(ctx, "6b1f3c1e-0000-4000-8000-000000000000", IngestRequest{Type: "humidity", Value: 40})
	assert.ErrorIs(t, err, ErrUnknownOwner)

	all, err := f.svc.Query(ctx, Window{All: true})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSensorDataService_QueryWindow(t *testing.T) {
	f := newSensorFixture(t, nil)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	for _, age := range []time.Duration{90 * time.Minute, 30 * time.Minute, 10 * time.Minute} {
		ts := now.Add(-age)
		f.points.SetClock(func() time.Time { return ts })
		_, err := f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "temperature", Value: age.Minutes()})
		require.NoError(t, err)
	}

	recent, err := f.svc.Query(ctx, Window{Duration: time.Hour})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 10.0, recent[0].Value)
	assert.Equal(t, 30.0, recent[1].Value)

	all, err := f.svc.Query(ctx, Window{All: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSensorDataService_DuplicatesAreKept(t *testing.T) {
	f := newSensorFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "humidity", Value: 40})
		require.NoError(t, err)
	}
	got, err := f.svc.Query(ctx, Window{All: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestSensorDataService_LatestUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	latest := store.NewLatestReadings(client, 0)

	f := newSensorFixture(t, latest)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "temperature", Value: 20})
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "temperature", Value: 22})
	require.NoError(t, err)

	cached, err := latest.Get(ctx, "temperature")
	require.NoError(t, err)
	assert.Equal(t, 22.0, cached.Value)

	got, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	require.Contains(t, got, "temperature")
	assert.Equal(t, 22.0, got["temperature"].Value)
	assert.NotContains(t, got, "humidity")
}

func TestSensorDataService_LatestFallsBackToRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	latest := store.NewLatestReadings(client, 0)

	f := newSensorFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Ingest(ctx, f.owner.ID, IngestRequest{Type: "humidity", Value: 55})
	require.NoError(t, err)

	// cache attached after the write, so the first read must come from the repository
	f.svc.latest = latest
	got, err := f.svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 55.0, got["humidity"].Value)

	backfilled, err := latest.Get(ctx, "humidity")
	require.NoError(t, err)
	assert.Equal(t, 55.0, backfilled.Value)

	mr.Close()
	got, err = f.svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 55.0, got["humidity"].Value)
}
