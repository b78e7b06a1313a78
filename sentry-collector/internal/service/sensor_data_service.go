package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/repository"
	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/store"

	"go.uber.org/zap"
)

// SensorDataService ingests and queries readings.
type SensorDataService interface {
	Ingest(ctx context.Context, ownerID string, req IngestRequest) (*domain.DataPoint, error)
	// Query returns points inside w for every principal, newest first.
	Query(ctx context.Context, w Window) ([]*domain.DataPoint, error)
	// Latest returns the newest point per sensor type.
	Latest(ctx context.Context) (map[string]*domain.DataPoint, error)
}

type IngestRequest struct {
	Type  string
	Value float64
}

// Window selects the points a query returns.
type Window struct {
	All      bool
	Duration time.Duration
}

// maxWindowMinutes is the largest window that fits in a time.Duration.
const maxWindowMinutes = math.MaxInt64 / int64(time.Minute)

// ParseWindow interprets the timeframe query parameter. Absent means def;
// "all" means no bound; otherwise a positive number of minutes no larger
// than maxWindowMinutes.
func ParseWindow(raw string, present bool, def time.Duration) (Window, error) {
	if !present {
		return Window{Duration: def}, nil
	}
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "all") {
		return Window{All: true}, nil
	}
	minutes, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || minutes <= 0 || minutes > maxWindowMinutes {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidTimeframe, raw)
	}
	return Window{Duration: time.Duration(minutes) * time.Minute}, nil
}

type sensorDataService struct {
	points     repository.DataPointsRepository
	principals repository.PrincipalsRepository
	latest     *store.LatestReadings // nil when Redis is disabled
	logger     *zap.Logger
	now        func() time.Time
}

func NewSensorDataService(
	points repository.DataPointsRepository,
	principals repository.PrincipalsRepository,
	latest *store.LatestReadings,
	logger *zap.Logger,
) SensorDataService {
	return &sensorDataService{
		points:     points,
		principals: principals,
		latest:     latest,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *sensorDataService) Ingest(ctx context.Context, ownerID string, req IngestRequest) (*domain.DataPoint, error) {
	if !domain.ValidSensorType(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSensorType, req.Type)
	}
	if math.IsNaN(req.Value) || math.IsInf(req.Value, 0) {
		return nil, ErrInvalidSensorValue
	}

	owner, err := s.principals.GetByID(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownOwner
	}
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}

	dp := &domain.DataPoint{Type: req.Type, Value: req.Value, OwnerID: owner.ID}
	if err := s.points.Insert(ctx, dp); err != nil {
		return nil, err
	}
	dp.OwnerEmail = owner.Email

	if s.latest != nil {
		if _, err := s.latest.Put(ctx, dp); err != nil {
			s.logger.Warn("Failed to cache latest reading", zap.String("type", dp.Type), zap.Error(err))
		}
	}
	return dp, nil
}

func (s *sensorDataService) Query(ctx context.Context, w Window) ([]*domain.DataPoint, error) {
	var filter repository.DataPointFilter
	if !w.All {
		since := s.now().Add(-w.Duration)
		filter.Since = &since
	}
	return s.points.List(ctx, filter)
}

func (s *sensorDataService) Latest(ctx context.Context) (map[string]*domain.DataPoint, error) {
	out := make(map[string]*domain.DataPoint, len(domain.SensorTypes))
	if s.latest != nil {
		cached, err := s.latest.All(ctx)
		if err != nil {
			s.logger.Warn("Latest reading cache unavailable, using database", zap.Error(err))
		}
		for t, dp := range cached {
			if domain.ValidSensorType(t) {
				out[t] = dp
			}
		}
	}

	for _, t := range domain.SensorTypes {
		if _, ok := out[t]; ok {
			continue
		}
		dp, err := s.points.Latest(ctx, t)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[t] = dp
		if s.latest != nil {
			if _, err := s.latest.Put(ctx, dp); err != nil {
				s.logger.Debug("Failed to backfill latest reading", zap.Error(err))
			}
		}
	}
	return out, nil
}
