package repository

import (
	"context"
	"sync"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"

	"github.com/google/uuid"
)

// MemoryDataPointsRepo keeps readings in process when the database is disabled.
type MemoryDataPointsRepo struct {
	mu         sync.RWMutex
	points     []domain.DataPoint // insertion order
	last       time.Time
	principals PrincipalsRepository
	now        func() time.Time
}

// NewMemoryDataPointsRepo resolves owner emails through principals, which may be nil.
func NewMemoryDataPointsRepo(principals PrincipalsRepository) *MemoryDataPointsRepo {
	return &MemoryDataPointsRepo{principals: principals, now: time.Now}
}

// SetClock replaces the time source.
func (r *MemoryDataPointsRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

var _ DataPointsRepository = (*MemoryDataPointsRepo)(nil)

func (r *MemoryDataPointsRepo) Insert(_ context.Context, dp *domain.DataPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := r.now().UTC()
	if !created.After(r.last) {
		created = r.last.Add(time.Microsecond)
	}
	r.last = created

	dp.ID = uuid.NewString()
	dp.CreatedAt = created
	stored := *dp
	stored.OwnerEmail = ""
	r.points = append(r.points, stored)
	return nil
}

func (r *MemoryDataPointsRepo) List(ctx context.Context, filter DataPointFilter) ([]*domain.DataPoint, error) {
	r.mu.RLock()
	var out []*domain.DataPoint
	for i := len(r.points) - 1; i >= 0; i-- {
		p := r.points[i]
		if filter.Since != nil && p.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		out = append(out, &p)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	r.mu.RUnlock()

	r.fillOwners(ctx, out)
	return out, nil
}

func (r *MemoryDataPointsRepo) Latest(ctx context.Context, sensorType string) (*domain.DataPoint, error) {
	points, _ := r.List(ctx, DataPointFilter{Type: sensorType, Limit: 1})
	if len(points) == 0 {
		return nil, ErrNotFound
	}
	return points[0], nil
}

func (r *MemoryDataPointsRepo) fillOwners(ctx context.Context, points []*domain.DataPoint) {
	if r.principals == nil {
		return
	}
	emails := map[string]string{}
	for _, p := range points {
		if p.OwnerID == "" {
			continue
		}
		email, ok := emails[p.OwnerID]
		if !ok {
			if owner, err := r.principals.GetByID(ctx, p.OwnerID); err == nil {
				email = owner.Email
			}
			emails[p.OwnerID] = email
		}
		p.OwnerEmail = email
	}
}
