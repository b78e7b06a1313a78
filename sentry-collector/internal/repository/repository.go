package repository

import (
	"context"
	"errors"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

// DataPointFilter narrows List. Zero values mean no restriction.
type DataPointFilter struct {
	Since *time.Time
	Type  string
	Limit int
}

// DataPointsRepository stores readings. Insert assigns ID and CreatedAt;
// CreatedAt is strictly increasing across inserts.
type DataPointsRepository interface {
	Insert(ctx context.Context, dp *domain.DataPoint) error
	// List returns points newest first, with OwnerEmail populated.
	List(ctx context.Context, filter DataPointFilter) ([]*domain.DataPoint, error)
	// Latest returns the newest point of the given type, or ErrNotFound.
	Latest(ctx context.Context, sensorType string) (*domain.DataPoint, error)
}

// PrincipalsRepository stores accounts.
type PrincipalsRepository interface {
	// Create assigns ID and CreatedAt. ErrDuplicateEmail if the email exists.
	Create(ctx context.Context, p *domain.Principal) error
	GetByEmail(ctx context.Context, email string) (*domain.Principal, error)
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
}
