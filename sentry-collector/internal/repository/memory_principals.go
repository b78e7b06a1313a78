package repository

import (
	"context"
	"sync"
	"time"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"

	"github.com/google/uuid"
)

type MemoryPrincipalsRepo struct {
	mu      sync.RWMutex
	byID    map[string]domain.Principal
	byEmail map[string]string // email -> id
}

func NewMemoryPrincipalsRepo() *MemoryPrincipalsRepo {
	return &MemoryPrincipalsRepo{
		byID:    map[string]domain.Principal{},
		byEmail: map[string]string{},
	}
}

var _ PrincipalsRepository = (*MemoryPrincipalsRepo)(nil)

func (r *MemoryPrincipalsRepo) Create(_ context.Context, p *domain.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[p.Email]; ok {
		return ErrDuplicateEmail
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	r.byID[p.ID] = *p
	r.byEmail[p.Email] = p.ID
	return nil
}

func (r *MemoryPrincipalsRepo) GetByEmail(_ context.Context, email string) (*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	p := r.byID[id]
	return &p, nil
}

func (r *MemoryPrincipalsRepo) GetByID(_ context.Context, id string) (*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Delete removes a principal. Their data points stay, without an owner email.
func (r *MemoryPrincipalsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, p.Email)
	return nil
}
