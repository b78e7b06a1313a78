package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// unique_violation
const pqUniqueViolation = "23505"

type PostgresPrincipalsRepository struct {
	db *sql.DB
}

func NewPostgresPrincipalsRepository(db *sql.DB) *PostgresPrincipalsRepository {
	return &PostgresPrincipalsRepository{db: db}
}

var _ PrincipalsRepository = (*PostgresPrincipalsRepository)(nil)

func (r *PostgresPrincipalsRepository) Create(ctx context.Context, p *domain.Principal) error {
	id := uuid.NewString()
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO principals (id, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		id, p.Email, p.PasswordHash,
	).Scan(&p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create principal: %w", err)
	}
	p.ID = id
	return nil
}

func (r *PostgresPrincipalsRepository) GetByEmail(ctx context.Context, email string) (*domain.Principal, error) {
	return r.getOne(ctx, `SELECT id::text, email, password_hash, created_at FROM principals WHERE email = $1`, email)
}

func (r *PostgresPrincipalsRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT id::text, email, password_hash, created_at FROM principals WHERE id = $1`, id)
}

func (r *PostgresPrincipalsRepository) getOne(ctx context.Context, query string, arg string) (*domain.Principal, error) {
	var p domain.Principal
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Email, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return &p, nil
}
