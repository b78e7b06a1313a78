package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/anb2473/Archeology-Sentry/sentry-collector/internal/domain"

	"github.com/google/uuid"
)

// PostgresDataPointsRepository implements DataPointsRepository on Postgres.
// created_at comes from clock_timestamp(); seq breaks ties between inserts
// that land on the same microsecond.
type PostgresDataPointsRepository struct {
	db *sql.DB
}

func NewPostgresDataPointsRepository(db *sql.DB) *PostgresDataPointsRepository {
	return &PostgresDataPointsRepository{db: db}
}

var _ DataPointsRepository = (*PostgresDataPointsRepository)(nil)

func (r *PostgresDataPointsRepository) Insert(ctx context.Context, dp *domain.DataPoint) error {
	id := uuid.NewString()

	var owner sql.NullString
	if dp.OwnerID != "" {
		owner = sql.NullString{String: dp.OwnerID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO data_points (id, type, value, owner_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		id, dp.Type, dp.Value, owner,
	).Scan(&dp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert data point: %w", err)
	}
	dp.ID = id
	return nil
}

const selectDataPoints = `
	SELECT
		dp.id::text,
		dp.type,
		dp.value,
		dp.created_at,
		COALESCE(dp.owner_id::text, ''),
		COALESCE(p.email, '')
	FROM data_points dp
	LEFT JOIN principals p ON dp.owner_id = p.id
`

func (r *PostgresDataPointsRepository) List(ctx context.Context, filter DataPointFilter) ([]*domain.DataPoint, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("dp.created_at >= $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("dp.type = $%d", len(args)))
	}

	query := selectDataPoints
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY dp.created_at DESC, dp.seq DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list data points: %w", err)
	}
	defer rows.Close()

	var out []*domain.DataPoint
	for rows.Next() {
		var dp domain.DataPoint
		if err := rows.Scan(&dp.ID, &dp.Type, &dp.Value, &dp.CreatedAt, &dp.OwnerID, &dp.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan data point: %w", err)
		}
		out = append(out, &dp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list data points: %w", err)
	}
	return out, nil
}

func (r *PostgresDataPointsRepository) Latest(ctx context.Context, sensorType string) (*domain.DataPoint, error) {
	var dp domain.DataPoint
	err := r.db.QueryRowContext(ctx,
		selectDataPoints+` WHERE dp.type = $1 ORDER BY dp.created_at DESC, dp.seq DESC LIMIT 1`,
		sensorType,
	).Scan(&dp.ID, &dp.Type, &dp.Value, &dp.CreatedAt, &dp.OwnerID, &dp.OwnerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest data point: %w", err)
	}
	return &dp, nil
}
