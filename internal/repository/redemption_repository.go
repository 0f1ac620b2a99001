package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/pkg/database"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// redemptionRepository implements RedemptionRepository interface
type redemptionRepository struct {
	db *database.Postgres
}

// NewRedemptionRepository creates a new user redemption repository
func NewRedemptionRepository(db *database.Postgres) RedemptionRepository {
	return &redemptionRepository{db: db}
}

// Create records a user claiming a code. The (user_id, code) unique
// constraint backs the at-most-once-per-user invariant.
func (r *redemptionRepository) Create(ctx context.Context, redemption *domain.UserRedemption) error {
	query := `
		INSERT INTO user_redemptions (id, user_id, code, plan, status, redeemed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if redemption.ID == "" {
		redemption.ID = uuid.New().String()
	}
	if redemption.RedeemedAt.IsZero() {
		redemption.RedeemedAt = time.Now()
	}
	if redemption.Status == "" {
		redemption.Status = domain.RedemptionStatusActive
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		redemption.ID,
		redemption.UserID,
		redemption.Code,
		redemption.Plan,
		redemption.Status,
		redemption.RedeemedAt,
		redemption.ExpiresAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("code %s already redeemed by user %s: %w", redemption.Code, redemption.UserID, ErrAlreadyRedeemed)
			}
		}
		return fmt.Errorf("failed to create user redemption: %w", err)
	}

	return nil
}

// GetByUserAndCode retrieves a redemption record for a specific user and code
func (r *redemptionRepository) GetByUserAndCode(ctx context.Context, userID, code string) (*domain.UserRedemption, error) {
	query := `
		SELECT id, user_id, code, plan, status, redeemed_at, expires_at
		FROM user_redemptions
		WHERE user_id = $1 AND code = $2
	`

	redemption := &domain.UserRedemption{}
	err := r.db.DB.QueryRowContext(ctx, query, userID, code).Scan(
		&redemption.ID,
		&redemption.UserID,
		&redemption.Code,
		&redemption.Plan,
		&redemption.Status,
		&redemption.RedeemedAt,
		&redemption.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("redemption not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}

	return redemption, nil
}

// ListByUser retrieves all redemption records for a user
func (r *redemptionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.UserRedemption, error) {
	query := `
		SELECT id, user_id, code, plan, status, redeemed_at, expires_at
		FROM user_redemptions
		WHERE user_id = $1
		ORDER BY redeemed_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []*domain.UserRedemption
	for rows.Next() {
		redemption := &domain.UserRedemption{}
		err := rows.Scan(
			&redemption.ID,
			&redemption.UserID,
			&redemption.Code,
			&redemption.Plan,
			&redemption.Status,
			&redemption.RedeemedAt,
			&redemption.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}

		redemptions = append(redemptions, redemption)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate redemptions: %w", err)
	}

	return redemptions, nil
}
