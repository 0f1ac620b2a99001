package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/pkg/database"
	"github.com/lib/pq"
)

// grantRepository implements GrantRepository interface
type grantRepository struct {
	db *database.Postgres
}

// NewGrantRepository creates a new access grant repository
func NewGrantRepository(db *database.Postgres) GrantRepository {
	return &grantRepository{db: db}
}

// Create persists a new device-bound access grant
func (r *grantRepository) Create(ctx context.Context, grant *domain.AccessGrant) error {
	query := `
		INSERT INTO access_grants (token_id, code, devices, max_devices, unlocked, unlocked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if grant.UnlockedAt.IsZero() {
		grant.UnlockedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		grant.TokenID,
		grant.Code,
		pq.Array(grant.Devices),
		grant.MaxDevices,
		grant.Unlocked,
		grant.UnlockedAt,
		grant.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create access grant: %w", err)
	}

	return nil
}

// GetByTokenID retrieves an access grant by its opaque token id
func (r *grantRepository) GetByTokenID(ctx context.Context, tokenID string) (*domain.AccessGrant, error) {
	query := `
		SELECT token_id, code, devices, max_devices, unlocked, unlocked_at, expires_at
		FROM access_grants
		WHERE token_id = $1
	`

	grant := &domain.AccessGrant{}
	err := r.db.DB.QueryRowContext(ctx, query, tokenID).Scan(
		&grant.TokenID,
		&grant.Code,
		pq.Array(&grant.Devices),
		&grant.MaxDevices,
		&grant.Unlocked,
		&grant.UnlockedAt,
		&grant.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access grant not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get access grant: %w", err)
	}

	return grant, nil
}

// UpdateDevices replaces the device allowlist for a grant. The caller is
// responsible for keeping the list within the grant's device cap.
func (r *grantRepository) UpdateDevices(ctx context.Context, tokenID string, devices []string) error {
	query := `UPDATE access_grants SET devices = $2 WHERE token_id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, tokenID, pq.Array(devices))
	if err != nil {
		return fmt.Errorf("failed to update grant devices: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("access grant %s not found: %w", tokenID, ErrNotFound)
	}

	return nil
}
