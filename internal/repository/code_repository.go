package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/pkg/database"
)

// codeRepository implements CodeRepository interface
type codeRepository struct {
	db *database.Postgres
}

// NewCodeRepository creates a new redemption code repository
func NewCodeRepository(db *database.Postgres) CodeRepository {
	return &codeRepository{db: db}
}

// GetByCode retrieves a redemption code row regardless of its used flag
func (r *codeRepository) GetByCode(ctx context.Context, code string) (*domain.RedemptionCode, error) {
	query := `
		SELECT code, used, used_at, device_id, user_ip, plan, max_devices, created_at
		FROM redemption_codes
		WHERE code = $1
	`

	rc := &domain.RedemptionCode{}
	var usedAt sql.NullTime
	var deviceID, userIP sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, code).Scan(
		&rc.Code,
		&rc.Used,
		&usedAt,
		&deviceID,
		&userIP,
		&rc.Plan,
		&rc.MaxDevices,
		&rc.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("redemption code not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get redemption code: %w", err)
	}

	if usedAt.Valid {
		rc.UsedAt = &usedAt.Time
	}
	if deviceID.Valid {
		rc.DeviceID = &deviceID.String
	}
	if userIP.Valid {
		rc.UserIP = &userIP.String
	}

	return rc, nil
}

// Redeem consumes a code with a single conditional update. Two concurrent
// attempts both read used=0, but only one UPDATE matches; the loser gets
// zero rows back and is indistinguishable from a code that never existed.
func (r *codeRepository) Redeem(ctx context.Context, code, deviceID, userIP string) (*domain.RedemptionCode, error) {
	query := `
		UPDATE redemption_codes
		SET used = TRUE, used_at = $2, device_id = $3, user_ip = $4
		WHERE code = $1 AND used = FALSE
		RETURNING code, used, used_at, device_id, user_ip, plan, max_devices, created_at
	`

	now := time.Now()

	rc := &domain.RedemptionCode{}
	var usedAt sql.NullTime
	var dev, ip sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, code, now, deviceID, userIP).Scan(
		&rc.Code,
		&rc.Used,
		&usedAt,
		&dev,
		&ip,
		&rc.Plan,
		&rc.MaxDevices,
		&rc.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("redemption failed for code: %w", ErrCodeAlreadyUsed)
		}
		return nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	if usedAt.Valid {
		rc.UsedAt = &usedAt.Time
	}
	if dev.Valid {
		rc.DeviceID = &dev.String
	}
	if ip.Valid {
		rc.UserIP = &ip.String
	}

	return rc, nil
}
