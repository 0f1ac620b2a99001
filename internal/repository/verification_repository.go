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
)

// verificationRepository implements VerificationRepository interface
type verificationRepository struct {
	db *database.Postgres
}

// NewVerificationRepository creates a new email verification repository
func NewVerificationRepository(db *database.Postgres) VerificationRepository {
	return &verificationRepository{db: db}
}

// Create persists a new verification code
func (r *verificationRepository) Create(ctx context.Context, verification *domain.EmailVerification) error {
	query := `
		INSERT INTO email_verifications (id, email, verification_code, used, created_at, expires_at)
		VALUES ($1, $2, $3, FALSE, $4, $5)
	`

	if verification.ID == "" {
		verification.ID = uuid.New().String()
	}
	if verification.CreatedAt.IsZero() {
		verification.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		verification.ID,
		verification.Email,
		verification.Code,
		verification.CreatedAt,
		verification.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create email verification: %w", err)
	}

	return nil
}

// GetLatestUnused retrieves the newest unused code matching email and code exactly
func (r *verificationRepository) GetLatestUnused(ctx context.Context, email, code string) (*domain.EmailVerification, error) {
	query := `
		SELECT id, email, verification_code, used, created_at, expires_at
		FROM email_verifications
		WHERE email = $1 AND verification_code = $2 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`

	verification := &domain.EmailVerification{}
	err := r.db.DB.QueryRowContext(ctx, query, email, code).Scan(
		&verification.ID,
		&verification.Email,
		&verification.Code,
		&verification.Used,
		&verification.CreatedAt,
		&verification.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification code not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}

	return verification, nil
}

// MarkUsed consumes a verification code
func (r *verificationRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE email_verifications SET used = TRUE WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark verification used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("verification %s not found: %w", id, ErrNotFound)
	}

	return nil
}

// DeleteOlderThan removes stale verification rows
func (r *verificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	query := `DELETE FROM email_verifications WHERE created_at < $1`

	_, err := r.db.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old verifications: %w", err)
	}

	return nil
}
