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

// userRepository implements UserRepository interface
type userRepository struct {
	db *database.Postgres
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.Postgres) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, password_hash, name, picture, google_id, email_verified, status, created_at, last_login_at`

// Create creates a new user in the database
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, picture, google_id, email_verified, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	// Generate UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Picture,
		user.GoogleID,
		user.IsEmailVerified,
		user.Status,
		user.CreatedAt,
	)

	if err != nil {
		// Check for unique constraint violation (duplicate email)
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *userRepository) scanUser(row *sql.Row, what string) (*domain.User, error) {
	user := &domain.User{}
	var googleID sql.NullString
	var lastLoginAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Picture,
		&googleID,
		&user.IsEmailVerified,
		&user.Status,
		&user.CreatedAt,
		&lastLoginAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with %s not found: %w", what, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", what, err)
	}

	if googleID.Valid {
		user.GoogleID = &googleID.String
	}
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.DB.QueryRowContext(ctx, query, email), "email")
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.DB.QueryRowContext(ctx, query, id), "id")
}

// GetByGoogleID retrieves a user by federated Google account id
func (r *userRepository) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_id = $1`
	return r.scanUser(r.db.DB.QueryRowContext(ctx, query, googleID), "google id")
}

// LinkGoogleAccount attaches a federated identity to an existing user and
// marks the email verified, since the provider vouches for it.
func (r *userRepository) LinkGoogleAccount(ctx context.Context, userID, googleID, picture string) error {
	query := `
		UPDATE users
		SET google_id = $2, picture = $3, email_verified = TRUE
		WHERE id = $1
	`

	result, err := r.db.DB.ExecContext(ctx, query, userID, googleID, picture)
	if err != nil {
		return fmt.Errorf("failed to link google account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}

// MarkEmailVerified flips the email_verified flag for a user
func (r *userRepository) MarkEmailVerified(ctx context.Context, email string) error {
	query := `UPDATE users SET email_verified = TRUE WHERE email = $1`

	result, err := r.db.DB.ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with email %s not found: %w", email, ErrNotFound)
	}

	return nil
}

// UpdateLastLogin updates the last login timestamp for a user
func (r *userRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}

	return nil
}
