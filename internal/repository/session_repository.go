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

// sessionRepository implements SessionRepository interface
type sessionRepository struct {
	db *database.Postgres
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.Postgres) SessionRepository {
	return &sessionRepository{db: db}
}

// Create creates a new session in the database
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (session_token, user_id, device_id, ip_address, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		session.Token,
		session.UserID,
		session.DeviceID,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.ExpiresAt,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("session token collision: %w", ErrDuplicateSession)
			}
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByToken retrieves a session by its token
func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	query := `
		SELECT session_token, user_id, device_id, ip_address, user_agent, created_at, expires_at
		FROM sessions
		WHERE session_token = $1
	`

	session := &domain.Session{}
	var deviceID, ipAddress, userAgent sql.NullString

	err := r.db.DB.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&deviceID,
		&ipAddress,
		&userAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if deviceID.Valid {
		session.DeviceID = deviceID.String
	}
	if ipAddress.Valid {
		session.IPAddress = ipAddress.String
	}
	if userAgent.Valid {
		session.UserAgent = userAgent.String
	}

	return session, nil
}

// DeleteExpired deletes all expired sessions
func (r *sessionRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	_, err := r.db.DB.ExecContext(ctx, query, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}
