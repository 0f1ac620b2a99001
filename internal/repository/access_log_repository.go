package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/pkg/database"
	"github.com/google/uuid"
)

// accessLogRepository implements AccessLogRepository interface
type accessLogRepository struct {
	db *database.Postgres
}

// NewAccessLogRepository creates a new access log repository
func NewAccessLogRepository(db *database.Postgres) AccessLogRepository {
	return &accessLogRepository{db: db}
}

// Append writes one audit row. Callers treat failures as non-fatal.
func (r *accessLogRepository) Append(ctx context.Context, entry *domain.AccessLog) error {
	query := `
		INSERT INTO access_logs (id, token_ref, lesson_id, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		entry.ID,
		entry.TokenRef,
		entry.LessonID,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append access log: %w", err)
	}

	return nil
}
