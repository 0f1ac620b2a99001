package repository

import (
	"context"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)
	LinkGoogleAccount(ctx context.Context, userID, googleID, picture string) error
	MarkEmailVerified(ctx context.Context, email string) error
	UpdateLastLogin(ctx context.Context, userID string) error
}

// CodeRepository defines methods for redemption code operations
type CodeRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.RedemptionCode, error)
	// Redeem atomically flips used=0 to used=1 and returns the consumed
	// code row. ErrCodeAlreadyUsed covers both "not found" and "lost the
	// race"; this is the only path that flips the flag.
	Redeem(ctx context.Context, code, deviceID, userIP string) (*domain.RedemptionCode, error)
}

// SessionRepository defines methods for session operations
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	DeleteExpired(ctx context.Context) error
}

// RedemptionRepository defines methods for user redemption records
type RedemptionRepository interface {
	Create(ctx context.Context, redemption *domain.UserRedemption) error
	GetByUserAndCode(ctx context.Context, userID, code string) (*domain.UserRedemption, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.UserRedemption, error)
}

// GrantRepository defines methods for device-bound access grants
type GrantRepository interface {
	Create(ctx context.Context, grant *domain.AccessGrant) error
	GetByTokenID(ctx context.Context, tokenID string) (*domain.AccessGrant, error)
	UpdateDevices(ctx context.Context, tokenID string, devices []string) error
}

// DeviceRepository defines methods for user device records
type DeviceRepository interface {
	Upsert(ctx context.Context, device *domain.Device) error
	ListByUser(ctx context.Context, userID string) ([]*domain.Device, error)
}

// VerificationRepository defines methods for email verification codes
type VerificationRepository interface {
	Create(ctx context.Context, verification *domain.EmailVerification) error
	GetLatestUnused(ctx context.Context, email, code string) (*domain.EmailVerification, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

// AccessLogRepository appends audit rows on access grants
type AccessLogRepository interface {
	Append(ctx context.Context, entry *domain.AccessLog) error
}
