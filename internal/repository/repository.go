package repository

import (
	"github.com/apcs-space/access-service/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User         UserRepository
	Code         CodeRepository
	Session      SessionRepository
	Redemption   RedemptionRepository
	Grant        GrantRepository
	Device       DeviceRepository
	Verification VerificationRepository
	AccessLog    AccessLogRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Code:         NewCodeRepository(db),
		Session:      NewSessionRepository(db),
		Redemption:   NewRedemptionRepository(db),
		Grant:        NewGrantRepository(db),
		Device:       NewDeviceRepository(db),
		Verification: NewVerificationRepository(db),
		AccessLog:    NewAccessLogRepository(db),
	}
}
