package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/pkg/database"
	"github.com/google/uuid"
)

// deviceRepository implements DeviceRepository interface
type deviceRepository struct {
	db *database.Postgres
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *database.Postgres) DeviceRepository {
	return &deviceRepository{db: db}
}

// Upsert inserts a device record the first time a user logs in from it,
// and refreshes last_seen/ip/user_agent on later logins.
func (r *deviceRepository) Upsert(ctx context.Context, device *domain.Device) error {
	query := `
		INSERT INTO user_devices (id, user_id, device_id, user_agent, ip_address, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, device_id)
		DO UPDATE SET last_seen = EXCLUDED.last_seen, ip_address = EXCLUDED.ip_address, user_agent = EXCLUDED.user_agent
	`

	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	now := time.Now()
	_, err := r.db.DB.ExecContext(ctx, query,
		device.ID,
		device.UserID,
		device.DeviceID,
		device.UserAgent,
		device.IPAddress,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	return nil
}

// ListByUser retrieves all device records for a user
func (r *deviceRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Device, error) {
	query := `
		SELECT id, user_id, device_id, user_agent, ip_address, first_seen, last_seen
		FROM user_devices
		WHERE user_id = $1
		ORDER BY last_seen DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		device := &domain.Device{}
		err := rows.Scan(
			&device.ID,
			&device.UserID,
			&device.DeviceID,
			&device.UserAgent,
			&device.IPAddress,
			&device.FirstSeen,
			&device.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	return devices, nil
}
