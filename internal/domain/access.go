package domain

import "time"

// RedemptionCode is a provisioned, single-use unlock code. The used flag
// transitions 0 -> 1 exactly once; the conditional update in the
// repository is the only path that flips it.
type RedemptionCode struct {
	Code       string     `json:"code" db:"code"`
	Used       bool       `json:"used" db:"used"`
	UsedAt     *time.Time `json:"used_at" db:"used_at"`
	DeviceID   *string    `json:"device_id" db:"device_id"`
	UserIP     *string    `json:"user_ip" db:"user_ip"`
	Plan       string     `json:"plan" db:"plan"`
	MaxDevices int        `json:"max_devices" db:"max_devices"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// AccessGrant is the device-bound access record issued when a code is
// redeemed anonymously. The token id is opaque and never derived from
// the redemption code. Devices grows append-only up to MaxDevices.
type AccessGrant struct {
	TokenID    string    `json:"token_id" db:"token_id"`
	Code       string    `json:"-" db:"code"` // server-side only, never revealed to the client
	Devices    []string  `json:"devices" db:"devices"`
	MaxDevices int       `json:"max_devices" db:"max_devices"`
	Unlocked   bool      `json:"unlocked" db:"unlocked"`
	UnlockedAt time.Time `json:"unlocked_at" db:"unlocked_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

// IsExpired reports whether the grant is past its expiry.
func (g AccessGrant) IsExpired() bool {
	return time.Now().After(g.ExpiresAt)
}

// HasDevice reports whether deviceID is already on the allowlist.
func (g AccessGrant) HasDevice(deviceID string) bool {
	for _, d := range g.Devices {
		if d == deviceID {
			return true
		}
	}
	return false
}

// UserRedemption records a logged-in user claiming a redemption code.
// At most one row per (user, code).
type UserRedemption struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Code       string    `json:"code" db:"code"`
	Plan       string    `json:"plan" db:"plan"`
	Status     string    `json:"status" db:"status"`
	RedeemedAt time.Time `json:"redeemed_at" db:"redeemed_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
}

// RedemptionStatusActive marks a redemption that currently grants access.
const RedemptionStatusActive = "active"

// IsActive reports whether the redemption currently grants its plan.
func (r UserRedemption) IsActive() bool {
	return r.Status == RedemptionStatusActive && time.Now().Before(r.ExpiresAt)
}

// PlanFull is the entitlement tier that unlocks every paid lesson.
const PlanFull = "full"

// AccessLog is an audit row appended on every access grant. Writes are
// best-effort; a logging failure never fails the request.
type AccessLog struct {
	ID        string    `json:"id" db:"id"`
	TokenRef  string    `json:"token_ref" db:"token_ref"`
	LessonID  string    `json:"lesson_id" db:"lesson_id"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
