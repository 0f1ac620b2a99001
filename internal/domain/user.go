package domain

import "time"

// User represents a member account. PasswordHash is empty for accounts
// created through federated login only.
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	Name            string     `json:"name" db:"name"`
	Picture         string     `json:"picture" db:"picture"`
	GoogleID        *string    `json:"-" db:"google_id"`
	IsEmailVerified bool       `json:"is_email_verified" db:"email_verified"`
	Status          string     `json:"status" db:"status"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at" db:"last_login_at"`
}

// UserStatusActive is the only status under which a user may log in.
const UserStatusActive = "active"

// Session represents a member login session. Immutable after creation;
// expiry is evaluated by timestamp comparison on every read.
type Session struct {
	Token     string    `json:"-" db:"session_token"`
	UserID    string    `json:"user_id" db:"user_id"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	IPAddress string    `json:"-" db:"ip_address"`
	UserAgent string    `json:"-" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// IsExpired reports whether the session is past its expiry.
func (s Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Device records a device a user has logged in from. Upserted on login.
type Device struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	DeviceID  string    `json:"device_id" db:"device_id"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	FirstSeen time.Time `json:"first_seen" db:"first_seen"`
	LastSeen  time.Time `json:"last_seen" db:"last_seen"`
}

// EmailVerification is a short-lived numeric code tied to an email
// address. Consumed at most once.
type EmailVerification struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Code      string    `json:"-" db:"verification_code"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// IsExpired reports whether the verification code is past its expiry.
func (v EmailVerification) IsExpired() bool {
	return time.Now().After(v.ExpiresAt)
}
