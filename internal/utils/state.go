package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateCodec signs the OAuth state parameter so the device id threaded
// through the provider round-trip cannot be tampered with.
type StateCodec struct {
	secret []byte
	expiry time.Duration
}

// NewStateCodec creates a state codec keyed with the server secret
func NewStateCodec(secret string, expiry time.Duration) *StateCodec {
	return &StateCodec{secret: []byte(secret), expiry: expiry}
}

// Encode wraps a device id in a short-lived signed state value
func (c *StateCodec) Encode(deviceID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"device_id": deviceID,
		"exp":       now.Add(c.expiry).Unix(),
		"iat":       now.Unix(),
		"jti":       uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	state, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign oauth state: %w", err)
	}

	return state, nil
}

// Decode verifies a state value and returns the device id it carries
func (c *StateCodec) Decode(state string) (string, error) {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse oauth state: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid oauth state")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid oauth state claims")
	}

	deviceID, ok := claims["device_id"].(string)
	if !ok {
		return "", fmt.Errorf("invalid device_id in oauth state")
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", fmt.Errorf("invalid exp in oauth state")
	}

	if time.Now().Unix() > int64(exp) {
		return "", fmt.Errorf("oauth state expired")
	}

	return deviceID, nil
}
