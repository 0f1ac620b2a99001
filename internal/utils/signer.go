package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidToken is the uniform failure for any structural or
// cryptographic mismatch during verification. There are no
// partial-validity states.
var ErrInvalidToken = errors.New("invalid access token")

// AccessTokenPayload is what gets signed into a device-bound token. The
// token id is an opaque uuid, never a value reversible to the redemption
// code that produced it.
type AccessTokenPayload struct {
	TokenID  string `json:"tid"`
	DeviceID string `json:"did"`
	IssuedAt int64  `json:"iat"`
	Nonce    string `json:"nonce"`
}

// Signer builds and verifies compact signed access tokens:
// base64(JSON payload) + "." + hex(HMAC-SHA256(encoded payload)).
// The delimiter appears in neither encoding.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer keyed with the server secret
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// NewPayload builds a payload binding a fresh random nonce to the given
// token id and device id.
func NewPayload(tokenID, deviceID string) AccessTokenPayload {
	return AccessTokenPayload{
		TokenID:  tokenID,
		DeviceID: deviceID,
		IssuedAt: time.Now().Unix(),
		Nonce:    uuid.New().String(),
	}
}

// Sign encodes and signs a payload
func (s *Signer) Sign(payload AccessTokenPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token payload: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	return encoded + "." + s.mac(encoded), nil
}

// Verify checks a token's structure and signature and confirms the
// embedded token id matches the one the caller expected, guarding
// against replay of a valid token against a different resource. Any
// failure yields ErrInvalidToken.
func (s *Signer) Verify(token, expectedTokenID string) (*AccessTokenPayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, ErrInvalidToken
	}

	expectedMAC, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}

	actualMAC, err := hex.DecodeString(s.mac(parts[0]))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if !hmac.Equal(expectedMAC, actualMAC) {
		return nil, ErrInvalidToken
	}

	data, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrInvalidToken
	}

	var payload AccessTokenPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, ErrInvalidToken
	}

	if payload.TokenID == "" || payload.TokenID != expectedTokenID {
		return nil, ErrInvalidToken
	}

	return &payload, nil
}

func (s *Signer) mac(encodedPayload string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(encodedPayload))
	return hex.EncodeToString(h.Sum(nil))
}
