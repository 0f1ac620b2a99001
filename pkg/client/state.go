package client

import (
	"encoding/json"
	"sync"
)

// Storage keys. Stable names so a persistent Storage survives upgrades.
const (
	keySessionToken = "sessionToken"
	keyUser         = "user"
	keyAccessToken  = "accessToken"
	keyTokenID      = "tokenId"
	keyDeviceID     = "deviceId"
)

// State is the client-side session object. It owns every credential the
// guard uses: the member session, the device-bound token pair, and the
// persisted device id. All reads and writes go through the Storage so
// two States over the same Storage see the same credentials.
type State struct {
	mu      sync.Mutex
	storage Storage
	signals func() Signals
}

// NewState wraps storage. Credentials are read lazily, so constructing
// a State never touches the network and never generates a device id.
func NewState(storage Storage) *State {
	return &State{storage: storage, signals: HostSignals}
}

// DeviceID returns the persisted device id, deriving and storing one on
// first use.
func (s *State) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.storage.Get(keyDeviceID); ok && id != "" {
		return id
	}
	id := FingerprintDevice(s.signals())
	s.storage.Set(keyDeviceID, id)
	return id
}

// SessionToken returns the stored member session token, if any.
func (s *State) SessionToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.storage.Get(keySessionToken)
	return tok, ok && tok != ""
}

// User returns the cached member profile from the last login.
func (s *State) User() (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.storage.Get(keyUser)
	if !ok || raw == "" {
		return nil, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	return &u, true
}

// SetSession stores a fresh login.
func (s *State) SetSession(token string, user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage.Set(keySessionToken, token)
	if user != nil {
		if raw, err := json.Marshal(user); err == nil {
			s.storage.Set(keyUser, string(raw))
		}
	}
}

// ClearSession logs the member out locally. The device id and any
// device-bound access token are kept, they are independent credentials.
func (s *State) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage.Delete(keySessionToken)
	s.storage.Delete(keyUser)
}

// AccessToken returns the stored device-bound token pair.
func (s *State) AccessToken() (token, tokenID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, _ = s.storage.Get(keyAccessToken)
	tokenID, _ = s.storage.Get(keyTokenID)
	return token, tokenID, token != "" && tokenID != ""
}

// SetAccessToken stores the token pair issued by a code redemption.
func (s *State) SetAccessToken(token, tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage.Set(keyAccessToken, token)
	s.storage.Set(keyTokenID, tokenID)
}

// ClearAccessToken drops the device-bound token pair.
func (s *State) ClearAccessToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage.Delete(keyAccessToken)
	s.storage.Delete(keyTokenID)
}
