package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/internal/repository"
	"github.com/google/uuid"
)

// In-memory collaborators for service tests. Each fake mirrors the
// sentinel-error contract of its Postgres counterpart.

type fakeCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.RedemptionCode
}

func newFakeCodeRepo(codes ...*domain.RedemptionCode) *fakeCodeRepo {
	r := &fakeCodeRepo{codes: make(map[string]*domain.RedemptionCode)}
	for _, c := range codes {
		r.codes[c.Code] = c
	}
	return r
}

func (r *fakeCodeRepo) GetByCode(_ context.Context, code string) (*domain.RedemptionCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCodeRepo) Redeem(_ context.Context, code, deviceID, userIP string) (*domain.RedemptionCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok || c.Used {
		return nil, repository.ErrCodeAlreadyUsed
	}
	now := time.Now()
	c.Used = true
	c.UsedAt = &now
	c.DeviceID = &deviceID
	c.UserIP = &userIP
	copied := *c
	return &copied, nil
}

type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*domain.AccessGrant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]*domain.AccessGrant)}
}

func (r *fakeGrantRepo) Create(_ context.Context, grant *domain.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *grant
	copied.Devices = append([]string(nil), grant.Devices...)
	r.grants[grant.TokenID] = &copied
	return nil
}

func (r *fakeGrantRepo) GetByTokenID(_ context.Context, tokenID string) (*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[tokenID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *g
	copied.Devices = append([]string(nil), g.Devices...)
	return &copied, nil
}

func (r *fakeGrantRepo) UpdateDevices(_ context.Context, tokenID string, devices []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[tokenID]
	if !ok {
		return repository.ErrNotFound
	}
	g.Devices = append([]string(nil), devices...)
	return nil
}

type fakeRedemptionRepo struct {
	mu          sync.Mutex
	redemptions []*domain.UserRedemption
}

func newFakeRedemptionRepo() *fakeRedemptionRepo {
	return &fakeRedemptionRepo{}
}

func (r *fakeRedemptionRepo) Create(_ context.Context, redemption *domain.UserRedemption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.redemptions {
		if existing.UserID == redemption.UserID && existing.Code == redemption.Code {
			return repository.ErrAlreadyRedeemed
		}
	}
	redemption.ID = uuid.New().String()
	copied := *redemption
	r.redemptions = append(r.redemptions, &copied)
	return nil
}

func (r *fakeRedemptionRepo) GetByUserAndCode(_ context.Context, userID, code string) (*domain.UserRedemption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.redemptions {
		if existing.UserID == userID && existing.Code == code {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeRedemptionRepo) ListByUser(_ context.Context, userID string) ([]*domain.UserRedemption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.UserRedemption
	for _, existing := range r.redemptions {
		if existing.UserID == userID {
			copied := *existing
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionRepo(sessions ...*domain.Session) *fakeSessionRepo {
	r := &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
	for _, s := range sessions {
		r.sessions[s.Token] = s
	}
	return r
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.Token] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) error { return nil }

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		if u.ID == "" {
			u.ID = uuid.New().String()
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == email {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.GoogleID != nil && *existing.GoogleID == googleID {
			copied := *existing
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) LinkGoogleAccount(_ context.Context, userID, googleID, picture string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.GoogleID = &googleID
	u.Picture = picture
	u.IsEmailVerified = true
	return nil
}

func (r *fakeUserRepo) MarkEmailVerified(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == email {
			existing.IsEmailVerified = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices []*domain.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo { return &fakeDeviceRepo{} }

func (r *fakeDeviceRepo) Upsert(_ context.Context, device *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.devices {
		if existing.UserID == device.UserID && existing.DeviceID == device.DeviceID {
			existing.LastSeen = device.LastSeen
			return nil
		}
	}
	copied := *device
	r.devices = append(r.devices, &copied)
	return nil
}

func (r *fakeDeviceRepo) ListByUser(_ context.Context, userID string) ([]*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Device
	for _, existing := range r.devices {
		if existing.UserID == userID {
			copied := *existing
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeVerificationRepo struct {
	mu            sync.Mutex
	verifications []*domain.EmailVerification
}

func newFakeVerificationRepo() *fakeVerificationRepo { return &fakeVerificationRepo{} }

func (r *fakeVerificationRepo) Create(_ context.Context, verification *domain.EmailVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	verification.ID = uuid.New().String()
	verification.CreatedAt = time.Now()
	copied := *verification
	r.verifications = append(r.verifications, &copied)
	return nil
}

func (r *fakeVerificationRepo) GetLatestUnused(_ context.Context, email, code string) (*domain.EmailVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.verifications) - 1; i >= 0; i-- {
		v := r.verifications[i]
		if v.Email == email && v.Code == code && !v.Used {
			copied := *v
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeVerificationRepo) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.verifications {
		if v.ID == id {
			v.Used = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeVerificationRepo) DeleteOlderThan(_ context.Context, _ time.Time) error { return nil }

type fakeAccessLogRepo struct {
	mu      sync.Mutex
	entries []*domain.AccessLog
}

func newFakeAccessLogRepo() *fakeAccessLogRepo { return &fakeAccessLogRepo{} }

func (r *fakeAccessLogRepo) Append(_ context.Context, entry *domain.AccessLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *fakeAccessLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// fakeCache implements AccessCache in memory without TTLs. Tests that
// care about staleness mutate it directly.
type fakeCache struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	grants   map[string]*domain.AccessGrant
	courses  map[string][]*domain.UserRedemption
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		sessions: make(map[string]*domain.Session),
		grants:   make(map[string]*domain.AccessGrant),
		courses:  make(map[string][]*domain.UserRedemption),
	}
}

func (c *fakeCache) GetSession(_ context.Context, token string) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[token]
	if !ok {
		return nil, ErrCacheMiss
	}
	return s, nil
}

func (c *fakeCache) SetSession(_ context.Context, session *domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[session.Token] = session
	return nil
}

func (c *fakeCache) GetGrant(_ context.Context, tokenID string) (*domain.AccessGrant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.grants[tokenID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return g, nil
}

func (c *fakeCache) SetGrant(_ context.Context, grant *domain.AccessGrant) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants[grant.TokenID] = grant
	return nil
}

func (c *fakeCache) GetCourses(_ context.Context, userID string) ([]*domain.UserRedemption, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	courses, ok := c.courses[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return courses, nil
}

func (c *fakeCache) SetCourses(_ context.Context, userID string, courses []*domain.UserRedemption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[userID] = courses
	return nil
}

func (c *fakeCache) InvalidateCourses(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.courses, userID)
	return nil
}

// brokenCache fails every operation, for degraded-cache tests.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) GetSession(context.Context, string) (*domain.Session, error) {
	return nil, errCacheDown
}
func (brokenCache) SetSession(context.Context, *domain.Session) error { return errCacheDown }
func (brokenCache) GetGrant(context.Context, string) (*domain.AccessGrant, error) {
	return nil, errCacheDown
}
func (brokenCache) SetGrant(context.Context, *domain.AccessGrant) error { return errCacheDown }
func (brokenCache) GetCourses(context.Context, string) ([]*domain.UserRedemption, error) {
	return nil, errCacheDown
}
func (brokenCache) SetCourses(context.Context, string, []*domain.UserRedemption) error {
	return errCacheDown
}
func (brokenCache) InvalidateCourses(context.Context, string) error { return errCacheDown }

type fakeMailer struct {
	mu   sync.Mutex
	sent []string // "email:code"
	fail bool
}

func (m *fakeMailer) SendVerificationCode(email, _, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, email+":"+code)
	return nil
}

func (m *fakeMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	last := m.sent[len(m.sent)-1]
	for i := len(last) - 1; i >= 0; i-- {
		if last[i] == ':' {
			return last[i+1:]
		}
	}
	return ""
}
