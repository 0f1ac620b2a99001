package service

import (
	"context"
	"testing"
	"time"

	"github.com/apcs-space/access-service/internal/config"
	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/internal/dto"
	"github.com/apcs-space/access-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		TokenSecret:            testSecret,
		SessionExpiry:          config.Duration{Duration: 30 * 24 * time.Hour},
		VerificationCodeExpiry: config.Duration{Duration: 30 * time.Minute},
		PasswordMinLength:      6,
	}
}

type accountFixture struct {
	svc           AccountService
	users         *fakeUserRepo
	sessions      *fakeSessionRepo
	verifications *fakeVerificationRepo
	devices       *fakeDeviceRepo
	cache         *fakeCache
	mailer        *fakeMailer
}

func newAccountFixture() *accountFixture {
	f := &accountFixture{
		users:         newFakeUserRepo(),
		sessions:      newFakeSessionRepo(),
		verifications: newFakeVerificationRepo(),
		devices:       newFakeDeviceRepo(),
		cache:         newFakeCache(),
		mailer:        &fakeMailer{},
	}
	f.svc = NewAccountService(
		&repository.Repositories{
			User:         f.users,
			Session:      f.sessions,
			Verification: f.verifications,
			Device:       f.devices,
		},
		f.cache,
		f.mailer,
		testAuthConfig(),
		4, // low bcrypt cost keeps tests fast
		zap.NewNop(),
	)
	return f
}

// registerAndVerify walks the happy path up to a verified account.
func (f *accountFixture) registerAndVerify(t *testing.T, email, password string) {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: email, Password: password})
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.True(t, resp.EmailSent)

	res, err := f.svc.VerifyEmail(context.Background(), email, f.mailer.lastCode())
	require.NoError(t, err)
	require.True(t, res.OK)
}

func TestRegisterValidation(t *testing.T) {
	f := newAccountFixture()

	cases := []struct {
		name     string
		email    string
		password string
		reason   string
	}{
		{"bad email", "not-an-email", "secret123", dto.ReasonInvalidEmail},
		{"empty email", "", "secret123", dto.ReasonInvalidEmail},
		{"short password", "user@example.com", "12345", dto.ReasonShortPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: tc.email, Password: tc.password})
			require.NoError(t, err)
			assert.False(t, resp.OK)
			assert.Equal(t, tc.reason, resp.ReasonCode)
		})
	}
}

func TestRegisterNormalizesEmailAndRejectsDuplicate(t *testing.T) {
	f := newAccountFixture()

	first, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: "  User@Example.COM ", Password: "secret123"})
	require.NoError(t, err)
	require.True(t, first.OK)

	user, err := f.users.GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.False(t, user.IsEmailVerified)
	assert.Equal(t, "user", user.Name)

	dup, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: "user@example.com", Password: "other-secret"})
	require.NoError(t, err)
	assert.False(t, dup.OK)
	assert.Equal(t, dto.ReasonDuplicateEmail, dup.ReasonCode)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	f := newAccountFixture()
	f.mailer.fail = true

	resp, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: "user@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.False(t, resp.EmailSent)

	// The account exists and a resend can still succeed.
	f.mailer.fail = false
	res, err := f.svc.ResendVerification(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.NotEmpty(t, f.mailer.lastCode())
}

func TestVerifyEmail(t *testing.T) {
	f := newAccountFixture()

	resp, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: "user@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.True(t, resp.OK)
	code := f.mailer.lastCode()
	require.Len(t, code, 6)

	wrong, err := f.svc.VerifyEmail(context.Background(), "user@example.com", "000000")
	require.NoError(t, err)
	assert.False(t, wrong.OK)
	assert.Equal(t, dto.ReasonInvalidCode, wrong.ReasonCode)

	ok, err := f.svc.VerifyEmail(context.Background(), "user@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok.OK)

	// A consumed code does not verify twice.
	again, err := f.svc.VerifyEmail(context.Background(), "user@example.com", code)
	require.NoError(t, err)
	assert.False(t, again.OK)

	user, err := f.users.GetByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsEmailVerified)
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	f := newAccountFixture()

	resp, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: "user@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.True(t, resp.OK)
	code := f.mailer.lastCode()

	f.verifications.mu.Lock()
	for _, v := range f.verifications.verifications {
		v.ExpiresAt = time.Now().Add(-time.Minute)
	}
	f.verifications.mu.Unlock()

	res, err := f.svc.VerifyEmail(context.Background(), "user@example.com", code)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, dto.ReasonExpiredCode, res.ReasonCode)
}

func TestResendVerificationDoesNotDiscloseAccounts(t *testing.T) {
	f := newAccountFixture()

	res, err := f.svc.ResendVerification(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, f.mailer.sent)
}

func TestLoginHappyPath(t *testing.T) {
	f := newAccountFixture()
	f.registerAndVerify(t, "user@example.com", "secret123")

	resp, err := f.svc.Login(context.Background(), &dto.LoginRequest{
		Email:    "user@example.com",
		Password: "secret123",
		DeviceID: "dev_abc",
	}, RequestMeta{IP: "1.2.3.4", UserAgent: "test"})
	require.NoError(t, err)
	require.True(t, resp.OK)
	assert.NotEmpty(t, resp.SessionToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "user@example.com", resp.User.Email)

	session, err := f.sessions.GetByToken(context.Background(), resp.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "dev_abc", session.DeviceID)
	assert.False(t, session.IsExpired())

	devices, err := f.devices.ListByUser(context.Background(), session.UserID)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestLoginGenericRejection(t *testing.T) {
	f := newAccountFixture()
	f.registerAndVerify(t, "user@example.com", "secret123")

	wrongPassword, err := f.svc.Login(context.Background(), &dto.LoginRequest{
		Email: "user@example.com", Password: "wrong-pass", DeviceID: "dev_a",
	}, RequestMeta{})
	require.NoError(t, err)
	unknownEmail, err := f.svc.Login(context.Background(), &dto.LoginRequest{
		Email: "ghost@example.com", Password: "secret123", DeviceID: "dev_a",
	}, RequestMeta{})
	require.NoError(t, err)

	// Both failures carry the same reason, no hint which part was wrong.
	assert.Equal(t, dto.ReasonBadCredentials, wrongPassword.ReasonCode)
	assert.Equal(t, dto.ReasonBadCredentials, unknownEmail.ReasonCode)
	assert.Empty(t, wrongPassword.SessionToken)
	assert.Empty(t, unknownEmail.SessionToken)
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	f := newAccountFixture()

	resp, err := f.svc.Register(context.Background(), &dto.RegisterRequest{Email: "user@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.True(t, resp.OK)

	login, err := f.svc.Login(context.Background(), &dto.LoginRequest{
		Email: "user@example.com", Password: "secret123", DeviceID: "dev_a",
	}, RequestMeta{})
	require.NoError(t, err)
	assert.False(t, login.OK)
	assert.Equal(t, dto.ReasonNeedVerification, login.ReasonCode)
}

func TestVerifySession(t *testing.T) {
	f := newAccountFixture()
	f.registerAndVerify(t, "user@example.com", "secret123")

	login, err := f.svc.Login(context.Background(), &dto.LoginRequest{
		Email: "user@example.com", Password: "secret123", DeviceID: "dev_a",
	}, RequestMeta{})
	require.NoError(t, err)
	require.True(t, login.OK)

	valid, err := f.svc.VerifySession(context.Background(), login.SessionToken)
	require.NoError(t, err)
	assert.True(t, valid.Valid)
	require.NotNil(t, valid.User)
	assert.Equal(t, "user@example.com", valid.User.Email)
	assert.NotEmpty(t, valid.ExpiresAt)

	invalid, err := f.svc.VerifySession(context.Background(), "bogus")
	require.NoError(t, err)
	assert.False(t, invalid.Valid)
	assert.Equal(t, dto.ReasonInvalidSession, invalid.ReasonCode)
}

func TestVerifySessionExpired(t *testing.T) {
	f := newAccountFixture()
	f.registerAndVerify(t, "user@example.com", "secret123")

	login, err := f.svc.Login(context.Background(), &dto.LoginRequest{
		Email: "user@example.com", Password: "secret123", DeviceID: "dev_a",
	}, RequestMeta{})
	require.NoError(t, err)
	require.True(t, login.OK)

	f.sessions.mu.Lock()
	for _, s := range f.sessions.sessions {
		s.ExpiresAt = time.Now().Add(-time.Minute)
	}
	f.sessions.mu.Unlock()
	// The cached copy must not outlive the store record.
	f.cache.sessions = map[string]*domain.Session{}

	resp, err := f.svc.VerifySession(context.Background(), login.SessionToken)
	require.NoError(t, err)
	assert.False(t, resp.Valid)
}
