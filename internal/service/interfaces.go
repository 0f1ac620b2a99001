package service

import (
	"context"
	"errors"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/internal/dto"
)

// RequestMeta carries per-request client context threaded from the
// transport layer into business rules and audit rows.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ErrCacheMiss is returned by AccessCache reads when the key is absent;
// callers fall back to the credential store and repopulate.
var ErrCacheMiss = errors.New("cache miss")

// AccessCache is the fast-path projection layer. Never authoritative:
// every value it holds was just read from or written to the store, and
// TTLs never exceed the record's logical validity window.
type AccessCache interface {
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	SetSession(ctx context.Context, session *domain.Session) error

	GetGrant(ctx context.Context, tokenID string) (*domain.AccessGrant, error)
	SetGrant(ctx context.Context, grant *domain.AccessGrant) error

	GetCourses(ctx context.Context, userID string) ([]*domain.UserRedemption, error)
	SetCourses(ctx context.Context, userID string, courses []*domain.UserRedemption) error
	InvalidateCourses(ctx context.Context, userID string) error
}

// Mailer is the outbound email collaborator. Send failures are reported
// as structured results, never as fatal faults.
type Mailer interface {
	SendVerificationCode(email, name, code string) error
}

// EntitlementService owns redemption and per-lesson authorization rules.
type EntitlementService interface {
	RedeemCode(ctx context.Context, code, deviceID string, meta RequestMeta) (*dto.RedeemCodeResponse, error)
	CheckLessonAccess(ctx context.Context, lessonID string, creds dto.Credentials, meta RequestMeta) (*dto.CheckLessonResponse, error)
	VerifyAccessToken(ctx context.Context, token, tokenID, deviceID string) (*dto.VerifyAccessResponse, error)
	RedeemCodeForUser(ctx context.Context, sessionToken, code string, meta RequestMeta) (*dto.MemberRedeemResponse, error)
	MyCourses(ctx context.Context, sessionToken string) (*dto.MyCoursesResponse, error)
}

// AccountService owns registration, login, verification and sessions.
type AccountService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	VerifyEmail(ctx context.Context, email, code string) (*dto.Result, error)
	ResendVerification(ctx context.Context, email string) (*dto.Result, error)
	Login(ctx context.Context, req *dto.LoginRequest, meta RequestMeta) (*dto.LoginResponse, error)
	VerifySession(ctx context.Context, sessionToken string) (*dto.VerifySessionResponse, error)
}

// OAuthService handles federated login against the external provider.
type OAuthService interface {
	AuthURL(deviceID string) (string, error)
	HandleCallback(ctx context.Context, code, state string, meta RequestMeta) (sessionToken string, err error)
}
