package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/config"
	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/internal/dto"
	"github.com/apcs-space/access-service/internal/repository"
	"github.com/apcs-space/access-service/internal/utils"
	"go.uber.org/zap"
)

// accountService implements AccountService.
type accountService struct {
	userRepo         repository.UserRepository
	verificationRepo repository.VerificationRepository
	sessions         *sessionResolver
	issuer           *sessionIssuer
	mailer           Mailer
	auth             config.AuthConfig
	bcryptCost       int
	logger           *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	repos *repository.Repositories,
	cache AccessCache,
	mailer Mailer,
	auth config.AuthConfig,
	bcryptCost int,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		userRepo:         repos.User,
		verificationRepo: repos.Verification,
		sessions:         &sessionResolver{sessionRepo: repos.Session, cache: cache, logger: logger},
		issuer: &sessionIssuer{
			sessionRepo: repos.Session,
			userRepo:    repos.User,
			deviceRepo:  repos.Device,
			cache:       cache,
			expiry:      auth.SessionExpiry.Duration,
			logger:      logger,
		},
		mailer:     mailer,
		auth:       auth,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates an unverified account and dispatches a verification
// code. A mail failure does not roll the account back; emailSent:false
// tells the client to offer the resend path.
func (s *accountService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := utils.SanitizeEmail(req.Email)

	if !utils.ValidateEmail(email) {
		return &dto.RegisterResponse{
			Result: dto.Failure(dto.ReasonInvalidEmail, "invalid email address"),
		}, nil
	}
	if !utils.ValidatePassword(req.Password, s.auth.PasswordMinLength) {
		return &dto.RegisterResponse{
			Result: dto.Failure(dto.ReasonShortPassword, fmt.Sprintf("password must be at least %d characters", s.auth.PasswordMinLength)),
		}, nil
	}

	hash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := req.Name
	if name == "" {
		name = utils.DefaultName(email)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Status:       domain.UserStatusActive,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return &dto.RegisterResponse{
				Result: dto.Failure(dto.ReasonDuplicateEmail, "an account with this email already exists"),
			}, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	emailSent := s.issueVerification(ctx, email, name)

	return &dto.RegisterResponse{
		Result:    dto.Success(),
		UserID:    user.ID,
		EmailSent: emailSent,
	}, nil
}

// VerifyEmail consumes a pending verification code.
func (s *accountService) VerifyEmail(ctx context.Context, email, code string) (*dto.Result, error) {
	email = utils.SanitizeEmail(email)

	verification, err := s.verificationRepo.GetLatestUnused(ctx, email, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			res := dto.Failure(dto.ReasonInvalidCode, "verification code is incorrect")
			return &res, nil
		}
		return nil, fmt.Errorf("failed to look up verification: %w", err)
	}

	if verification.IsExpired() {
		res := dto.Failure(dto.ReasonExpiredCode, "verification code has expired")
		return &res, nil
	}

	if err := s.verificationRepo.MarkUsed(ctx, verification.ID); err != nil {
		return nil, fmt.Errorf("failed to consume verification: %w", err)
	}
	if err := s.userRepo.MarkEmailVerified(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}

	res := dto.Success()
	return &res, nil
}

// ResendVerification issues a fresh code for a known, unverified email.
// The response does not disclose whether the email exists.
func (s *accountService) ResendVerification(ctx context.Context, email string) (*dto.Result, error) {
	email = utils.SanitizeEmail(email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			res := dto.Success()
			return &res, nil
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.IsEmailVerified {
		s.issueVerification(ctx, email, user.Name)
	}

	res := dto.Success()
	return &res, nil
}

// Login checks credentials and opens a session. Unknown email and wrong
// password return the same generic verdict, and the unknown-email path
// burns a bcrypt compare so the two are not distinguishable by timing.
func (s *accountService) Login(ctx context.Context, req *dto.LoginRequest, meta RequestMeta) (*dto.LoginResponse, error) {
	email := utils.SanitizeEmail(req.Email)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.BurnPasswordCheck(req.Password)
			return &dto.LoginResponse{
				Result: dto.Failure(dto.ReasonBadCredentials, "invalid email or password"),
			}, nil
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		return &dto.LoginResponse{
			Result: dto.Failure(dto.ReasonBadCredentials, "invalid email or password"),
		}, nil
	}

	if !user.IsEmailVerified {
		return &dto.LoginResponse{
			Result: dto.Failure(dto.ReasonNeedVerification, "email is not verified"),
		}, nil
	}

	session, err := s.issuer.issue(ctx, user.ID, req.DeviceID, meta)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Result:       dto.Success(),
		SessionToken: session.Token,
		User:         userInfo(user),
	}, nil
}

// VerifySession reports whether a session token is current.
func (s *accountService) VerifySession(ctx context.Context, sessionToken string) (*dto.VerifySessionResponse, error) {
	session, err := s.sessions.resolve(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &dto.VerifySessionResponse{
			Result: dto.Failure(dto.ReasonInvalidSession, "session is invalid or expired"),
			Valid:  false,
		}, nil
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &dto.VerifySessionResponse{
				Result: dto.Failure(dto.ReasonInvalidSession, "session is invalid or expired"),
				Valid:  false,
			}, nil
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	return &dto.VerifySessionResponse{
		Result:    dto.Success(),
		Valid:     true,
		User:      userInfo(user),
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// issueVerification stores a fresh code and mails it. Returns whether
// the mail went out.
func (s *accountService) issueVerification(ctx context.Context, email, name string) bool {
	code, err := utils.NewVerificationCode()
	if err != nil {
		s.logger.Error("verification code generation failed", zap.Error(err))
		return false
	}

	verification := &domain.EmailVerification{
		Email:     email,
		Code:      code,
		ExpiresAt: time.Now().Add(s.auth.VerificationCodeExpiry.Duration),
	}
	if err := s.verificationRepo.Create(ctx, verification); err != nil {
		s.logger.Error("verification record write failed", zap.Error(err))
		return false
	}

	if err := s.mailer.SendVerificationCode(email, name, code); err != nil {
		s.logger.Warn("verification email dispatch failed", zap.String("email", email), zap.Error(err))
		return false
	}
	return true
}

func userInfo(user *domain.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
	}
}
