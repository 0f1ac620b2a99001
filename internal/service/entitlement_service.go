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
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// entitlementService implements EntitlementService. It is stateless; all
// state lives in the credential store and the fast-path cache.
type entitlementService struct {
	codeRepo       repository.CodeRepository
	grantRepo      repository.GrantRepository
	redemptionRepo repository.RedemptionRepository
	accessLogRepo  repository.AccessLogRepository
	sessions       *sessionResolver
	cache          AccessCache
	signer         *utils.Signer
	access         config.AccessConfig
	logger         *zap.Logger
}

// NewEntitlementService creates a new entitlement service
func NewEntitlementService(
	repos *repository.Repositories,
	cache AccessCache,
	signer *utils.Signer,
	access config.AccessConfig,
	logger *zap.Logger,
) EntitlementService {
	return &entitlementService{
		codeRepo:       repos.Code,
		grantRepo:      repos.Grant,
		redemptionRepo: repos.Redemption,
		accessLogRepo:  repos.AccessLog,
		sessions:       &sessionResolver{sessionRepo: repos.Session, cache: cache, logger: logger},
		cache:          cache,
		signer:         signer,
		access:         access,
		logger:         logger,
	}
}

// RedeemCode consumes a code anonymously and issues a device-bound
// access token. The conditional update in the repository guarantees at
// most one winner per code; losers get the same invalid_or_used verdict
// as a code that never existed.
func (s *entitlementService) RedeemCode(ctx context.Context, code, deviceID string, meta RequestMeta) (*dto.RedeemCodeResponse, error) {
	if deviceID == "" {
		return &dto.RedeemCodeResponse{
			Result: dto.Failure(dto.ReasonMissingDeviceID, "device id is required"),
		}, nil
	}

	redeemed, err := s.codeRepo.Redeem(ctx, code, deviceID, meta.IP)
	if err != nil {
		if errors.Is(err, repository.ErrCodeAlreadyUsed) {
			return &dto.RedeemCodeResponse{
				Result: dto.Failure(dto.ReasonInvalidOrUsed, "code is invalid or already used"),
			}, nil
		}
		return nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	maxDevices := redeemed.MaxDevices
	if maxDevices <= 0 {
		maxDevices = s.access.DefaultMaxDevices
	}

	tokenID := uuid.New().String()
	token, err := s.signer.Sign(utils.NewPayload(tokenID, deviceID))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	now := time.Now()
	grant := &domain.AccessGrant{
		TokenID:    tokenID,
		Code:       redeemed.Code,
		Devices:    []string{deviceID},
		MaxDevices: maxDevices,
		Unlocked:   true,
		UnlockedAt: now,
		ExpiresAt:  now.Add(s.access.TokenExpiry.Duration),
	}

	// The store write is the durability boundary; the cache write is an
	// accelerator and its failure only costs a later read-through.
	if err := s.grantRepo.Create(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to persist access grant: %w", err)
	}
	if err := s.cache.SetGrant(ctx, grant); err != nil {
		s.logger.Warn("grant cache write failed", zap.String("token_id", tokenID), zap.Error(err))
	}

	return &dto.RedeemCodeResponse{
		Result:  dto.Result{OK: true, Message: fmt.Sprintf("unlocked, valid on up to %d devices", maxDevices)},
		Token:   token,
		TokenID: tokenID,
	}, nil
}

// CheckLessonAccess is the per-lesson authorization decision. The free
// set short-circuits everything; otherwise the tagged credential variant
// is dispatched exhaustively. Unknown lessons are paid by default.
func (s *entitlementService) CheckLessonAccess(ctx context.Context, lessonID string, creds dto.Credentials, meta RequestMeta) (*dto.CheckLessonResponse, error) {
	if s.access.IsFreeLesson(lessonID) {
		return &dto.CheckLessonResponse{
			Result:    dto.Success(),
			CanAccess: true,
			Reason:    dto.ReasonFree,
		}, nil
	}

	switch creds.Kind {
	case dto.CredentialSession:
		return s.checkSessionAccess(ctx, lessonID, creds.SessionToken, meta)
	case dto.CredentialDevice:
		return s.checkDeviceAccess(ctx, lessonID, creds, meta)
	default:
		return s.deny(dto.ReasonMissingCreds, "no credentials supplied"), nil
	}
}

func (s *entitlementService) deny(reason, message string) *dto.CheckLessonResponse {
	return &dto.CheckLessonResponse{
		Result:    dto.Failure(reason, message),
		CanAccess: false,
		Reason:    reason,
	}
}

func (s *entitlementService) checkSessionAccess(ctx context.Context, lessonID, sessionToken string, meta RequestMeta) (*dto.CheckLessonResponse, error) {
	session, err := s.sessions.resolve(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return s.deny(dto.ReasonInvalidSession, "session is invalid or expired"), nil
	}

	courses, err := s.loadCourses(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return s.deny(dto.ReasonNoCourses, "no redeemed courses"), nil
	}

	for _, course := range courses {
		if course.Plan == domain.PlanFull && course.IsActive() {
			s.appendAccessLog(ctx, "session:"+session.UserID, lessonID, meta)
			return &dto.CheckLessonResponse{
				Result:    dto.Success(),
				CanAccess: true,
				Reason:    dto.ReasonUnlocked,
			}, nil
		}
	}

	return s.deny(dto.ReasonPlanRequired, "current plan does not cover this lesson"), nil
}

func (s *entitlementService) checkDeviceAccess(ctx context.Context, lessonID string, creds dto.Credentials, meta RequestMeta) (*dto.CheckLessonResponse, error) {
	if !creds.Complete() {
		return s.deny(dto.ReasonMissingCreds, "token, tokenId and deviceId are all required"), nil
	}

	if _, err := s.signer.Verify(creds.Token, creds.TokenID); err != nil {
		return s.deny(dto.ReasonInvalidToken, "token signature is invalid"), nil
	}

	grant, err := s.loadGrant(ctx, creds.TokenID)
	if err != nil {
		return nil, err
	}
	if grant == nil || !grant.Unlocked || grant.IsExpired() {
		return s.deny(dto.ReasonNoAccessData, "no access data for this token"), nil
	}

	if grant.HasDevice(creds.DeviceID) {
		// Re-presentation from a known device never grows the list.
		s.appendAccessLog(ctx, grant.TokenID, lessonID, meta)
		return &dto.CheckLessonResponse{
			Result:      dto.Success(),
			CanAccess:   true,
			Reason:      dto.ReasonUnlocked,
			DevicesUsed: len(grant.Devices),
		}, nil
	}

	if len(grant.Devices) >= grant.MaxDevices {
		resp := s.deny(dto.ReasonMaxDevices, fmt.Sprintf("device limit of %d reached", grant.MaxDevices))
		resp.CurrentDevices = len(grant.Devices)
		return resp, nil
	}

	// The only mutation path for the allowlist: append, store first,
	// then refresh the cache projection.
	grant.Devices = append(grant.Devices, creds.DeviceID)
	if err := s.grantRepo.UpdateDevices(ctx, grant.TokenID, grant.Devices); err != nil {
		return nil, fmt.Errorf("failed to authorize device: %w", err)
	}
	if err := s.cache.SetGrant(ctx, grant); err != nil {
		s.logger.Warn("grant cache refresh failed", zap.String("token_id", grant.TokenID), zap.Error(err))
	}

	s.appendAccessLog(ctx, grant.TokenID, lessonID, meta)
	return &dto.CheckLessonResponse{
		Result:      dto.Success(),
		CanAccess:   true,
		Reason:      dto.ReasonUnlocked,
		DevicesUsed: len(grant.Devices),
	}, nil
}

// VerifyAccessToken is the pure read-with-expiry-check helper behind the
// legacy verify endpoints. It never errors on garbled input; everything
// degrades to "no access" with a reason.
func (s *entitlementService) VerifyAccessToken(ctx context.Context, token, tokenID, deviceID string) (*dto.VerifyAccessResponse, error) {
	if token == "" || tokenID == "" {
		return &dto.VerifyAccessResponse{
			Result:    dto.Failure(dto.ReasonMissingCreds, "token and tokenId are required"),
			HasAccess: false,
			Reason:    dto.ReasonMissingCreds,
		}, nil
	}

	if _, err := s.signer.Verify(token, tokenID); err != nil {
		return &dto.VerifyAccessResponse{
			Result:    dto.Failure(dto.ReasonInvalidToken, "token signature is invalid"),
			HasAccess: false,
			Reason:    dto.ReasonInvalidToken,
		}, nil
	}

	grant, err := s.loadGrant(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if grant == nil || !grant.Unlocked || grant.IsExpired() {
		return &dto.VerifyAccessResponse{
			Result:    dto.Failure(dto.ReasonNoAccessData, "no access data for this token"),
			HasAccess: false,
			Reason:    dto.ReasonNoAccessData,
		}, nil
	}

	if deviceID != "" && !grant.HasDevice(deviceID) {
		return &dto.VerifyAccessResponse{
			Result:    dto.Failure(dto.ReasonInvalidToken, "device is not authorized for this token"),
			HasAccess: false,
			Reason:    dto.ReasonInvalidToken,
		}, nil
	}

	return &dto.VerifyAccessResponse{
		Result:     dto.Success(),
		HasAccess:  true,
		Reason:     dto.ReasonUnlocked,
		UnlockDate: grant.UnlockedAt.Format(time.RFC3339),
	}, nil
}

// RedeemCodeForUser is the member redemption path: the same atomic code
// flip, plus a per-user redemption record and a course-cache refresh.
func (s *entitlementService) RedeemCodeForUser(ctx context.Context, sessionToken, code string, meta RequestMeta) (*dto.MemberRedeemResponse, error) {
	session, err := s.sessions.resolve(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &dto.MemberRedeemResponse{
			Result: dto.Failure(dto.ReasonNotLoggedIn, "login required"),
		}, nil
	}

	// A user may claim a given code at most once; checked before the
	// code itself is touched.
	if _, err := s.redemptionRepo.GetByUserAndCode(ctx, session.UserID, code); err == nil {
		return &dto.MemberRedeemResponse{
			Result: dto.Failure(dto.ReasonAlreadyRedeemed, "you already redeemed this code"),
		}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check prior redemption: %w", err)
	}

	redeemed, err := s.codeRepo.Redeem(ctx, code, session.DeviceID, meta.IP)
	if err != nil {
		if errors.Is(err, repository.ErrCodeAlreadyUsed) {
			return &dto.MemberRedeemResponse{
				Result: dto.Failure(dto.ReasonInvalidOrUsed, "code is invalid or already used"),
			}, nil
		}
		return nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	plan := redeemed.Plan
	if plan == "" {
		plan = s.access.DefaultPlan
	}

	redemption := &domain.UserRedemption{
		UserID:     session.UserID,
		Code:       redeemed.Code,
		Plan:       plan,
		Status:     domain.RedemptionStatusActive,
		RedeemedAt: time.Now(),
		ExpiresAt:  time.Now().Add(s.access.TokenExpiry.Duration),
	}

	if err := s.redemptionRepo.Create(ctx, redemption); err != nil {
		if errors.Is(err, repository.ErrAlreadyRedeemed) {
			return &dto.MemberRedeemResponse{
				Result: dto.Failure(dto.ReasonAlreadyRedeemed, "you already redeemed this code"),
			}, nil
		}
		return nil, fmt.Errorf("failed to record redemption: %w", err)
	}

	if err := s.cache.InvalidateCourses(ctx, session.UserID); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.String("user_id", session.UserID), zap.Error(err))
	}

	return &dto.MemberRedeemResponse{
		Result:    dto.Success(),
		Plan:      plan,
		ExpiresAt: redemption.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// MyCourses lists a user's redemptions and whether any grants full access.
func (s *entitlementService) MyCourses(ctx context.Context, sessionToken string) (*dto.MyCoursesResponse, error) {
	session, err := s.sessions.resolve(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return &dto.MyCoursesResponse{
			Result:  dto.Failure(dto.ReasonNotLoggedIn, "login required"),
			Courses: []dto.CourseInfo{},
		}, nil
	}

	courses, err := s.loadCourses(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	resp := &dto.MyCoursesResponse{
		Result:  dto.Success(),
		Courses: make([]dto.CourseInfo, 0, len(courses)),
	}

	for _, course := range courses {
		resp.Courses = append(resp.Courses, dto.CourseInfo{
			Code:       course.Code,
			Plan:       course.Plan,
			Status:     course.Status,
			RedeemedAt: course.RedeemedAt.Format(time.RFC3339),
			ExpiresAt:  course.ExpiresAt.Format(time.RFC3339),
		})
		if course.Plan == domain.PlanFull && course.IsActive() {
			resp.HasFullAccess = true
		}
	}

	return resp, nil
}

// loadGrant is the read-through for access grants: cache, store on miss,
// repopulate. Returns nil when the grant does not exist.
func (s *entitlementService) loadGrant(ctx context.Context, tokenID string) (*domain.AccessGrant, error) {
	grant, err := s.cache.GetGrant(ctx, tokenID)
	if err == nil {
		return grant, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("grant cache read failed", zap.String("token_id", tokenID), zap.Error(err))
	}

	grant, err = s.grantRepo.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load access grant: %w", err)
	}

	if cacheErr := s.cache.SetGrant(ctx, grant); cacheErr != nil {
		s.logger.Warn("grant cache repopulation failed", zap.String("token_id", tokenID), zap.Error(cacheErr))
	}

	return grant, nil
}

// loadCourses is the read-through for per-user redemption lists.
func (s *entitlementService) loadCourses(ctx context.Context, userID string) ([]*domain.UserRedemption, error) {
	courses, err := s.cache.GetCourses(ctx, userID)
	if err == nil {
		return courses, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("course cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	courses, err = s.redemptionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}

	if cacheErr := s.cache.SetCourses(ctx, userID, courses); cacheErr != nil {
		s.logger.Warn("course cache repopulation failed", zap.String("user_id", userID), zap.Error(cacheErr))
	}

	return courses, nil
}

// appendAccessLog writes an audit row; failures are logged, never fatal.
func (s *entitlementService) appendAccessLog(ctx context.Context, tokenRef, lessonID string, meta RequestMeta) {
	entry := &domain.AccessLog{
		TokenRef:  tokenRef,
		LessonID:  lessonID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}

	if err := s.accessLogRepo.Append(ctx, entry); err != nil {
		s.logger.Warn("access log append failed",
			zap.String("lesson_id", lessonID),
			zap.Error(err),
		)
	}
}
