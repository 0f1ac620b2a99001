package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/internal/repository"
	"github.com/apcs-space/access-service/internal/utils"
	"go.uber.org/zap"
)

// sessionResolver is the read-through lookup shared by the entitlement
// and account services: cache first, store on miss, repopulate, expiry
// checked on every read.
type sessionResolver struct {
	sessionRepo repository.SessionRepository
	cache       AccessCache
	logger      *zap.Logger
}

// resolve returns the live session for a token, or nil when the token is
// unknown or expired. An expired session is indistinguishable from a
// nonexistent one. Only infrastructure failures surface as errors.
func (r *sessionResolver) resolve(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := r.cache.GetSession(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			// Degrade to the store on cache trouble; it is the authority anyway.
			r.logger.Warn("session cache read failed", zap.Error(err))
		}

		session, err = r.sessionRepo.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to resolve session: %w", err)
		}

		if cacheErr := r.cache.SetSession(ctx, session); cacheErr != nil {
			r.logger.Warn("session cache repopulation failed", zap.Error(cacheErr))
		}
	}

	if session.IsExpired() {
		return nil, nil
	}

	return session, nil
}

// sessionIssuer opens sessions. Shared between password and federated
// login so both paths produce identical session records.
type sessionIssuer struct {
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	deviceRepo  repository.DeviceRepository
	cache       AccessCache
	expiry      time.Duration
	logger      *zap.Logger
}

// issue creates the session record, caches it and records the device
// sighting. Only the store write is required for success.
func (i *sessionIssuer) issue(ctx context.Context, userID, deviceID string, meta RequestMeta) (*domain.Session, error) {
	token, err := utils.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &domain.Session{
		Token:     token,
		UserID:    userID,
		DeviceID:  deviceID,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(i.expiry),
	}

	if err := i.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := i.cache.SetSession(ctx, session); err != nil {
		i.logger.Warn("session cache write failed", zap.String("user_id", userID), zap.Error(err))
	}

	if err := i.userRepo.UpdateLastLogin(ctx, userID); err != nil {
		i.logger.Warn("last login update failed", zap.String("user_id", userID), zap.Error(err))
	}
	if deviceID != "" {
		device := &domain.Device{
			UserID:    userID,
			DeviceID:  deviceID,
			UserAgent: meta.UserAgent,
			IPAddress: meta.IP,
			LastSeen:  now,
		}
		if err := i.deviceRepo.Upsert(ctx, device); err != nil {
			i.logger.Warn("device upsert failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return session, nil
}
