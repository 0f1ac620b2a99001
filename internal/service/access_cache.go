package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// accessCache implements AccessCache on Redis. Keys mirror the record
// they project: session:{token}, grant:{tokenID}, courses:{userID}.
type accessCache struct {
	redis          *database.Redis
	courseCacheTTL time.Duration
}

// NewAccessCache creates a Redis-backed fast-path cache
func NewAccessCache(rdb *database.Redis, courseCacheTTL time.Duration) AccessCache {
	return &accessCache{redis: rdb, courseCacheTTL: courseCacheTTL}
}

func sessionKey(token string) string  { return fmt.Sprintf("session:%s", token) }
func grantKey(tokenID string) string  { return fmt.Sprintf("grant:%s", tokenID) }
func coursesKey(userID string) string { return fmt.Sprintf("courses:%s", userID) }

func (c *accessCache) getJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt projection is treated as a miss; the store is authoritative.
		return ErrCacheMiss
	}

	return nil
}

func (c *accessCache) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		// Logically expired already; nothing worth caching.
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %s: %w", key, err)
	}

	if err := c.redis.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}

	return nil
}

// GetSession reads a session projection
func (c *accessCache) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	session := &domain.Session{}
	if err := c.getJSON(ctx, sessionKey(token), session); err != nil {
		return nil, err
	}
	session.Token = token
	return session, nil
}

// SetSession caches a session with TTL equal to its remaining lifetime
func (c *accessCache) SetSession(ctx context.Context, session *domain.Session) error {
	return c.setJSON(ctx, sessionKey(session.Token), session, time.Until(session.ExpiresAt))
}

// GetGrant reads an access grant projection
func (c *accessCache) GetGrant(ctx context.Context, tokenID string) (*domain.AccessGrant, error) {
	grant := &domain.AccessGrant{}
	if err := c.getJSON(ctx, grantKey(tokenID), grant); err != nil {
		return nil, err
	}
	grant.TokenID = tokenID
	return grant, nil
}

// SetGrant caches a grant with TTL equal to its remaining lifetime
func (c *accessCache) SetGrant(ctx context.Context, grant *domain.AccessGrant) error {
	return c.setJSON(ctx, grantKey(grant.TokenID), grant, time.Until(grant.ExpiresAt))
}

// GetCourses reads a user's redemption list projection
func (c *accessCache) GetCourses(ctx context.Context, userID string) ([]*domain.UserRedemption, error) {
	var courses []*domain.UserRedemption
	if err := c.getJSON(ctx, coursesKey(userID), &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// SetCourses caches a user's redemption list. An empty list is cached
// too, so repeat lookups for course-less users stay off the store.
func (c *accessCache) SetCourses(ctx context.Context, userID string, courses []*domain.UserRedemption) error {
	if courses == nil {
		courses = []*domain.UserRedemption{}
	}
	return c.setJSON(ctx, coursesKey(userID), courses, c.courseCacheTTL)
}

// InvalidateCourses drops a user's course projection after a redemption
func (c *accessCache) InvalidateCourses(ctx context.Context, userID string) error {
	if err := c.redis.Client.Del(ctx, coursesKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate courses for %s: %w", userID, err)
	}
	return nil
}
