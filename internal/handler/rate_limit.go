package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/apcs-space/access-service/internal/dto"
	"github.com/apcs-space/access-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware throttles by key. Redis trouble fails open: the
// limiter protects against abuse, it must not take the API down with it.
func RateLimitMiddleware(rateLimiter *service.RateLimiter, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		allowed, retryAfter, err := rateLimiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.JSON(http.StatusTooManyRequests, dto.Failure(dto.ReasonRateLimited, "too many requests, slow down"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPBasedKey throttles per client IP, honoring X-Forwarded-For.
func IPBasedKey(c *gin.Context) string {
	ip := c.GetHeader("X-Forwarded-For")
	if ip != "" {
		ips := strings.Split(ip, ",")
		return strings.TrimSpace(ips[0])
	}
	return c.ClientIP()
}

// PathAndIPKey throttles per endpoint per client, so a burst against
// login does not lock the same client out of code redemption.
func PathAndIPKey(c *gin.Context) string {
	return c.Request.URL.Path + ":" + IPBasedKey(c)
}
