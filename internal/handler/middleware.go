package handler

import (
	"net/http"
	"strings"

	"github.com/apcs-space/access-service/internal/dto"
	"github.com/gin-gonic/gin"
)

const sessionTokenKey = "session_token"

// SessionMiddleware extracts the Bearer session token. It only checks
// the header shape; session validity is decided by the service behind
// the handler, which owns the cache fallback.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, dto.Failure(dto.ReasonNotLoggedIn, "authorization header is required"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, dto.Failure(dto.ReasonNotLoggedIn, "authorization header must be Bearer <token>"))
			c.Abort()
			return
		}

		c.Set(sessionTokenKey, parts[1])
		c.Next()
	}
}

// SessionToken returns the Bearer token SessionMiddleware extracted.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
