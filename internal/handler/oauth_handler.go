package handler

import (
	"net/http"
	"net/url"

	"github.com/apcs-space/access-service/internal/dto"
	"github.com/apcs-space/access-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OAuthHandler serves the Google federation endpoints.
type OAuthHandler struct {
	oauth       service.OAuthService
	successPath string
	logger      *zap.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(oauth service.OAuthService, successPath string, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauth:       oauth,
		successPath: successPath,
		logger:      logger,
	}
}

// GoogleLogin returns the provider authorization URL. The optional
// deviceId query parameter survives the round trip via the state.
func (h *OAuthHandler) GoogleLogin(c *gin.Context) {
	authURL, err := h.oauth.AuthURL(c.Query("deviceId"))
	if err != nil {
		h.logger.Error("auth url build failed", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, dto.GoogleLoginResponse{
		Result:  dto.Success(),
		AuthURL: authURL,
	})
}

// GoogleCallback finishes the provider exchange and hands the session
// token to the frontend via redirect.
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.Redirect(http.StatusFound, h.successPath+"?error=missing_parameters")
		return
	}

	sessionToken, err := h.oauth.HandleCallback(c.Request.Context(), code, state, requestMeta(c))
	if err != nil {
		h.logger.Warn("oauth callback rejected", zap.Error(err))
		c.Redirect(http.StatusFound, h.successPath+"?error=auth_failed")
		return
	}

	c.Redirect(http.StatusFound, h.successPath+"?token="+url.QueryEscape(sessionToken))
}
