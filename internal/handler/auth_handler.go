package handler

import (
	"github.com/apcs-space/access-service/internal/dto"
	"github.com/apcs-space/access-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler serves member account endpoints.
type AuthHandler struct {
	accounts     service.AccountService
	entitlements service.EntitlementService
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts service.AccountService, entitlements service.EntitlementService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		entitlements: entitlements,
		logger:       logger,
	}
}

// Register creates an account and sends a verification code.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.accounts.Register(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, resp.Result, resp)
}

// VerifyEmail consumes a verification code.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.accounts.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.logger.Error("email verification failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, *res, res)
}

// ResendVerification issues a fresh verification code.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req dto.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.accounts.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("verification resend failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, *res, res)
}

// Login authenticates a member and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.accounts.Login(c.Request.Context(), &req, requestMeta(c))
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, resp.Result, resp)
}

// VerifySession reports session validity.
func (h *AuthHandler) VerifySession(c *gin.Context) {
	var req dto.VerifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.accounts.VerifySession(c.Request.Context(), req.SessionToken)
	if err != nil {
		h.logger.Error("session verification failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, resp.Result, resp)
}

// RedeemCode claims a code for the logged-in user.
func (h *AuthHandler) RedeemCode(c *gin.Context) {
	var req dto.MemberRedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.entitlements.RedeemCodeForUser(c.Request.Context(), req.SessionToken, req.Code, requestMeta(c))
	if err != nil {
		h.logger.Error("member redemption failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, resp.Result, resp)
}

// MyCourses lists the courses the session's user has redeemed. The
// session token arrives as a Bearer header, extracted by the middleware.
func (h *AuthHandler) MyCourses(c *gin.Context) {
	resp, err := h.entitlements.MyCourses(c.Request.Context(), SessionToken(c))
	if err != nil {
		h.logger.Error("course listing failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, resp.Result, resp)
}
