package handler

import (
	"github.com/apcs-space/access-service/internal/dto"
	"github.com/apcs-space/access-service/internal/service"
	"github.com/apcs-space/access-service/pkg/observability"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessHandler serves the anonymous entitlement endpoints.
type AccessHandler struct {
	entitlements service.EntitlementService
	metrics      *observability.AccessMetrics
	logger       *zap.Logger
}

// NewAccessHandler creates a new access handler
func NewAccessHandler(entitlements service.EntitlementService, metrics *observability.AccessMetrics, logger *zap.Logger) *AccessHandler {
	return &AccessHandler{
		entitlements: entitlements,
		metrics:      metrics,
		logger:       logger,
	}
}

// ValidateCode redeems a code and returns a device-bound access token.
func (h *AccessHandler) ValidateCode(c *gin.Context) {
	var req dto.RedeemCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.entitlements.RedeemCode(c.Request.Context(), req.Code, req.DeviceID, requestMeta(c))
	if err != nil {
		h.logger.Error("code redemption failed", zap.Error(err))
		internalError(c)
		return
	}

	h.metrics.RecordRedemption(c.Request.Context(), resp.OK)
	respond(c, resp.Result, resp)
}

// CheckLesson answers whether the presented credentials unlock a lesson.
func (h *AccessHandler) CheckLesson(c *gin.Context) {
	var req dto.CheckLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	creds := dto.ParseCredentials(req)
	resp, err := h.entitlements.CheckLessonAccess(c.Request.Context(), req.LessonID, creds, requestMeta(c))
	if err != nil {
		h.logger.Error("lesson check failed", zap.String("lesson_id", req.LessonID), zap.Error(err))
		internalError(c)
		return
	}

	h.metrics.RecordLessonCheck(c.Request.Context(), resp.Reason, resp.CanAccess)
	respond(c, resp.Result, resp)
}

// VerifyAccess checks a device-bound token against its grant.
func (h *AccessHandler) VerifyAccess(c *gin.Context) {
	var req dto.VerifyAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.entitlements.VerifyAccessToken(c.Request.Context(), req.Token, req.TokenID, req.DeviceID)
	if err != nil {
		h.logger.Error("access verification failed", zap.Error(err))
		internalError(c)
		return
	}

	respond(c, resp.Result, resp)
}

// VerifyToken checks token validity without a device binding.
func (h *AccessHandler) VerifyToken(c *gin.Context) {
	var req dto.VerifyTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	verdict, err := h.entitlements.VerifyAccessToken(c.Request.Context(), req.Token, req.TokenID, "")
	if err != nil {
		h.logger.Error("token verification failed", zap.Error(err))
		internalError(c)
		return
	}

	resp := &dto.VerifyTokenResponse{
		Result:     verdict.Result,
		Valid:      verdict.HasAccess,
		UnlockDate: verdict.UnlockDate,
	}
	respond(c, resp.Result, resp)
}
