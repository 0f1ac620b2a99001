package handler

import (
	"net/http"

	"github.com/apcs-space/access-service/internal/dto"
	"github.com/apcs-space/access-service/internal/service"
	"github.com/gin-gonic/gin"
)

// statusForReason maps reason codes to HTTP statuses. The JSON body is
// the contract; the status is a courtesy for generic HTTP tooling.
func statusForReason(reason string) int {
	switch reason {
	case "":
		return http.StatusOK
	case dto.ReasonValidationFailed, dto.ReasonMissingDeviceID, dto.ReasonMissingCreds,
		dto.ReasonInvalidEmail, dto.ReasonShortPassword,
		dto.ReasonInvalidCode, dto.ReasonExpiredCode, dto.ReasonInvalidOrUsed:
		return http.StatusBadRequest
	case dto.ReasonInvalidToken, dto.ReasonInvalidSession, dto.ReasonBadCredentials,
		dto.ReasonNotLoggedIn, dto.ReasonNoAccessData:
		return http.StatusUnauthorized
	case dto.ReasonNeedVerification, dto.ReasonPlanRequired, dto.ReasonMaxDevices, dto.ReasonNoCourses:
		return http.StatusForbidden
	case dto.ReasonDuplicateEmail, dto.ReasonAlreadyRedeemed:
		return http.StatusConflict
	case dto.ReasonRateLimited:
		return http.StatusTooManyRequests
	case dto.ReasonInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// respond writes a Result-bearing body with the status its reason implies.
func respond(c *gin.Context, result dto.Result, body any) {
	c.JSON(statusForReason(result.ReasonCode), body)
}

func badRequest(c *gin.Context, message string) {
	res := dto.Failure(dto.ReasonValidationFailed, message)
	c.JSON(http.StatusBadRequest, res)
}

func internalError(c *gin.Context) {
	res := dto.Failure(dto.ReasonInternal, "internal error")
	c.JSON(http.StatusInternalServerError, res)
}

// requestMeta collects the client context handlers thread into services.
func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
