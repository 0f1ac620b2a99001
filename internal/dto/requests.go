package dto

// RedeemCodeRequest validates and redeems a code anonymously, binding the
// resulting access token to the requesting device.
type RedeemCodeRequest struct {
	Code     string `json:"code" binding:"required"`
	DeviceID string `json:"deviceId"`
}

// CheckLessonRequest carries a lesson id plus whichever credentials the
// client holds. The optional fields are parsed into a tagged Credentials
// variant before any business logic runs.
type CheckLessonRequest struct {
	LessonID     string `json:"lessonId" binding:"required"`
	SessionToken string `json:"sessionToken"`
	Token        string `json:"token"`
	TokenID      string `json:"tokenId"`
	DeviceID     string `json:"deviceId"`
}

// VerifyAccessRequest checks a device-bound access token.
type VerifyAccessRequest struct {
	Token    string `json:"token"`
	TokenID  string `json:"tokenId"`
	DeviceID string `json:"deviceId"`
}

// VerifyTokenRequest checks token validity without a device binding.
type VerifyTokenRequest struct {
	Token   string `json:"token"`
	TokenID string `json:"tokenId"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// VerifyEmailRequest represents an email verification request
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResendVerificationRequest asks for a fresh verification code.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"deviceId" binding:"required"`
}

// VerifySessionRequest represents a session verification request
type VerifySessionRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
}

// MemberRedeemRequest is a logged-in user claiming a redemption code.
type MemberRedeemRequest struct {
	Code         string `json:"code" binding:"required"`
	SessionToken string `json:"sessionToken" binding:"required"`
}
