package dto

// Reason codes returned by every operation. The client access guard
// branches on these, so they are part of the wire contract.
const (
	ReasonFree              = "free"
	ReasonUnlocked          = "unlocked"
	ReasonInvalidOrUsed     = "invalid_or_used"
	ReasonMissingDeviceID   = "missing_device_id"
	ReasonMissingCreds      = "missing_credentials"
	ReasonInvalidToken      = "invalid_token"
	ReasonNoAccessData      = "no_access_data"
	ReasonMaxDevices        = "max_devices_reached"
	ReasonInvalidSession    = "invalid_session"
	ReasonNoCourses         = "no_courses"
	ReasonPlanRequired      = "plan_required"
	ReasonInvalidEmail      = "invalid_email"
	ReasonShortPassword     = "short_password"
	ReasonDuplicateEmail    = "duplicate_email"
	ReasonBadCredentials    = "bad_credentials"
	ReasonNeedVerification  = "need_verification"
	ReasonInvalidCode       = "invalid_code"
	ReasonExpiredCode       = "expired_code"
	ReasonAlreadyRedeemed   = "already_redeemed"
	ReasonNotLoggedIn       = "not_logged_in"
	ReasonValidationFailed  = "validation_failed"
	ReasonRateLimited       = "rate_limited"
	ReasonInternal          = "internal_error"
)

// Result is the discriminated success/failure shape shared by every
// response: {ok:true, ...} or {ok:false, reasonCode, message}.
type Result struct {
	OK         bool   `json:"ok"`
	ReasonCode string `json:"reasonCode,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Success returns an ok Result.
func Success() Result {
	return Result{OK: true}
}

// Failure returns a failed Result with a machine-checkable reason code.
func Failure(reasonCode, message string) Result {
	return Result{OK: false, ReasonCode: reasonCode, Message: message}
}

// RedeemCodeResponse is returned by the anonymous redemption path.
type RedeemCodeResponse struct {
	Result
	Token   string `json:"token,omitempty"`
	TokenID string `json:"tokenId,omitempty"`
}

// CheckLessonResponse is the per-lesson authorization verdict.
type CheckLessonResponse struct {
	Result
	CanAccess      bool   `json:"canAccess"`
	Reason         string `json:"reason"`
	DevicesUsed    int    `json:"devicesUsed,omitempty"`
	CurrentDevices int    `json:"currentDevices,omitempty"`
}

// VerifyAccessResponse reports whether a device-bound token grants access.
type VerifyAccessResponse struct {
	Result
	HasAccess  bool   `json:"hasAccess"`
	Reason     string `json:"reason,omitempty"`
	UnlockDate string `json:"unlockDate,omitempty"`
}

// VerifyTokenResponse reports token validity without a device binding.
type VerifyTokenResponse struct {
	Result
	Valid      bool   `json:"valid"`
	UnlockDate string `json:"unlockDate,omitempty"`
}

// RegisterResponse is returned on successful registration. EmailSent is
// false when the verification mail could not be dispatched; the account
// still exists and the client should offer a resend path.
type RegisterResponse struct {
	Result
	UserID    string `json:"userId,omitempty"`
	EmailSent bool   `json:"emailSent"`
}

// UserInfo represents user information in responses
type UserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Result
	SessionToken string    `json:"sessionToken,omitempty"`
	User         *UserInfo `json:"user,omitempty"`
}

// VerifySessionResponse reports session validity.
type VerifySessionResponse struct {
	Result
	Valid     bool      `json:"valid"`
	User      *UserInfo `json:"user,omitempty"`
	ExpiresAt string    `json:"expiresAt,omitempty"`
}

// CourseInfo is one entry in a user's course list.
type CourseInfo struct {
	Code       string `json:"code"`
	Plan       string `json:"plan"`
	Status     string `json:"status"`
	RedeemedAt string `json:"redeemedAt"`
	ExpiresAt  string `json:"expiresAt"`
}

// MyCoursesResponse lists a user's redeemed courses.
type MyCoursesResponse struct {
	Result
	Courses       []CourseInfo `json:"courses"`
	HasFullAccess bool         `json:"hasFullAccess"`
}

// MemberRedeemResponse is returned when a logged-in user claims a code.
type MemberRedeemResponse struct {
	Result
	Plan      string `json:"plan,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// GoogleLoginResponse carries the provider authorization URL.
type GoogleLoginResponse struct {
	Result
	AuthURL string `json:"authUrl,omitempty"`
}
