package acceptance

import (
	"net/http"

	"github.com/apcs-space/access-service/internal/dto"
)

// registerVerified walks register → verify-email and returns nothing;
// the caller logs in with the same credentials.
func (s *Suite) registerVerified(email, password string) {
	s.T().Helper()

	var reg dto.RegisterResponse
	s.postJSON("/api/auth/register", dto.RegisterRequest{Email: email, Password: password}, &reg)
	s.Require().True(reg.OK)

	var verify dto.Result
	s.postJSON("/api/auth/verify-email", dto.VerifyEmailRequest{
		Email: email,
		Code:  s.verificationCodeFor(email),
	}, &verify)
	s.Require().True(verify.OK)
}

func (s *Suite) login(email, password, deviceID string) dto.LoginResponse {
	s.T().Helper()

	var resp dto.LoginResponse
	s.postJSON("/api/auth/login", dto.LoginRequest{Email: email, Password: password, DeviceID: deviceID}, &resp)
	return resp
}

func (s *Suite) TestRegister_Success() {
	var resp dto.RegisterResponse
	httpResp := s.postJSON("/api/auth/register", dto.RegisterRequest{
		Email:    "test@example.com",
		Password: "Password123",
	}, &resp)

	s.Equal(http.StatusOK, httpResp.StatusCode)
	s.True(resp.OK)
	s.NotEmpty(resp.UserID)
	// No SMTP server runs in this environment.
	s.False(resp.EmailSent)
}

func (s *Suite) TestRegister_DuplicateEmail() {
	first := dto.RegisterRequest{Email: "duplicate@example.com", Password: "Password123"}
	var resp dto.RegisterResponse
	s.postJSON("/api/auth/register", first, &resp)
	s.Require().True(resp.OK)

	var dup dto.RegisterResponse
	httpResp := s.postJSON("/api/auth/register", first, &dup)
	s.Equal(http.StatusConflict, httpResp.StatusCode)
	s.Equal(dto.ReasonDuplicateEmail, dup.ReasonCode)
}

func (s *Suite) TestRegister_InvalidInput() {
	var badEmail dto.RegisterResponse
	httpResp := s.postJSON("/api/auth/register", dto.RegisterRequest{Email: "invalid-email", Password: "Password123"}, &badEmail)
	s.Equal(http.StatusBadRequest, httpResp.StatusCode)
	s.Equal(dto.ReasonInvalidEmail, badEmail.ReasonCode)

	var shortPass dto.RegisterResponse
	httpResp = s.postJSON("/api/auth/register", dto.RegisterRequest{Email: "test@example.com", Password: "short"}, &shortPass)
	s.Equal(http.StatusBadRequest, httpResp.StatusCode)
	s.Equal(dto.ReasonShortPassword, shortPass.ReasonCode)
}

func (s *Suite) TestLogin_RequiresVerifiedEmail() {
	var reg dto.RegisterResponse
	s.postJSON("/api/auth/register", dto.RegisterRequest{Email: "unverified@example.com", Password: "Password123"}, &reg)
	s.Require().True(reg.OK)

	resp := s.login("unverified@example.com", "Password123", "dev_1")
	s.False(resp.OK)
	s.Equal(dto.ReasonNeedVerification, resp.ReasonCode)
}

func (s *Suite) TestLogin_Success() {
	s.registerVerified("login@example.com", "Password123")

	resp := s.login("login@example.com", "Password123", "dev_1")
	s.True(resp.OK)
	s.NotEmpty(resp.SessionToken)
	s.Require().NotNil(resp.User)
	s.Equal("login@example.com", resp.User.Email)
}

func (s *Suite) TestLogin_WrongPasswordAndUnknownEmailMatch() {
	s.registerVerified("member@example.com", "Password123")

	wrongPass := s.login("member@example.com", "WrongPassword", "dev_1")
	unknown := s.login("ghost@example.com", "Password123", "dev_1")

	s.Equal(dto.ReasonBadCredentials, wrongPass.ReasonCode)
	s.Equal(dto.ReasonBadCredentials, unknown.ReasonCode)
}

func (s *Suite) TestVerifySession() {
	s.registerVerified("session@example.com", "Password123")
	login := s.login("session@example.com", "Password123", "dev_1")
	s.Require().True(login.OK)

	var resp dto.VerifySessionResponse
	s.postJSON("/api/auth/verify-session", dto.VerifySessionRequest{SessionToken: login.SessionToken}, &resp)
	s.True(resp.Valid)
	s.Require().NotNil(resp.User)
	s.Equal("session@example.com", resp.User.Email)

	var invalid dto.VerifySessionResponse
	httpResp := s.postJSON("/api/auth/verify-session", dto.VerifySessionRequest{SessionToken: "bogus"}, &invalid)
	s.Equal(http.StatusUnauthorized, httpResp.StatusCode)
	s.False(invalid.Valid)
}

// TestMemberFlow is the end-to-end member journey: register, verify,
// login, redeem a code, list courses, open a paid lesson by session.
func (s *Suite) TestMemberFlow() {
	s.registerVerified("student@example.com", "Password123")
	login := s.login("student@example.com", "Password123", "dev_student")
	s.Require().True(login.OK)

	var redeemed dto.MemberRedeemResponse
	s.postJSON("/api/auth/redeem-code", dto.MemberRedeemRequest{
		Code:         "APCS2024-DEMO01",
		SessionToken: login.SessionToken,
	}, &redeemed)
	s.Require().True(redeemed.OK)
	s.Equal("full", redeemed.Plan)
	s.NotEmpty(redeemed.ExpiresAt)

	var again dto.MemberRedeemResponse
	httpResp := s.postJSON("/api/auth/redeem-code", dto.MemberRedeemRequest{
		Code:         "APCS2024-DEMO01",
		SessionToken: login.SessionToken,
	}, &again)
	s.Equal(http.StatusConflict, httpResp.StatusCode)
	s.Equal(dto.ReasonAlreadyRedeemed, again.ReasonCode)

	var courses dto.MyCoursesResponse
	s.getJSON("/api/auth/my-courses", login.SessionToken, &courses)
	s.Require().Len(courses.Courses, 1)
	s.Equal("APCS2024-DEMO01", courses.Courses[0].Code)
	s.True(courses.HasFullAccess)

	var lesson dto.CheckLessonResponse
	s.postJSON("/api/check-lesson", dto.CheckLessonRequest{
		LessonID:     "B1",
		SessionToken: login.SessionToken,
	}, &lesson)
	s.True(lesson.CanAccess)
	s.Equal(dto.ReasonUnlocked, lesson.Reason)
}

func (s *Suite) TestMyCourses_RequiresBearer() {
	httpResp := s.getJSON("/api/auth/my-courses", "", nil)
	s.Equal(http.StatusUnauthorized, httpResp.StatusCode)
}
