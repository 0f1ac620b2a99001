package acceptance

import (
	"fmt"
	"net/http"

	"github.com/apcs-space/access-service/internal/dto"
)

func (s *Suite) redeemForDevice(code, deviceID string) dto.RedeemCodeResponse {
	s.T().Helper()

	var resp dto.RedeemCodeResponse
	s.postJSON("/api/validate-code", dto.RedeemCodeRequest{Code: code, DeviceID: deviceID}, &resp)
	s.Require().True(resp.OK)
	return resp
}

func (s *Suite) checkLesson(req dto.CheckLessonRequest) (dto.CheckLessonResponse, *http.Response) {
	s.T().Helper()

	var resp dto.CheckLessonResponse
	httpResp := s.postJSON("/api/check-lesson", req, &resp)
	return resp, httpResp
}

func (s *Suite) TestCheckLesson_FreeLessons() {
	for _, lesson := range []string{"A1", "A2", "A3"} {
		resp, httpResp := s.checkLesson(dto.CheckLessonRequest{LessonID: lesson})
		s.Equal(http.StatusOK, httpResp.StatusCode)
		s.True(resp.CanAccess, "lesson %s should be free", lesson)
		s.Equal(dto.ReasonFree, resp.Reason)
	}
}

func (s *Suite) TestCheckLesson_PaidWithoutCredentials() {
	resp, httpResp := s.checkLesson(dto.CheckLessonRequest{LessonID: "B1"})
	s.Equal(http.StatusBadRequest, httpResp.StatusCode)
	s.False(resp.CanAccess)
	s.Equal(dto.ReasonMissingCreds, resp.Reason)
}

func (s *Suite) TestCheckLesson_DeviceToken() {
	redeemed := s.redeemForDevice("APCS2024-DEMO01", "dev_1")

	resp, _ := s.checkLesson(dto.CheckLessonRequest{
		LessonID: "B1",
		Token:    redeemed.Token,
		TokenID:  redeemed.TokenID,
		DeviceID: "dev_1",
	})
	s.True(resp.CanAccess)
	s.Equal(dto.ReasonUnlocked, resp.Reason)
	s.Equal(1, resp.DevicesUsed)
}

func (s *Suite) TestCheckLesson_DeviceCap() {
	redeemed := s.redeemForDevice("APCS2024-DEMO01", "dev_1")

	for i := 2; i <= 3; i++ {
		resp, _ := s.checkLesson(dto.CheckLessonRequest{
			LessonID: "B1",
			Token:    redeemed.Token,
			TokenID:  redeemed.TokenID,
			DeviceID: fmt.Sprintf("dev_%d", i),
		})
		s.True(resp.CanAccess, "device %d should auto-enroll", i)
	}

	over, httpResp := s.checkLesson(dto.CheckLessonRequest{
		LessonID: "B1",
		Token:    redeemed.Token,
		TokenID:  redeemed.TokenID,
		DeviceID: "dev_4",
	})
	s.Equal(http.StatusForbidden, httpResp.StatusCode)
	s.False(over.CanAccess)
	s.Equal(dto.ReasonMaxDevices, over.Reason)
	s.Equal(3, over.CurrentDevices)

	// Enrolled devices stay enrolled.
	again, _ := s.checkLesson(dto.CheckLessonRequest{
		LessonID: "B1",
		Token:    redeemed.Token,
		TokenID:  redeemed.TokenID,
		DeviceID: "dev_2",
	})
	s.True(again.CanAccess)
}

func (s *Suite) TestCheckLesson_SingleDeviceCode() {
	redeemed := s.redeemForDevice("APCS2024-SINGLE", "dev_1")

	other, _ := s.checkLesson(dto.CheckLessonRequest{
		LessonID: "B1",
		Token:    redeemed.Token,
		TokenID:  redeemed.TokenID,
		DeviceID: "dev_2",
	})
	s.False(other.CanAccess)
	s.Equal(dto.ReasonMaxDevices, other.Reason)
	s.Equal(1, other.CurrentDevices)
}

func (s *Suite) TestCheckLesson_TamperedToken() {
	redeemed := s.redeemForDevice("APCS2024-DEMO01", "dev_1")

	resp, httpResp := s.checkLesson(dto.CheckLessonRequest{
		LessonID: "B1",
		Token:    redeemed.Token[:len(redeemed.Token)-2] + "00",
		TokenID:  redeemed.TokenID,
		DeviceID: "dev_1",
	})
	s.Equal(http.StatusUnauthorized, httpResp.StatusCode)
	s.False(resp.CanAccess)
	s.Equal(dto.ReasonInvalidToken, resp.Reason)
}

func (s *Suite) TestCheckLesson_SessionWinsOverDeviceTriple() {
	// An invalid session must not fall back to a valid device triple.
	redeemed := s.redeemForDevice("APCS2024-DEMO01", "dev_1")

	resp, _ := s.checkLesson(dto.CheckLessonRequest{
		LessonID:     "B1",
		SessionToken: "not-a-real-session",
		Token:        redeemed.Token,
		TokenID:      redeemed.TokenID,
		DeviceID:     "dev_1",
	})
	s.False(resp.CanAccess)
	s.Equal(dto.ReasonInvalidSession, resp.Reason)
}
