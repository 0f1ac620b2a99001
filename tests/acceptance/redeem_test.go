package acceptance

import (
	"net/http"
	"sync"

	"github.com/apcs-space/access-service/internal/dto"
)

func (s *Suite) TestValidateCode_Success() {
	var resp dto.RedeemCodeResponse
	httpResp := s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
		Code:     "APCS2024-DEMO01",
		DeviceID: "dev_acceptance_1",
	}, &resp)

	s.Equal(http.StatusOK, httpResp.StatusCode)
	s.True(resp.OK)
	s.NotEmpty(resp.Token)
	s.NotEmpty(resp.TokenID)
	s.NotEqual("APCS2024-DEMO01", resp.TokenID, "token id must not leak the code")
}

func (s *Suite) TestValidateCode_SecondUseRejected() {
	var first dto.RedeemCodeResponse
	s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
		Code:     "APCS2024-DEMO01",
		DeviceID: "dev_a",
	}, &first)
	s.Require().True(first.OK)

	var second dto.RedeemCodeResponse
	httpResp := s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
		Code:     "APCS2024-DEMO01",
		DeviceID: "dev_b",
	}, &second)

	s.Equal(http.StatusBadRequest, httpResp.StatusCode)
	s.False(second.OK)
	s.Equal(dto.ReasonInvalidOrUsed, second.ReasonCode)
}

func (s *Suite) TestValidateCode_UnknownMatchesUsed() {
	var used, unknown dto.RedeemCodeResponse
	s.postJSON("/api/validate-code", dto.RedeemCodeRequest{Code: "APCS2024-BURNED", DeviceID: "dev_a"}, &used)
	s.postJSON("/api/validate-code", dto.RedeemCodeRequest{Code: "NO-SUCH-CODE", DeviceID: "dev_a"}, &unknown)

	s.Equal(used.ReasonCode, unknown.ReasonCode)
	s.Equal(dto.ReasonInvalidOrUsed, used.ReasonCode)
}

func (s *Suite) TestValidateCode_MissingDeviceID() {
	var resp dto.RedeemCodeResponse
	httpResp := s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
		Code: "APCS2024-DEMO01",
	}, &resp)

	s.Equal(http.StatusBadRequest, httpResp.StatusCode)
	s.Equal(dto.ReasonMissingDeviceID, resp.ReasonCode)

	// The code survives for a correct retry.
	var retry dto.RedeemCodeResponse
	s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
		Code:     "APCS2024-DEMO01",
		DeviceID: "dev_a",
	}, &retry)
	s.True(retry.OK)
}

// TestValidateCode_ConcurrentRedemption exercises the conditional update
// under real parallel requests: exactly one wins.
func (s *Suite) TestValidateCode_ConcurrentRedemption() {
	const attempts = 8

	results := make([]dto.RedeemCodeResponse, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
				Code:     "APCS2024-RACE01",
				DeviceID: "dev_racer",
			}, &results[i])
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r.OK {
			winners++
		} else {
			s.Equal(dto.ReasonInvalidOrUsed, r.ReasonCode)
		}
	}
	s.Equal(1, winners)
}

func (s *Suite) TestVerifyAccess() {
	var redeemed dto.RedeemCodeResponse
	s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
		Code:     "APCS2024-DEMO01",
		DeviceID: "dev_a",
	}, &redeemed)
	s.Require().True(redeemed.OK)

	var verified dto.VerifyAccessResponse
	s.postJSON("/api/verify-access", dto.VerifyAccessRequest{
		Token:    redeemed.Token,
		TokenID:  redeemed.TokenID,
		DeviceID: "dev_a",
	}, &verified)
	s.True(verified.HasAccess)
	s.NotEmpty(verified.UnlockDate)

	var tampered dto.VerifyAccessResponse
	httpResp := s.postJSON("/api/verify-access", dto.VerifyAccessRequest{
		Token:    redeemed.Token + "00",
		TokenID:  redeemed.TokenID,
		DeviceID: "dev_a",
	}, &tampered)
	s.Equal(http.StatusUnauthorized, httpResp.StatusCode)
	s.False(tampered.HasAccess)
}

func (s *Suite) TestVerifyToken() {
	var redeemed dto.RedeemCodeResponse
	s.postJSON("/api/validate-code", dto.RedeemCodeRequest{
		Code:     "APCS2024-DEMO01",
		DeviceID: "dev_a",
	}, &redeemed)
	s.Require().True(redeemed.OK)

	var resp dto.VerifyTokenResponse
	s.postJSON("/api/verify-token", dto.VerifyTokenRequest{
		Token:   redeemed.Token,
		TokenID: redeemed.TokenID,
	}, &resp)
	s.True(resp.Valid)
	s.NotEmpty(resp.UnlockDate)
}
