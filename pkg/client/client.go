// Package client is the access guard embedded in course frontends. It
// talks to the access service over its JSON API, keeps credentials in a
// Storage, and answers the only question the frontend has: may this
// device or member open this lesson right now.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Reason codes the guard branches on. They mirror the service's wire
// contract; unknown codes are treated as denials.
const (
	ReasonFree     = "free"
	ReasonUnlocked = "unlocked"

	// ReasonLocalFree marks a free lesson allowed without a server
	// round trip, either by the static free set or during an outage.
	ReasonLocalFree = "local_free"
	// ReasonNetworkError marks a paid lesson denied because the
	// service was unreachable.
	ReasonNetworkError = "network_error"
)

// Result is the shared success/failure discriminator every endpoint
// returns.
type Result struct {
	OK         bool   `json:"ok"`
	ReasonCode string `json:"reasonCode,omitempty"`
	Message    string `json:"message,omitempty"`
}

// RedeemResult is the anonymous code-redemption response.
type RedeemResult struct {
	Result
	Token   string `json:"token,omitempty"`
	TokenID string `json:"tokenId,omitempty"`
}

// LessonVerdict is the per-lesson authorization answer.
type LessonVerdict struct {
	Result
	CanAccess      bool   `json:"canAccess"`
	Reason         string `json:"reason"`
	DevicesUsed    int    `json:"devicesUsed,omitempty"`
	CurrentDevices int    `json:"currentDevices,omitempty"`
}

// AccessStatus reports whether a stored device token still grants
// access.
type AccessStatus struct {
	Result
	HasAccess  bool   `json:"hasAccess"`
	Reason     string `json:"reason,omitempty"`
	UnlockDate string `json:"unlockDate,omitempty"`
}

// User is the public profile shape returned by login and session
// verification.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// RegisterResult is the registration response. EmailSent false means
// the account exists but the verification mail failed; offer a resend.
type RegisterResult struct {
	Result
	UserID    string `json:"userId,omitempty"`
	EmailSent bool   `json:"emailSent"`
}

// LoginResult carries the session token on success.
type LoginResult struct {
	Result
	SessionToken string `json:"sessionToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// SessionStatus reports session validity.
type SessionStatus struct {
	Result
	Valid     bool   `json:"valid"`
	User      *User  `json:"user,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// Course is one redeemed entitlement in a member's list.
type Course struct {
	Code       string `json:"code"`
	Plan       string `json:"plan"`
	Status     string `json:"status"`
	RedeemedAt string `json:"redeemedAt"`
	ExpiresAt  string `json:"expiresAt"`
}

// CourseList is the member course inventory.
type CourseList struct {
	Result
	Courses       []Course `json:"courses"`
	HasFullAccess bool     `json:"hasFullAccess"`
}

// MemberRedeemResult is a logged-in user's code claim.
type MemberRedeemResult struct {
	Result
	Plan      string `json:"plan,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// Client is a typed caller for the access service API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. to shorten
// timeouts or add instrumentation.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateCode redeems a code anonymously, binding the resulting token
// to deviceID.
func (c *Client) ValidateCode(ctx context.Context, code, deviceID string) (*RedeemResult, error) {
	var out RedeemResult
	body := map[string]string{"code": code, "deviceId": deviceID}
	if err := c.postJSON(ctx, "/api/validate-code", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LessonQuery carries a lesson id plus whichever credentials the caller
// holds; empty fields are omitted from the wire request.
type LessonQuery struct {
	LessonID     string `json:"lessonId"`
	SessionToken string `json:"sessionToken,omitempty"`
	Token        string `json:"token,omitempty"`
	TokenID      string `json:"tokenId,omitempty"`
	DeviceID     string `json:"deviceId,omitempty"`
}

// CheckLesson asks the service for a per-lesson verdict.
func (c *Client) CheckLesson(ctx context.Context, q LessonQuery) (*LessonVerdict, error) {
	var out LessonVerdict
	if err := c.postJSON(ctx, "/api/check-lesson", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyAccess checks a stored device-bound token.
func (c *Client) VerifyAccess(ctx context.Context, token, tokenID, deviceID string) (*AccessStatus, error) {
	var out AccessStatus
	body := map[string]string{"token": token, "tokenId": tokenID, "deviceId": deviceID}
	if err := c.postJSON(ctx, "/api/verify-access", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and triggers a verification mail.
func (c *Client) Register(ctx context.Context, email, password, name string) (*RegisterResult, error) {
	var out RegisterResult
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.postJSON(ctx, "/api/auth/register", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail submits a verification code.
func (c *Client) VerifyEmail(ctx context.Context, email, code string) (*Result, error) {
	var out Result
	body := map[string]string{"email": email, "code": code}
	if err := c.postJSON(ctx, "/api/auth/verify-email", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerification asks for a fresh verification code.
func (c *Client) ResendVerification(ctx context.Context, email string) (*Result, error) {
	var out Result
	body := map[string]string{"email": email}
	if err := c.postJSON(ctx, "/api/auth/resend-verification", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password, deviceID string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password, "deviceId": deviceID}
	if err := c.postJSON(ctx, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifySession checks whether a session token is still valid.
func (c *Client) VerifySession(ctx context.Context, sessionToken string) (*SessionStatus, error) {
	var out SessionStatus
	body := map[string]string{"sessionToken": sessionToken}
	if err := c.postJSON(ctx, "/api/auth/verify-session", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RedeemCode claims a redemption code for the logged-in member.
func (c *Client) RedeemCode(ctx context.Context, sessionToken, code string) (*MemberRedeemResult, error) {
	var out MemberRedeemResult
	body := map[string]string{"code": code, "sessionToken": sessionToken}
	if err := c.postJSON(ctx, "/api/auth/redeem-code", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyCourses lists the member's redeemed courses.
func (c *Client) MyCourses(ctx context.Context, sessionToken string) (*CourseList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/my-courses", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sessionToken)

	var out CourseList
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLoginURL fetches the provider authorization URL for a federated
// login bound to deviceID.
func (c *Client) GoogleLoginURL(ctx context.Context, deviceID string) (string, error) {
	u := c.baseURL + "/api/auth/google/login"
	if deviceID != "" {
		u += "?deviceId=" + url.QueryEscape(deviceID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	var out struct {
		Result
		AuthURL string `json:"authUrl"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if !out.OK {
		return "", fmt.Errorf("google login rejected: %s", out.ReasonCode)
	}
	return out.AuthURL, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes the request and decodes the JSON body into out. Business
// rejections come back as 4xx with an ok:false body, so any decodable
// response is a success at this layer; only transport trouble and
// bodyless server errors become Go errors.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response from %s: %w", req.URL.Path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", req.URL.Path, resp.StatusCode, err)
	}
	return nil
}
