package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apcs-space/access-service/internal/config"
	"github.com/apcs-space/access-service/internal/domain"
	"github.com/apcs-space/access-service/internal/repository"
	"github.com/apcs-space/access-service/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// ErrOAuthFailed covers every federated-login failure the client can do
// nothing about beyond retrying. Details stay in the logs.
var ErrOAuthFailed = errors.New("federated login failed")

// googleUser is the subset of the provider's userinfo payload we consume.
type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// oauthService implements OAuthService against Google.
type oauthService struct {
	oauth      *oauth2.Config
	state      *utils.StateCodec
	userRepo   repository.UserRepository
	issuer     *sessionIssuer
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOAuthService creates a new Google OAuth service. Session issuance
// goes through the same path as password login so both produce
// identical session records.
func NewOAuthService(
	cfg config.GoogleConfig,
	state *utils.StateCodec,
	repos *repository.Repositories,
	cache AccessCache,
	sessionExpiry time.Duration,
	logger *zap.Logger,
) OAuthService {
	return &oauthService{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		state:    state,
		userRepo: repos.User,
		issuer: &sessionIssuer{
			sessionRepo: repos.Session,
			userRepo:    repos.User,
			deviceRepo:  repos.Device,
			cache:       cache,
			expiry:      sessionExpiry,
			logger:      logger,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// AuthURL builds the provider authorization URL. The device id rides in
// a signed short-lived state parameter and comes back on the callback.
func (s *oauthService) AuthURL(deviceID string) (string, error) {
	state, err := s.state.Encode(deviceID)
	if err != nil {
		return "", fmt.Errorf("failed to encode oauth state: %w", err)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// HandleCallback completes the provider exchange and opens a session.
// Account matching order: google id, then verified email link, then a
// fresh pre-verified account.
func (s *oauthService) HandleCallback(ctx context.Context, code, state string, meta RequestMeta) (string, error) {
	deviceID, err := s.state.Decode(state)
	if err != nil {
		s.logger.Warn("oauth state rejected", zap.Error(err))
		return "", ErrOAuthFailed
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", zap.Error(err))
		return "", ErrOAuthFailed
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		s.logger.Warn("oauth userinfo fetch failed", zap.Error(err))
		return "", ErrOAuthFailed
	}
	if profile.ID == "" || profile.Email == "" {
		s.logger.Warn("oauth userinfo incomplete")
		return "", ErrOAuthFailed
	}

	user, err := s.resolveUser(ctx, profile)
	if err != nil {
		return "", err
	}

	session, err := s.issuer.issue(ctx, user.ID, deviceID, meta)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

func (s *oauthService) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleUser, error) {
	client := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, s.httpClient),
		oauth2.StaticTokenSource(token),
	)

	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request returned status %d", resp.StatusCode)
	}

	var profile googleUser
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return &profile, nil
}

// resolveUser maps a provider profile to a local account, linking or
// creating as needed.
func (s *oauthService) resolveUser(ctx context.Context, profile *googleUser) (*domain.User, error) {
	user, err := s.userRepo.GetByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up google account: %w", err)
	}

	email := utils.SanitizeEmail(profile.Email)

	user, err = s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		// Linking to an existing password account also confirms the
		// email: the provider attested it.
		if linkErr := s.userRepo.LinkGoogleAccount(ctx, user.ID, profile.ID, profile.Picture); linkErr != nil {
			return nil, fmt.Errorf("failed to link google account: %w", linkErr)
		}
		return s.userRepo.GetByID(ctx, user.ID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	name := profile.Name
	if name == "" {
		name = utils.DefaultName(email)
	}
	googleID := profile.ID
	user = &domain.User{
		Email:           email,
		Name:            name,
		Picture:         profile.Picture,
		GoogleID:        &googleID,
		IsEmailVerified: true,
		Status:          domain.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
