package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"publish-queue/internal/config"
	"publish-queue/internal/models"

	"github.com/google/uuid"
)

var (
	ErrInvalidState    = errors.New("unknown or expired state token")
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrExchangeFailed  = errors.New("token exchange failed")
)

// SessionTTL bounds how long an issued handshake may wait for its callback
const SessionTTL = 10 * time.Minute

// Provider describes one platform's OAuth endpoints and client settings
type Provider struct {
	AuthorizeURL    string
	TokenURL        string
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	Scopes          []string
	UsePKCE         bool
	ExtraAuthParams map[string]string
}

// ProvidersFromConfig builds the provider table for the known platforms
func ProvidersFromConfig(cfg config.OAuthConfig) map[models.Platform]Provider {
	return map[models.Platform]Provider{
		models.PlatformYouTube: {
			AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			ClientID:     cfg.YouTube.ClientID,
			ClientSecret: cfg.YouTube.ClientSecret,
			RedirectURI:  cfg.YouTube.RedirectURI,
			Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
			UsePKCE:      true,
			// Google only issues a refresh token for offline consent.
			ExtraAuthParams: map[string]string{
				"access_type": "offline",
				"prompt":      "consent",
			},
		},
		models.PlatformFacebook: {
			AuthorizeURL: "https://www.facebook.com/v19.0/dialog/oauth",
			TokenURL:     "https://graph.facebook.com/v19.0/oauth/access_token",
			ClientID:     cfg.Facebook.ClientID,
			ClientSecret: cfg.Facebook.ClientSecret,
			RedirectURI:  cfg.Facebook.RedirectURI,
			Scopes:       []string{"pages_manage_posts", "pages_read_engagement"},
		},
		models.PlatformTikTok: {
			AuthorizeURL: "https://www.tiktok.com/v2/auth/authorize/",
			TokenURL:     "https://open.tiktokapis.com/v2/oauth/token/",
			ClientID:     cfg.TikTok.ClientID,
			ClientSecret: cfg.TikTok.ClientSecret,
			RedirectURI:  cfg.TikTok.RedirectURI,
			Scopes:       []string{"video.upload"},
			UsePKCE:      true,
		},
	}
}

// HandshakeService bridges the OAuth authorization redirect back into
// credential storage. Each handshake is identified by a single-use state token.
type HandshakeService struct {
	providers   map[models.Platform]Provider
	credentials *CredentialService
	sessions    SessionStore
	httpClient  *http.Client
}

// NewHandshakeService creates a new handshake service
func NewHandshakeService(providers map[models.Platform]Provider, credentials *CredentialService, sessions SessionStore) *HandshakeService {
	return &HandshakeService{
		providers:   providers,
		credentials: credentials,
		sessions:    sessions,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Begin issues a handshake session and returns the authorization URL the
// user must visit, plus the state token identifying the session
func (s *HandshakeService) Begin(platform models.Platform, userID string) (string, string, error) {
	provider, ok := s.providers[platform]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}

	state := uuid.NewString()
	session := &models.HandshakeSession{
		State:    state,
		Platform: platform,
		UserID:   userID,
	}

	params := url.Values{}
	params.Set("client_id", provider.ClientID)
	params.Set("redirect_uri", provider.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(provider.Scopes, " "))
	params.Set("state", state)
	for k, v := range provider.ExtraAuthParams {
		params.Set(k, v)
	}

	if provider.UsePKCE {
		verifier, err := generateCodeVerifier()
		if err != nil {
			return "", "", fmt.Errorf("failed to generate code verifier: %w", err)
		}
		session.CodeVerifier = verifier
		params.Set("code_challenge", codeChallengeS256(verifier))
		params.Set("code_challenge_method", "S256")
	}

	s.sessions.Put(state, session)
	log.Printf("platform=%s: handshake issued for user %s", platform, userID)

	return provider.AuthorizeURL + "?" + params.Encode(), state, nil
}

// tokenResponse is the relevant subset of a provider token endpoint response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Complete consumes the handshake session for a state token, exchanges the
// authorization code at the provider's token endpoint, and persists the
// resulting credential. A session can be completed exactly once.
func (s *HandshakeService) Complete(ctx context.Context, state, code string) (*models.Credential, error) {
	session, ok := s.sessions.TakeOnce(state)
	if !ok {
		return nil, ErrInvalidState
	}

	provider, found := s.providers[session.Platform]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, session.Platform)
	}

	resp, err := s.exchangeCode(ctx, provider, code, session.CodeVerifier)
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{
		Platform:     session.Platform,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		expires := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		cred.ExpiresAt = &expires
	}

	if err := s.credentials.Store(ctx, cred); err != nil {
		return nil, err
	}

	log.Printf("platform=%s: handshake completed for user %s", session.Platform, session.UserID)

	return cred, nil
}

// exchangeCode posts the authorization code to the provider token endpoint
func (s *HandshakeService) exchangeCode(ctx context.Context, provider Provider, code, codeVerifier string) (*tokenResponse, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", provider.ClientID)
	data.Set("client_secret", provider.ClientSecret)
	data.Set("redirect_uri", provider.RedirectURI)
	data.Set("grant_type", "authorization_code")
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrExchangeFailed, string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrExchangeFailed)
	}

	return &token, nil
}

// generateCodeVerifier returns a high-entropy PKCE code verifier
func generateCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// codeChallengeS256 derives the S256 code challenge for a verifier
func codeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
