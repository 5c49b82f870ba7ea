package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"publish-queue/internal/models"
	"publish-queue/internal/service"
)

// OAuthRefresher builds a RefreshFunc that performs the standard
// refresh_token grant against the provider's token endpoint. Providers
// that rotate refresh tokens return a new one; otherwise the old token
// is carried forward.
func OAuthRefresher(provider service.Provider) service.RefreshFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, old *models.Credential) (*models.Credential, error) {
		data := url.Values{}
		data.Set("grant_type", "refresh_token")
		data.Set("refresh_token", old.RefreshToken)
		data.Set("client_id", provider.ClientID)
		data.Set("client_secret", provider.ClientSecret)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, provider.TokenURL, strings.NewReader(data.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("refresh failed: %s", string(body))
		}

		var token struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int    `json:"expires_in"`
		}
		if err := json.Unmarshal(body, &token); err != nil {
			return nil, err
		}
		if token.AccessToken == "" {
			return nil, fmt.Errorf("refresh response had no access token")
		}

		fresh := &models.Credential{
			Platform:     old.Platform,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
		}
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = old.RefreshToken
		}
		if token.ExpiresIn > 0 {
			expires := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
			fresh.ExpiresAt = &expires
		}

		return fresh, nil
	}
}
