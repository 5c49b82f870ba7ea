package models

import "time"

// Credential holds the OAuth tokens for one platform. Platform is the
// primary key: at most one live credential exists per platform.
type Credential struct {
	Platform     Platform   `json:"platform"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CredentialStatus is a read-only health projection of a stored credential.
// A missing credential reports Exists=false, Expired=true, NeedsRefresh=true.
type CredentialStatus struct {
	Exists       bool       `json:"exists"`
	Expired      bool       `json:"expired"`
	NeedsRefresh bool       `json:"needs_refresh"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// HandshakeSession links an issued authorization request to its eventual
// callback. Sessions are ephemeral and consumed at most once.
type HandshakeSession struct {
	State        string
	Platform     Platform
	UserID       string
	CodeVerifier string
	ExpiresAt    time.Time
}
