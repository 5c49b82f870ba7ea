package service

import (
	"context"
	"log"
	"time"

	"publish-queue/internal/metrics"
	"publish-queue/internal/models"
	"publish-queue/internal/repository"
)

// RefreshBuffer is the lead time before true expiry at which a credential
// is treated as needing refresh. Refreshing early trades a few unnecessary
// refreshes for never sending a request with a token about to lapse.
const RefreshBuffer = 5 * time.Minute

// RefreshFunc exchanges an old credential for a fresh one against the
// platform's token endpoint. A nil result or an error both mean the
// credential could not be refreshed.
type RefreshFunc func(ctx context.Context, old *models.Credential) (*models.Credential, error)

// CredentialService handles credential lifecycle logic
type CredentialService struct {
	repo    repository.CredentialRepository
	metrics *metrics.Metrics
}

// NewCredentialService creates a new credential service
func NewCredentialService(repo repository.CredentialRepository, metrics *metrics.Metrics) *CredentialService {
	return &CredentialService{
		repo:    repo,
		metrics: metrics,
	}
}

// NeedsRefresh reports whether the credential's expiry falls within the
// refresh buffer. A credential with no expiry never needs refresh.
func (s *CredentialService) NeedsRefresh(cred *models.Credential) bool {
	if cred.ExpiresAt == nil {
		return false
	}
	return time.Until(*cred.ExpiresAt) < RefreshBuffer
}

// IsExpired reports whether the credential's expiry has passed. A
// credential with no expiry is assumed valid until the remote API rejects it.
func (s *CredentialService) IsExpired(cred *models.Credential) bool {
	if cred.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*cred.ExpiresAt)
}

// GetValid returns a usable credential for the platform, refreshing it
// first when it is expired or inside the refresh buffer. Returns nil when
// no credential is stored, when no refresh is possible (no refresh token
// or no refresh function), or when the refresh fails; the caller must
// re-authenticate. Refresh failures are never retried within this call.
func (s *CredentialService) GetValid(ctx context.Context, platform models.Platform, refreshFn RefreshFunc) (*models.Credential, error) {
	cred, err := s.repo.GetCredential(ctx, platform)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, nil
	}

	if !s.IsExpired(cred) && !s.NeedsRefresh(cred) {
		return cred, nil
	}

	if cred.RefreshToken == "" || refreshFn == nil {
		log.Printf("platform=%s: credential stale and not refreshable", platform)
		return nil, nil
	}

	fresh, err := refreshFn(ctx, cred)
	if err != nil || fresh == nil {
		log.Printf("platform=%s: credential refresh failed: %v", platform, err)
		return nil, nil
	}

	fresh.Platform = platform
	if err := s.repo.UpsertCredential(ctx, fresh); err != nil {
		return nil, err
	}

	s.metrics.IncrementTokenRefreshes()
	log.Printf("platform=%s: credential refreshed", platform)

	return fresh, nil
}

// Store upserts the credential, replacing any prior record for its platform
func (s *CredentialService) Store(ctx context.Context, cred *models.Credential) error {
	return s.repo.UpsertCredential(ctx, cred)
}

// Get returns the stored credential for the platform, or nil
func (s *CredentialService) Get(ctx context.Context, platform models.Platform) (*models.Credential, error) {
	return s.repo.GetCredential(ctx, platform)
}

// Remove deletes the platform's credential, reporting whether one existed
func (s *CredentialService) Remove(ctx context.Context, platform models.Platform) (bool, error) {
	return s.repo.DeleteCredential(ctx, platform)
}

// Status reports the credential's health for the platform. A missing
// credential reads as expired and needing refresh so operators treat
// "unknown" as "needs attention".
func (s *CredentialService) Status(ctx context.Context, platform models.Platform) (*models.CredentialStatus, error) {
	cred, err := s.repo.GetCredential(ctx, platform)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return &models.CredentialStatus{Exists: false, Expired: true, NeedsRefresh: true}, nil
	}

	return &models.CredentialStatus{
		Exists:       true,
		Expired:      s.IsExpired(cred),
		NeedsRefresh: s.NeedsRefresh(cred),
		ExpiresAt:    cred.ExpiresAt,
	}, nil
}
