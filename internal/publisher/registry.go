package publisher

import (
	"context"
	"fmt"

	"publish-queue/internal/models"
	"publish-queue/internal/service"
)

// PublishFunc performs one platform action using a valid credential. The
// concrete HTTP calls against each platform live outside this module and
// are registered by the embedding program.
type PublishFunc func(ctx context.Context, cred *models.Credential, payload map[string]interface{}, filePath string) (*models.ExecuteResult, error)

// Registry routes platform/action pairs to registered publish functions
// and gates every call behind a valid credential. It implements
// service.Executor. Registration must finish before dispatching starts;
// the maps are read-only afterwards.
type Registry struct {
	credentials *service.CredentialService
	publishers  map[string]PublishFunc
	refreshers  map[models.Platform]service.RefreshFunc
}

// NewRegistry creates an empty publisher registry
func NewRegistry(credentials *service.CredentialService) *Registry {
	return &Registry{
		credentials: credentials,
		publishers:  make(map[string]PublishFunc),
		refreshers:  make(map[models.Platform]service.RefreshFunc),
	}
}

func key(platform models.Platform, action models.Action) string {
	return string(platform) + ":" + string(action)
}

// Register binds a publish function to a platform/action pair
func (r *Registry) Register(platform models.Platform, action models.Action, fn PublishFunc) {
	r.publishers[key(platform, action)] = fn
}

// RegisterRefresher binds the platform's token refresh function, used to
// transparently refresh a near-expiry credential before publishing
func (r *Registry) RegisterRefresher(platform models.Platform, fn service.RefreshFunc) {
	r.refreshers[platform] = fn
}

// Execute looks up the publish function for the job's platform and action,
// obtains a valid credential, and runs the publish. An unregistered pair
// yields a failure result; a missing or unrefreshable credential yields a
// NeedsAuth result so the job's failure points at re-authentication.
func (r *Registry) Execute(ctx context.Context, platform models.Platform, action models.Action, payload map[string]interface{}, filePath string) (*models.ExecuteResult, error) {
	fn, ok := r.publishers[key(platform, action)]
	if !ok {
		return &models.ExecuteResult{
			Platform: string(platform),
			Action:   string(action),
			Error:    fmt.Sprintf("no publisher registered for %s:%s", platform, action),
		}, nil
	}

	cred, err := r.credentials.GetValid(ctx, platform, r.refreshers[platform])
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return &models.ExecuteResult{
			Platform:  string(platform),
			Action:    string(action),
			NeedsAuth: true,
		}, nil
	}

	return fn(ctx, cred, payload, filePath)
}
