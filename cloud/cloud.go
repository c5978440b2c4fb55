package cloud

import (
	"context"
	"io"

	"github.com/projecteru2/barge/types"
)

// API is the cloud side of a deploy
type API interface {
	GetApplication(ctx context.Context, fleet string) (*types.Application, error)
	GetDeviceTypeArch(ctx context.Context, deviceType string) (string, error)

	CreateRelease(ctx context.Context, app *types.Application, services []string, composition map[string]any, commit string) (*types.ReleaseCreated, error)
	// PatchRelease is tried once, it runs in cleanup paths
	PatchRelease(ctx context.Context, releaseID int64, patch map[string]any) error
	CancelRelease(ctx context.Context, releaseID int64) error
	UpdateServiceImage(ctx context.Context, imageID int64, patch map[string]any) error

	// PreviousRepositories lists the repos of the last successful release of an application
	PreviousRepositories(ctx context.Context, appID int64) ([]string, error)
	AuthorizePush(ctx context.Context, registry string, repos, previousRepos []string) (string, error)

	UploadLegacyImage(ctx context.Context, app *types.Application, image io.Reader) (string, error)
	UploadLegacyLogs(ctx context.Context, app *types.Application, buildID, logs string) error
}
