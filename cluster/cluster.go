package cluster

import (
	"context"

	"github.com/projecteru2/barge/engine"
	"github.com/projecteru2/barge/types"
)

// Cluster is the build and deploy pipeline
type Cluster interface {
	// build methods
	Build(ctx context.Context, project *types.ProjectOptions, opts *types.BuildOptions) ([]*types.BuiltImage, error)
	BuildProject(ctx context.Context, e engine.API, project *types.ComposeProject, opts *types.BuildOptions) ([]*types.BuiltImage, error)
	// cloud methods
	Deploy(ctx context.Context, opts *types.DeployOptions) (*types.Release, error)
	DeployProject(ctx context.Context, e engine.API, app *types.Application, project *types.ComposeProject, images []*types.BuiltImage, opts *types.DeployOptions) (*types.Release, error)
	// device methods
	DeployToDevice(ctx context.Context, opts *types.DeviceDeployOptions) error

	Finalizer()
}
