package engine

import (
	"context"
	"io"
	"time"

	enginetypes "github.com/projecteru2/barge/engine/types"
)

// TimeoutAPI wraps engine implementation with context.WithTimeout.
// Streaming calls are bounded by the caller only.
type TimeoutAPI struct {
	api     API
	timeout time.Duration
}

// WithGlobalTimeout .
func WithGlobalTimeout(api API, timeout time.Duration) API {
	return &TimeoutAPI{
		api:     api,
		timeout: timeout,
	}
}

// Info .
func (a *TimeoutAPI) Info(ctx context.Context) (*enginetypes.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.Info(ctx)
}

// Ping .
func (a *TimeoutAPI) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.Ping(ctx)
}

// CloseConn .
func (a *TimeoutAPI) CloseConn() error {
	return a.api.CloseConn()
}

// Execute .
func (a *TimeoutAPI) Execute(ctx context.Context, ID string, config *enginetypes.ExecConfig) (string, io.ReadCloser, error) {
	return a.api.Execute(ctx, ID, config)
}

// ExecExitCode .
func (a *TimeoutAPI) ExecExitCode(ctx context.Context, ID, execID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.ExecExitCode(ctx, ID, execID)
}

// ImageList .
func (a *TimeoutAPI) ImageList(ctx context.Context, opts *enginetypes.ImageListOptions) ([]*enginetypes.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.ImageList(ctx, opts)
}

// ImageInspect .
func (a *TimeoutAPI) ImageInspect(ctx context.Context, image string) (*enginetypes.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.ImageInspect(ctx, image)
}

// ImageRemove .
func (a *TimeoutAPI) ImageRemove(ctx context.Context, image string, force, prune bool) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.ImageRemove(ctx, image, force, prune)
}

// ImageTag .
func (a *TimeoutAPI) ImageTag(ctx context.Context, source, target string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.ImageTag(ctx, source, target)
}

// ImagePull .
func (a *TimeoutAPI) ImagePull(ctx context.Context, ref string) (io.ReadCloser, error) {
	return a.api.ImagePull(ctx, ref)
}

// ImagePush .
func (a *TimeoutAPI) ImagePush(ctx context.Context, ref string, auth *enginetypes.RegistryAuth) (io.ReadCloser, error) {
	return a.api.ImagePush(ctx, ref, auth)
}

// ImageBuild .
func (a *TimeoutAPI) ImageBuild(ctx context.Context, input io.Reader, opts *enginetypes.BuildOptions) (io.ReadCloser, error) {
	return a.api.ImageBuild(ctx, input, opts)
}

// ImageSave .
func (a *TimeoutAPI) ImageSave(ctx context.Context, refs []string) (io.ReadCloser, error) {
	return a.api.ImageSave(ctx, refs)
}

// VirtualizationCreate .
func (a *TimeoutAPI) VirtualizationCreate(ctx context.Context, opts *enginetypes.VirtualizationCreateOptions) (*enginetypes.VirtualizationCreated, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.VirtualizationCreate(ctx, opts)
}

// VirtualizationStart .
func (a *TimeoutAPI) VirtualizationStart(ctx context.Context, ID string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.VirtualizationStart(ctx, ID)
}

// VirtualizationRemove .
func (a *TimeoutAPI) VirtualizationRemove(ctx context.Context, ID string, volumes, force bool) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.VirtualizationRemove(ctx, ID, volumes, force)
}

// VirtualizationCopyTo .
func (a *TimeoutAPI) VirtualizationCopyTo(ctx context.Context, ID, dir string, archive io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.api.VirtualizationCopyTo(ctx, ID, dir, archive)
}

// VirtualizationCopyFrom .
func (a *TimeoutAPI) VirtualizationCopyFrom(ctx context.Context, ID, path string) (io.ReadCloser, error) {
	return a.api.VirtualizationCopyFrom(ctx, ID, path)
}
