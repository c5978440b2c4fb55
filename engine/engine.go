package engine

import (
	"context"
	"io"

	enginetypes "github.com/projecteru2/barge/engine/types"
)

// API define a remote engine
type API interface {
	Info(ctx context.Context) (*enginetypes.Info, error)
	Ping(ctx context.Context) error
	CloseConn() error

	Execute(ctx context.Context, ID string, config *enginetypes.ExecConfig) (execID string, output io.ReadCloser, err error)
	ExecExitCode(ctx context.Context, ID, execID string) (int, error)

	ImageList(ctx context.Context, opts *enginetypes.ImageListOptions) ([]*enginetypes.Image, error)
	ImageInspect(ctx context.Context, image string) (*enginetypes.Image, error)
	ImageRemove(ctx context.Context, image string, force, prune bool) ([]string, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePull(ctx context.Context, ref string) (io.ReadCloser, error)
	ImagePush(ctx context.Context, ref string, auth *enginetypes.RegistryAuth) (io.ReadCloser, error)
	ImageBuild(ctx context.Context, input io.Reader, opts *enginetypes.BuildOptions) (io.ReadCloser, error)
	ImageSave(ctx context.Context, refs []string) (io.ReadCloser, error)

	VirtualizationCreate(ctx context.Context, opts *enginetypes.VirtualizationCreateOptions) (*enginetypes.VirtualizationCreated, error)
	VirtualizationStart(ctx context.Context, ID string) error
	VirtualizationRemove(ctx context.Context, ID string, volumes, force bool) error
	// VirtualizationCopyTo extracts a tar archive into dir of the container
	VirtualizationCopyTo(ctx context.Context, ID, dir string, archive io.Reader) error
	// VirtualizationCopyFrom returns path of the container as a tar archive
	VirtualizationCopyFrom(ctx context.Context, ID, path string) (io.ReadCloser, error)
}
