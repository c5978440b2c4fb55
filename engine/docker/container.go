package docker

import (
	"context"
	"io"

	dockertypes "github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	dockerslice "github.com/docker/docker/api/types/strslice"

	enginetypes "github.com/projecteru2/barge/engine/types"
)

// VirtualizationCreate create a container
func (e *Engine) VirtualizationCreate(ctx context.Context, opts *enginetypes.VirtualizationCreateOptions) (*enginetypes.VirtualizationCreated, error) {
	config := &dockercontainer.Config{
		Image:      opts.Image,
		Env:        opts.Env,
		WorkingDir: opts.WorkingDir,
		Labels:     opts.Labels,
	}
	if len(opts.Entrypoint) > 0 {
		config.Entrypoint = dockerslice.StrSlice(opts.Entrypoint)
	}
	if len(opts.Cmd) > 0 {
		config.Cmd = dockerslice.StrSlice(opts.Cmd)
	}
	hostConfig := &dockercontainer.HostConfig{}

	created, err := e.client.ContainerCreate(ctx, config, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return nil, err
	}
	return &enginetypes.VirtualizationCreated{ID: created.ID, Name: opts.Name}, nil
}

// VirtualizationCopyTo extracts archive into dir of a container
func (e *Engine) VirtualizationCopyTo(ctx context.Context, ID, dir string, archive io.Reader) error {
	return e.client.CopyToContainer(ctx, ID, dir, archive, dockertypes.CopyToContainerOptions{AllowOverwriteDirWithFile: true})
}

// VirtualizationStart start container
func (e *Engine) VirtualizationStart(ctx context.Context, ID string) error {
	return e.client.ContainerStart(ctx, ID, dockertypes.ContainerStartOptions{})
}

// VirtualizationRemove remove container
func (e *Engine) VirtualizationRemove(ctx context.Context, ID string, removeVolumes, force bool) error {
	return e.client.ContainerRemove(ctx, ID, dockertypes.ContainerRemoveOptions{RemoveVolumes: removeVolumes, Force: force})
}

// VirtualizationCopyFrom returns path of a container as a tar archive
func (e *Engine) VirtualizationCopyFrom(ctx context.Context, ID, path string) (io.ReadCloser, error) {
	resp, _, err := e.client.CopyFromContainer(ctx, ID, path)
	return resp, err
}
