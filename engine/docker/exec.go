package docker

import (
	"context"
	"io"

	dockertypes "github.com/docker/docker/api/types"

	enginetypes "github.com/projecteru2/barge/engine/types"
)

// Execute run a command in a container, output merges stdout and stderr
func (e *Engine) Execute(ctx context.Context, ID string, config *enginetypes.ExecConfig) (string, io.ReadCloser, error) {
	execConfig := dockertypes.ExecConfig{
		User:         config.User,
		Cmd:          config.Cmd,
		WorkingDir:   config.WorkingDir,
		Env:          config.Env,
		AttachStderr: true,
		AttachStdout: true,
	}

	idResp, err := e.client.ContainerExecCreate(ctx, ID, execConfig)
	if err != nil {
		return "", nil, err
	}
	resp, err := e.client.ContainerExecAttach(ctx, idResp.ID, dockertypes.ExecStartCheck{})
	if err != nil {
		return "", nil, err
	}
	return idResp.ID, mergeHijacked(resp), nil
}

// ExecExitCode get exec return code
func (e *Engine) ExecExitCode(ctx context.Context, _, execID string) (int, error) {
	r, err := e.client.ContainerExecInspect(ctx, execID)
	if err != nil {
		return -1, err
	}
	return r.ExitCode, nil
}
