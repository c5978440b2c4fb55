package fakeengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/go-units"
	"github.com/sanity-io/litter"
	mock "github.com/stretchr/testify/mock"

	"github.com/projecteru2/barge/engine"
	enginemocks "github.com/projecteru2/barge/engine/mocks"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

const (
	// PrefixKey indicate key prefix
	PrefixKey = "mock://"
)

// MakeClient make a mock client, builds and pushes succeed without doing anything
func MakeClient(ctx context.Context, _ types.Config, endpoint, _, _, _ string) (engine.API, error) {
	logger := log.WithFunc("fakeengine.MakeClient").WithField("endpoint", endpoint)
	arch := strings.TrimPrefix(endpoint, PrefixKey)
	if arch == "" {
		arch = "x86_64"
	}
	e := &enginemocks.API{}
	// info
	e.On("Info", mock.Anything).Return(&enginetypes.Info{ID: "fake", OperatingSystem: "fake engine", Architecture: arch, NCPU: 100, MemTotal: units.GiB * 100}, nil)
	e.On("Ping", mock.Anything).Return(nil)
	e.On("CloseConn").Return(nil)
	// exec
	e.On("Execute", mock.Anything, mock.Anything, mock.Anything).Return(
		func(context.Context, string, *enginetypes.ExecConfig) string {
			return utils.RandomHex()
		},
		func(_ context.Context, _ string, config *enginetypes.ExecConfig) io.ReadCloser {
			return io.NopCloser(bytes.NewBufferString(strings.Join(config.Cmd, " ") + "\n"))
		},
		nil,
	)
	e.On("ExecExitCode", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	// image
	e.On("ImageList", mock.Anything, mock.Anything).Return([]*enginetypes.Image{}, nil)
	e.On("ImageInspect", mock.Anything, mock.Anything).Return(func(_ context.Context, image string) *enginetypes.Image {
		return &enginetypes.Image{ID: "sha256:" + utils.SHA256(image), Tags: []string{image}, Size: 10 * units.MiB}
	}, nil)
	e.On("ImageRemove", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(func(_ context.Context, image string, _, _ bool) []string {
		return []string{image}
	}, nil)
	e.On("ImageTag", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	e.On("ImagePull", mock.Anything, mock.Anything).Return(func(_ context.Context, ref string) io.ReadCloser {
		return io.NopCloser(bytes.NewBufferString(fmt.Sprintf("{\"status\":\"Pulling from %s\"}\n{\"status\":\"Download complete\"}\n", ref)))
	}, nil)
	e.On("ImagePush", mock.Anything, mock.Anything, mock.Anything).Return(func(_ context.Context, ref string, _ *enginetypes.RegistryAuth) io.ReadCloser {
		return io.NopCloser(bytes.NewBufferString(fmt.Sprintf("{\"status\":\"Pushing %s\"}\n{\"aux\":{\"Digest\":\"sha256:%s\",\"Size\":1024}}\n", ref, utils.SHA256(ref))))
	}, nil)
	e.On("ImageBuild", mock.Anything, mock.Anything, mock.Anything).Return(func(_ context.Context, input io.Reader, opts *enginetypes.BuildOptions) io.ReadCloser {
		n, _ := io.Copy(io.Discard, input)
		logger.Debugf(ctx, "fake build of %d bytes context: %s", n, litter.Sdump(opts))
		return io.NopCloser(bytes.NewBufferString(fmt.Sprintf("{\"stream\":\"Step 1/1 : FROM scratch\\n\"}\n{\"stream\":\" ---> %s\\n\"}\n{\"stream\":\"Successfully built %s\\n\"}\n", utils.RandomHex()[:12], utils.RandomHex()[:12])))
	}, nil)
	e.On("ImageSave", mock.Anything, mock.Anything).Return(io.NopCloser(bytes.NewBufferString("image archive")), nil)
	// virtualization
	e.On("VirtualizationCreate", mock.Anything, mock.Anything).Return(func(_ context.Context, opts *enginetypes.VirtualizationCreateOptions) *enginetypes.VirtualizationCreated {
		return &enginetypes.VirtualizationCreated{ID: utils.RandomHex(), Name: opts.Name}
	}, nil)
	e.On("VirtualizationCopyTo", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	e.On("VirtualizationStart", mock.Anything, mock.Anything).Return(nil)
	e.On("VirtualizationRemove", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	e.On("VirtualizationCopyFrom", mock.Anything, mock.Anything, mock.Anything).Return(io.NopCloser(bytes.NewBuffer(nil)), nil)
	return e, nil
}
