package calcium

import (
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	enginemocks "github.com/projecteru2/barge/engine/mocks"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/project"
	"github.com/projecteru2/barge/source"
	"github.com/projecteru2/barge/types"
)

const webAndDB = `version: "2.1"
services:
  web:
    build: ./web
  db:
    image: postgres:15
`

func loadProject(t *testing.T, files map[string]string) *types.ComposeProject {
	p, err := project.Load(context.Background(), &types.ProjectOptions{Path: writeProject(t, files), Name: "app"})
	require.NoError(t, err)
	return p
}

func mockPull(e *enginemocks.API) {
	e.On("ImagePull", mock.Anything, "postgres:15").Return(func(context.Context, string) io.ReadCloser {
		return stream(`{"status":"Pulling from library/postgres","id":"15"}`, `{"status":"Digest: sha256:abc"}`)()
	}, nil)
	e.On("ImageTag", mock.Anything, "postgres:15", "app_db").Return(nil)
	e.On("ImageRemove", mock.Anything, "postgres:15", false, false).Return([]string{"postgres:15"}, nil)
}

func TestBuildProject(t *testing.T) {
	ctx := context.Background()
	p := loadProject(t, map[string]string{
		"docker-compose.yml": webAndDB,
		"web/Dockerfile":     "FROM node:18\nCOPY . /app\n",
		"web/index.js":       "console.log(1)\n",
		"notes.txt":          "outside every context\n",
	})
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, nil, nil, e)

	contexts := [][]string{}
	e.On("ImageBuild", mock.Anything, mock.Anything, mock.MatchedBy(func(opts *enginetypes.BuildOptions) bool {
		return opts.Tags[0] == "app_web" &&
			opts.Dockerfile == "Dockerfile" &&
			opts.Labels["io.barge.local.image"] == "1" &&
			opts.Labels["io.barge.local.service"] == "web"
	})).Return(func(_ context.Context, input io.Reader, _ *enginetypes.BuildOptions) io.ReadCloser {
		content, _ := io.ReadAll(input)
		names, _ := source.Names(content)
		contexts = append(contexts, names)
		return stream(`{"stream":"Step 1/2 : FROM node:18\n"}`, `{"stream":" ---> 0123456789ab\n"}`, `{"stream":"Successfully built 0123456789ab\n"}`)()
	}, nil)
	mockPull(e)
	e.On("ImageInspect", mock.Anything, mock.Anything).Return(&enginetypes.Image{Size: 42}, nil)

	sink := newRecorder()
	names := [][]string{}
	for i := 0; i < 2; i++ {
		images, err := c.BuildProject(ctx, e, p, &types.BuildOptions{Arch: "amd64", Sink: sink})
		require.NoError(t, err)
		require.Len(t, images, 2)
		run := []string{}
		for _, image := range images {
			assert.True(t, image.Successful)
			assert.EqualValues(t, 42, image.Props.Size)
			run = append(run, image.Name)
		}
		names = append(names, run)
	}
	assert.Equal(t, []string{"app_db", "app_web"}, names[0])
	assert.Equal(t, names[0], names[1])
	e.AssertNumberOfCalls(t, "ImageBuild", 2)
	e.AssertNumberOfCalls(t, "ImageTag", 2)

	require.Len(t, contexts, 2)
	assert.ElementsMatch(t, []string{"Dockerfile", "index.js"}, contexts[0])
	assert.Contains(t, sink.messages("web", types.EventLog), "Successfully built 0123456789ab")
	assert.Contains(t, sink.messages("db", types.EventProgress), "15: Pulling from library/postgres")
	assert.Contains(t, sink.messages("web", types.EventResolved)[0], string(types.ProjectTypeStandard))
}

func TestBuildProjectRegistrySecrets(t *testing.T) {
	ctx := context.Background()
	p := loadProject(t, map[string]string{
		"docker-compose.yml": webAndDB,
		"web/Dockerfile":     "FROM private.example.com/node:18\n",
	})
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, nil, nil, e)

	var secrets []byte
	e.On("ImageBuild", mock.Anything, mock.Anything, mock.Anything).Return(func(_ context.Context, input io.Reader, _ *enginetypes.BuildOptions) io.ReadCloser {
		content, _ := io.ReadAll(input)
		secrets, _, _ = source.ReadFile(content, source.RegistrySecretsPath)
		return stream(`{"stream":"Successfully built 0123456789ab\n"}`)()
	}, nil)
	mockPull(e)
	e.On("ImageInspect", mock.Anything, mock.Anything).Return(&enginetypes.Image{Size: 1}, nil)

	_, err := c.BuildProject(ctx, e, p, &types.BuildOptions{
		Arch:            "amd64",
		RegistrySecrets: map[string]types.AuthConfig{"private.example.com": {Username: "u", Password: "p"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"private.example.com":{"username":"u","password":"p"}}`, string(secrets))
}

func TestBuildProjectFailures(t *testing.T) {
	ctx := context.Background()
	p := loadProject(t, map[string]string{
		"docker-compose.yml": webAndDB,
		"web/Dockerfile":     "FROM node:18\nRUN false\n",
	})
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, nil, nil, e)
	e.On("ImageBuild", mock.Anything, mock.Anything, mock.Anything).Return(func(context.Context, io.Reader, *enginetypes.BuildOptions) io.ReadCloser {
		return stream(`{"stream":"Step 2/2 : RUN false\n"}`, `{"error":"The command '/bin/sh -c false' returned a non-zero code: 1"}`)()
	}, nil)
	mockPull(e)
	e.On("ImageInspect", mock.Anything, "app_db").Return(&enginetypes.Image{Size: 1}, nil)

	sink := newRecorder()
	images, err := c.BuildProject(ctx, e, p, &types.BuildOptions{Arch: "amd64", Sink: sink})
	require.Error(t, err)
	failures := &types.BuildFailures{}
	require.True(t, errors.As(err, &failures))
	assert.Equal(t, []string{"web"}, failures.Services())
	require.Len(t, images, 2)
	assert.True(t, images[0].Successful)
	assert.False(t, images[1].Successful)
	assert.Contains(t, images[1].Logs, "RUN false")
	assert.NotEmpty(t, sink.messages("web", types.EventError))
}

func TestBuildProjectSelection(t *testing.T) {
	ctx := context.Background()
	p := loadProject(t, map[string]string{
		"docker-compose.yml": webAndDB,
	})
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, nil, nil, e)

	_, err := c.BuildProject(ctx, e, p, &types.BuildOptions{Arch: "amd64", Services: []string{"cache"}})
	assert.True(t, errors.Is(err, types.ErrConflictingOptions))

	_, err = c.BuildProject(ctx, e, p, &types.BuildOptions{Arch: "amd64", Services: []string{"web"}})
	assert.True(t, errors.Is(err, types.ErrMissingDockerfile))

	mockPull(e)
	e.On("ImageInspect", mock.Anything, "app_db").Return(&enginetypes.Image{Size: 1}, nil)
	images, err := c.BuildProject(ctx, e, p, &types.BuildOptions{Arch: "amd64", Services: []string{"db"}})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "app_db", images[0].Name)
}

func TestBuildProjectNativeArm(t *testing.T) {
	ctx := context.Background()
	p := loadProject(t, map[string]string{
		"Dockerfile.template": "FROM balenalib/%%BALENA_MACHINE_NAME%%-debian\nRUN uname -m\n",
	})
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, nil, nil, e)
	e.On("Info", mock.Anything).Return(&enginetypes.Info{Architecture: "aarch64"}, nil)

	var dockerfile []byte
	var names []string
	e.On("ImageBuild", mock.Anything, mock.Anything, mock.Anything).Return(func(_ context.Context, input io.Reader, _ *enginetypes.BuildOptions) io.ReadCloser {
		content, _ := io.ReadAll(input)
		names, _ = source.Names(content)
		dockerfile, _, _ = source.ReadFile(content, "Dockerfile.template")
		return stream(`{"stream":"Successfully built 0123456789ab\n"}`)()
	}, nil)
	e.On("ImageInspect", mock.Anything, "app_main").Return(&enginetypes.Image{Size: 1}, nil)

	images, err := c.BuildProject(ctx, e, p, &types.BuildOptions{Arch: "aarch64", DeviceType: "raspberrypi4-64", Emulated: true})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, types.ProjectTypeTemplate, images[0].Props.ProjectType)
	assert.Equal(t, "FROM balenalib/raspberrypi4-64-debian\nRUN uname -m\n", string(dockerfile))
	assert.NotContains(t, names, ".balena/qemu-execve")
}

func TestBuildArgs(t *testing.T) {
	c := NewTestCluster(t, nil, nil, nil)
	c.config.Docker.BuildArgs = map[string]string{"A": "config", "B": "config", "C": "config"}
	task := &types.ResolvedTask{SplitTask: types.SplitTask{Args: map[string]string{"B": "compose", "C": "compose"}}}
	args := c.buildArgs(task, &types.BuildOptions{BuildArgs: map[string]string{"C": "cli"}})
	assert.Equal(t, map[string]string{"A": "config", "B": "compose", "C": "cli"}, args)
}
