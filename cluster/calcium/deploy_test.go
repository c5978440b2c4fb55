package calcium

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cloudmocks "github.com/projecteru2/barge/cloud/mocks"
	enginemocks "github.com/projecteru2/barge/engine/mocks"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/types"
)

const registry = "registry2.balena-cloud.com"

func testApp() *types.Application {
	return &types.Application{ID: 7, Name: "fleet", Slug: "gh_user/fleet", Owner: "gh_user", DeviceType: "raspberrypi4-64", Arch: "aarch64"}
}

func testComposeProject(services ...string) *types.ComposeProject {
	p := &types.ComposeProject{Name: "app", Composition: &types.Composition{Version: "2.1", Services: map[string]*types.Service{}}}
	for _, name := range services {
		p.Composition.Services[name] = &types.Service{Name: name, Build: &types.BuildSpec{Context: name}}
		p.Descriptors = append(p.Descriptors, types.ImageDescriptor{ServiceName: name, Build: &types.BuildSpec{Context: name}, Tag: "app_" + name})
	}
	return p
}

func testImages(services ...string) []*types.BuiltImage {
	images := []*types.BuiltImage{}
	for _, name := range services {
		images = append(images, &types.BuiltImage{
			ServiceName: name,
			Name:        "app_" + name,
			Logs:        "Successfully built " + name,
			Successful:  true,
			Props:       types.ImageProps{Dockerfile: "FROM scratch\n", ProjectType: types.ProjectTypeStandard, Size: 100},
		})
	}
	return images
}

func testRelease(services ...string) *types.ReleaseCreated {
	created := &types.ReleaseCreated{
		Release:       &types.Release{ID: 1, Status: types.StatusRunning, Commit: "abc"},
		ServiceImages: map[string]*types.ServiceImage{},
	}
	for i, name := range services {
		created.ServiceImages[name] = &types.ServiceImage{
			ID:                      int64(10 + i),
			IsStoredAtImageLocation: fmt.Sprintf("%s/v2/%s", registry, name),
		}
	}
	return created
}

func pushStream(ref string) io.ReadCloser {
	return io.NopCloser(bytes.NewBufferString(fmt.Sprintf("{\"status\":\"The push refers to repository [%s]\"}\n{\"aux\":{\"Tag\":\"latest\",\"Digest\":\"sha256:%x\",\"Size\":1024}}\n", ref, len(ref))))
}

func mockReleaseStart(api *cloudmocks.API, services ...string) {
	api.On("CreateRelease", mock.Anything, testApp(), services, mock.Anything, mock.MatchedBy(func(commit string) bool { return len(commit) == 32 })).Return(testRelease(services...), nil).Once()
	repos := []string{}
	for _, name := range services {
		repos = append(repos, "v2/"+name)
	}
	api.On("PreviousRepositories", mock.Anything, int64(7)).Return([]string{"v2/old"}, nil).Once()
	api.On("AuthorizePush", mock.Anything, registry, repos, []string{"v2/old"}).Return("token", nil).Once()
}

func patchStatus(status types.ReleaseStatus) any {
	return mock.MatchedBy(func(patch map[string]any) bool {
		return patch["status"] == status && patch["end_timestamp"] != nil
	})
}

func TestDeployProject(t *testing.T) {
	ctx := context.Background()
	api := cloudmocks.NewAPI(t)
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, e)

	mockReleaseStart(api, "db", "web")
	for _, name := range []string{"db", "web"} {
		ref := fmt.Sprintf("%s/v2/%s:latest", registry, name)
		e.On("ImageTag", mock.Anything, "app_"+name, ref).Return(nil).Once()
		e.On("ImagePush", mock.Anything, ref, &enginetypes.RegistryAuth{RegistryToken: "token", ServerAddress: registry}).Return(pushStream(ref), nil).Once()
		e.On("ImageRemove", mock.Anything, ref, false, false).Return([]string{ref}, nil).Once()
	}
	api.On("UpdateServiceImage", mock.Anything, mock.Anything, mock.MatchedBy(func(patch map[string]any) bool {
		return patch["status"] == types.StatusSuccess &&
			patch["content_hash"] != "" &&
			patch["image_size"] == int64(100) &&
			patch["build_log"] != nil &&
			patch["project_type"] == types.ProjectTypeStandard
	})).Return(nil).Twice()
	api.On("PatchRelease", mock.Anything, int64(1), patchStatus(types.StatusSuccess)).Return(nil).Once()

	sink := newRecorder()
	release, err := c.DeployProject(ctx, e, testApp(), testComposeProject("db", "web"), testImages("db", "web"), &types.DeployOptions{Fleet: "fleet", Sink: sink})
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, release.Status)
	assert.NotNil(t, release.EndTimestamp)
	assert.NotEmpty(t, sink.messages("web", types.EventStatus))
}

func TestDeployProjectPushFailure(t *testing.T) {
	ctx := context.Background()
	api := cloudmocks.NewAPI(t)
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, e)

	services := []string{"a", "b", "c"}
	mockReleaseStart(api, services...)
	e.On("ImageTag", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	e.On("ImageRemove", mock.Anything, mock.Anything, false, false).Return([]string{}, nil)
	aRef := registry + "/v2/a:latest"
	e.On("ImagePush", mock.Anything, aRef, mock.Anything).Return(pushStream(aRef), nil).Once()
	e.On("ImagePush", mock.Anything, registry+"/v2/b:latest", mock.Anything).Return(io.NopCloser(bytes.NewBufferString(`{"error":"denied: requested access to the resource is denied"}`)), nil).Once()
	api.On("UpdateServiceImage", mock.Anything, int64(10), mock.MatchedBy(func(patch map[string]any) bool {
		return patch["status"] == types.StatusSuccess
	})).Return(nil).Once()
	api.On("UpdateServiceImage", mock.Anything, int64(11), mock.MatchedBy(func(patch map[string]any) bool {
		return patch["status"] == types.StatusFailed && patch["error_message"] != ""
	})).Return(nil).Once()
	api.On("PatchRelease", mock.Anything, int64(1), patchStatus(types.StatusFailed)).Return(nil).Once()

	release, err := c.DeployProject(ctx, e, testApp(), testComposeProject(services...), testImages(services...), &types.DeployOptions{Fleet: "fleet"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrPushFailed))
	assert.Equal(t, types.StatusFailed, release.Status)
	e.AssertNumberOfCalls(t, "ImageTag", 3)
	e.AssertNumberOfCalls(t, "ImagePush", 2)
	e.AssertNumberOfCalls(t, "ImageRemove", 3)
}

func TestDeployProjectPatchFailure(t *testing.T) {
	ctx := context.Background()
	api := cloudmocks.NewAPI(t)
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, e)

	mockReleaseStart(api, "web")
	ref := registry + "/v2/web:latest"
	e.On("ImageTag", mock.Anything, "app_web", ref).Return(nil)
	e.On("ImagePush", mock.Anything, ref, mock.Anything).Return(pushStream(ref), nil)
	e.On("ImageRemove", mock.Anything, ref, false, false).Return([]string{ref}, nil).Once()
	api.On("UpdateServiceImage", mock.Anything, int64(10), mock.Anything).Return(nil)
	api.On("PatchRelease", mock.Anything, int64(1), patchStatus(types.StatusSuccess)).Return(types.ErrAPIRequest).Once()

	_, err := c.DeployProject(ctx, e, testApp(), testComposeProject("web"), testImages("web"), &types.DeployOptions{Fleet: "fleet"})
	assert.True(t, errors.Is(err, types.ErrAPIRequest))
}

func TestDeployProjectInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := cloudmocks.NewAPI(t)
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, e)

	mockReleaseStart(api, "web")
	ref := registry + "/v2/web:latest"
	e.On("ImageTag", mock.Anything, "app_web", ref).Return(nil)
	e.On("ImagePush", mock.Anything, ref, mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled)
	e.On("ImageRemove", mock.Anything, ref, false, false).Return([]string{ref}, nil).Once()
	api.On("CancelRelease", mock.Anything, int64(1)).Return(nil).Once()

	release, err := c.DeployProject(ctx, e, testApp(), testComposeProject("web"), testImages("web"), &types.DeployOptions{Fleet: "fleet"})
	assert.True(t, errors.Is(err, types.ErrInterrupted))
	assert.Equal(t, types.StatusCancelled, release.Status)
	api.AssertNotCalled(t, "PatchRelease", mock.Anything, mock.Anything, mock.Anything)
	api.AssertNotCalled(t, "UpdateServiceImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeployProjectBadLocation(t *testing.T) {
	ctx := context.Background()
	api := cloudmocks.NewAPI(t)
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, e)

	created := testRelease("web")
	created.ServiceImages["web"].IsStoredAtImageLocation = "Not A Location"
	api.On("CreateRelease", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(created, nil)
	api.On("PatchRelease", mock.Anything, int64(1), patchStatus(types.StatusFailed)).Return(nil).Once()

	_, err := c.DeployProject(ctx, e, testApp(), testComposeProject("web"), testImages("web"), &types.DeployOptions{Fleet: "fleet"})
	assert.True(t, errors.Is(err, types.ErrBadImageLocation))
	e.AssertNotCalled(t, "ImageTag", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeployProjectPartialRelease(t *testing.T) {
	ctx := context.Background()
	api := cloudmocks.NewAPI(t)
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, e)

	created := &types.ReleaseCreated{Release: &types.Release{ID: 7, Status: types.StatusRunning}}
	api.On("CreateRelease", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(created, errors.Wrap(types.ErrAPIRequest, "image create")).Once()
	api.On("PatchRelease", mock.Anything, int64(7), patchStatus(types.StatusFailed)).Return(nil).Once()

	release, err := c.DeployProject(ctx, e, testApp(), testComposeProject("web"), testImages("web"), &types.DeployOptions{Fleet: "fleet"})
	assert.True(t, errors.Is(err, types.ErrAPIRequest))
	require.NotNil(t, release)
	assert.Equal(t, types.StatusFailed, release.Status)
	e.AssertNotCalled(t, "ImageTag", mock.Anything, mock.Anything, mock.Anything)

	// nothing to finalize when no release was created
	api.On("CreateRelease", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, types.ErrAPIRequest).Once()
	release, err = c.DeployProject(ctx, e, testApp(), testComposeProject("web"), testImages("web"), &types.DeployOptions{Fleet: "fleet"})
	assert.True(t, errors.Is(err, types.ErrAPIRequest))
	assert.Nil(t, release)
	api.AssertNumberOfCalls(t, "PatchRelease", 1)
}

func TestDeployProjectUnbuilt(t *testing.T) {
	api := cloudmocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, nil)
	images := testImages("web")
	images[0].Successful = false
	_, err := c.DeployProject(context.Background(), nil, testApp(), testComposeProject("web"), images, &types.DeployOptions{Fleet: "fleet"})
	assert.True(t, errors.Is(err, types.ErrNoImage))
}

func TestParseImageLocation(t *testing.T) {
	tagged, err := parseImageLocation(registry + "/v2/0123abcd:1")
	require.NoError(t, err)
	assert.Equal(t, registry, tagged.Registry)
	assert.Equal(t, "v2/0123abcd", tagged.Repo)
	assert.Equal(t, "1", tagged.Tag)
	assert.Equal(t, registry+"/v2/0123abcd:1", tagged.Ref())

	tagged, err = parseImageLocation(registry + "/v2/0123abcd")
	require.NoError(t, err)
	assert.Equal(t, "latest", tagged.Tag)

	_, err = parseImageLocation("UPPER/case")
	assert.True(t, errors.Is(err, types.ErrBadImageLocation))
}

func TestDeploy(t *testing.T) {
	ctx := context.Background()
	api := cloudmocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, nil)
	dir := writeProject(t, map[string]string{"Dockerfile": "FROM alpine\nCMD [\"true\"]\n"})

	app := testApp()
	app.Arch, app.DeviceType = "amd64", "intel-nuc"
	api.On("GetApplication", mock.Anything, "gh_user/fleet").Return(app, nil).Once()
	api.On("CreateRelease", mock.Anything, app, []string{"main"}, mock.MatchedBy(func(composition map[string]any) bool {
		services, ok := composition["services"].(map[string]any)
		return ok && services["main"] != nil
	}), mock.Anything).Return(testRelease("main"), nil).Once()
	api.On("PreviousRepositories", mock.Anything, int64(7)).Return(nil, types.ErrAPIRequest).Once()
	api.On("AuthorizePush", mock.Anything, registry, []string{"v2/main"}, []string(nil)).Return("token", nil).Once()
	api.On("UpdateServiceImage", mock.Anything, int64(10), mock.MatchedBy(func(patch map[string]any) bool {
		_, hasLog := patch["build_log"]
		return patch["status"] == types.StatusSuccess && !hasLog
	})).Return(nil).Once()
	api.On("PatchRelease", mock.Anything, int64(1), patchStatus(types.StatusSuccess)).Return(nil).Once()

	release, err := c.Deploy(ctx, &types.DeployOptions{
		Fleet:         "gh_user/fleet",
		Project:       types.ProjectOptions{Path: dir, Name: "app"},
		ForceBuild:    true,
		SkipLogUpload: true,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, release.Status)
}

func TestDeployLegacy(t *testing.T) {
	ctx := context.Background()
	api := cloudmocks.NewAPI(t)
	e := enginemocks.NewAPI(t)
	c := NewTestCluster(t, api, nil, e)
	app := testApp()
	app.IsLegacy = true

	_, err := c.deployLegacy(ctx, e, app, testImages("a", "b"), &types.DeployOptions{Sink: types.DiscardSink})
	assert.True(t, errors.Is(err, types.ErrNotSupport))

	e.On("ImageSave", mock.Anything, []string{"app_main"}).Return(io.NopCloser(bytes.NewBufferString("archive")), nil).Once()
	api.On("UploadLegacyImage", mock.Anything, app, mock.Anything).Return("build-1", nil).Once()
	api.On("UploadLegacyLogs", mock.Anything, app, "build-1", "Successfully built main").Return(nil).Once()

	release, err := c.deployLegacy(ctx, e, app, testImages("main"), &types.DeployOptions{Sink: types.DiscardSink})
	require.NoError(t, err)
	assert.Equal(t, "build-1", release.Commit)
	assert.Equal(t, types.StatusSuccess, release.Status)
}
