package docker

import (
	"context"
	"io"

	dockertypes "github.com/docker/docker/api/types"
	dockerfilters "github.com/docker/docker/api/types/filters"

	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
)

// ImageList list image
func (e *Engine) ImageList(ctx context.Context, opts *enginetypes.ImageListOptions) ([]*enginetypes.Image, error) {
	imgListFilter := dockerfilters.NewArgs()
	if opts.Reference != "" {
		imgListFilter.Add("reference", opts.Reference)
	}
	for k, v := range opts.Labels {
		if v == "" {
			imgListFilter.Add("label", k)
			continue
		}
		imgListFilter.Add("label", k+"="+v)
	}

	images, err := e.client.ImageList(ctx, dockertypes.ImageListOptions{Filters: imgListFilter})
	if err != nil {
		return nil, err
	}

	r := []*enginetypes.Image{}
	for _, image := range images {
		r = append(r, &enginetypes.Image{
			ID:     image.ID,
			Tags:   image.RepoTags,
			Size:   image.Size,
			Labels: image.Labels,
		})
	}
	return r, nil
}

// ImageInspect inspect a image
func (e *Engine) ImageInspect(ctx context.Context, image string) (*enginetypes.Image, error) {
	inspect, _, err := e.client.ImageInspectWithRaw(ctx, image)
	if err != nil {
		return nil, err
	}
	r := &enginetypes.Image{ID: inspect.ID, Tags: inspect.RepoTags, Size: inspect.Size}
	if inspect.Config != nil {
		r.Labels = inspect.Config.Labels
	}
	return r, nil
}

// ImageRemove remove a image
func (e *Engine) ImageRemove(ctx context.Context, image string, force, prune bool) ([]string, error) {
	opts := dockertypes.ImageRemoveOptions{
		Force:         force,
		PruneChildren: prune,
	}

	removed, err := e.client.ImageRemove(ctx, image, opts)
	r := []string{}
	if err != nil {
		return r, err
	}

	for _, item := range removed {
		if item.Untagged != "" {
			r = append(r, item.Untagged)
		}
		if item.Deleted != "" {
			r = append(r, item.Deleted)
		}
	}

	return r, nil
}

// ImageTag tag a image, an existing target is replaced
func (e *Engine) ImageTag(ctx context.Context, source, target string) error {
	return e.client.ImageTag(ctx, source, target)
}

// ImagePull pull Image
func (e *Engine) ImagePull(ctx context.Context, ref string) (io.ReadCloser, error) {
	auth, err := makeEncodedAuthConfigFromRemote(e.config.Docker.AuthConfigs, ref)
	if err != nil {
		return nil, err
	}
	return e.client.ImagePull(ctx, ref, dockertypes.ImagePullOptions{RegistryAuth: auth})
}

// ImagePush push image, auth overrides configured credentials
func (e *Engine) ImagePush(ctx context.Context, ref string, auth *enginetypes.RegistryAuth) (io.ReadCloser, error) {
	var encoded string
	var err error
	if auth != nil {
		encoded, err = encodeAuthToBase64(*auth)
	} else {
		encoded, err = makeEncodedAuthConfigFromRemote(e.config.Docker.AuthConfigs, ref)
	}
	if err != nil {
		return nil, err
	}
	return e.client.ImagePush(ctx, ref, dockertypes.ImagePushOptions{RegistryAuth: encoded})
}

// ImageBuild build image
func (e *Engine) ImageBuild(ctx context.Context, input io.Reader, opts *enginetypes.BuildOptions) (io.ReadCloser, error) {
	buildArgs := map[string]*string{}
	for k, v := range e.config.Docker.BuildArgs {
		v := v
		buildArgs[k] = &v
	}
	for k, v := range opts.BuildArgs {
		v := v
		buildArgs[k] = &v
	}
	buildOptions := dockertypes.ImageBuildOptions{
		Tags:           opts.Tags,
		Dockerfile:     opts.Dockerfile,
		BuildArgs:      buildArgs,
		CacheFrom:      opts.CacheFrom,
		Labels:         opts.Labels,
		Target:         opts.Target,
		SuppressOutput: false,
		NoCache:        opts.NoCache || e.config.Docker.NoCache,
		PullParent:     opts.Pull || e.config.Docker.PullParent,
		Remove:         true,
		ForceRemove:    true,
		AuthConfigs:    makeBuildAuthConfigs(e.config.Docker.AuthConfigs),
	}
	log.WithFunc("engine.docker.ImageBuild").WithField("tags", opts.Tags).Debugf(ctx, "build with dockerfile %s", opts.Dockerfile)
	resp, err := e.client.ImageBuild(ctx, input, buildOptions)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ImageSave exports images as a tar archive
func (e *Engine) ImageSave(ctx context.Context, refs []string) (io.ReadCloser, error) {
	return e.client.ImageSave(ctx, refs)
}
