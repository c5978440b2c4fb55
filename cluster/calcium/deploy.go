package calcium

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/distribution/reference"

	"github.com/projecteru2/barge/engine"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/project"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

// maxErrorLines bounds the error text stored on a failed service image
const maxErrorLines = 20

// Deploy builds a project for a fleet when needed and creates a release of it
func (c *Calcium) Deploy(ctx context.Context, opts *types.DeployOptions) (*types.Release, error) {
	logger := log.WithFunc("calcium.Deploy").WithField("fleet", opts.Fleet)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	app, err := c.cloud.GetApplication(ctx, opts.Fleet)
	if err != nil {
		return nil, err
	}
	p, err := project.Load(ctx, &opts.Project)
	if err != nil {
		return nil, err
	}
	e, err := c.GetEngine(ctx, c.config.Docker.Endpoint)
	if err != nil {
		return nil, err
	}

	buildOpts := opts.Build
	buildOpts.Arch, buildOpts.DeviceType, buildOpts.Sink = app.Arch, app.DeviceType, opts.Sink
	images, err := c.prepareImages(ctx, e, p, &buildOpts, opts.ForceBuild)
	if err != nil {
		return nil, err
	}

	if app.IsLegacy {
		logger.Infof(ctx, "fleet %s uses the legacy builder", app.Slug)
		return c.deployLegacy(ctx, e, app, images, opts)
	}
	return c.DeployProject(ctx, e, app, p, images, opts)
}

// prepareImages reuses images already present on e unless a build is forced
func (c *Calcium) prepareImages(ctx context.Context, e engine.API, p *types.ComposeProject, opts *types.BuildOptions, force bool) ([]*types.BuiltImage, error) {
	logger := log.WithFunc("calcium.prepareImages").WithField("project", p.Name)
	if !force {
		images := []*types.BuiltImage{}
		for _, d := range p.Descriptors {
			inspected, err := e.ImageInspect(ctx, d.Tag)
			if err != nil {
				logger.Debugf(ctx, "%s is not built yet: %+v", d.Tag, err)
				break
			}
			now := time.Now()
			images = append(images, &types.BuiltImage{
				ServiceName: d.ServiceName,
				Name:        d.Tag,
				Successful:  true,
				Props:       types.ImageProps{Size: inspected.Size, StartTime: now, EndTime: now},
			})
		}
		if len(images) == len(p.Descriptors) {
			logger.Info(ctx, "every image exists, skip build")
			return images, nil
		}
	}
	return c.BuildProject(ctx, e, p, opts)
}

// DeployProject creates a release from built images and pushes them.
// Whatever happens after the release is created, every tag made here is
// removed and the release ends up success, failed or cancelled.
func (c *Calcium) DeployProject(ctx context.Context, e engine.API, app *types.Application, p *types.ComposeProject, images []*types.BuiltImage, opts *types.DeployOptions) (release *types.Release, err error) {
	logger := log.WithFunc("calcium.DeployProject").WithField("fleet", app.Slug)
	if opts.Sink == nil {
		opts.Sink = types.DiscardSink
	}
	for _, image := range images {
		if !image.Successful {
			return nil, errors.Wrapf(types.ErrNoImage, "service %s was not built", image.ServiceName)
		}
	}

	created, createErr := c.cloud.CreateRelease(ctx, app, p.Composition.ServiceNames(), p.Composition.Map(), utils.RandomHex())
	if created == nil || created.Release == nil {
		if createErr == nil {
			createErr = errors.Wrap(types.ErrAPIRequest, "no release created")
		}
		return nil, createErr
	}
	release = created.Release
	logger.Infof(ctx, "release %d created with commit %s", release.ID, release.Commit)

	tagged := []*types.TaggedImage{}
	status := types.StatusFailed
	defer func() {
		cleanupCtx, cancel := c.cleanupContext(ctx)
		defer cancel()
		c.untag(cleanupCtx, e, tagged)

		if ctx.Err() != nil {
			release.Status = types.StatusCancelled
			if cerr := c.cloud.CancelRelease(cleanupCtx, release.ID); cerr != nil {
				logger.Error(ctx, cerr, "failed to cancel release")
			}
			err = errors.Wrapf(types.ErrInterrupted, "release %d cancelled", release.ID)
			return
		}

		end := time.Now()
		release.Status, release.EndTimestamp = status, &end
		if perr := c.cloud.PatchRelease(cleanupCtx, release.ID, map[string]any{"status": status, "end_timestamp": end}); perr != nil {
			logger.Error(ctx, perr, "failed to finalize release")
			err = errors.CombineErrors(err, perr)
		}
	}()

	// the release exists even when creating its images failed
	if createErr != nil {
		return release, createErr
	}
	if tagged, err = c.tagImages(ctx, e, images, created); err != nil {
		return release, err
	}
	token, err := c.authorizePush(ctx, app, tagged)
	if err != nil {
		return release, err
	}
	for _, t := range tagged {
		if err = c.pushImage(ctx, e, t, token, opts); err != nil {
			return release, err
		}
	}
	status = types.StatusSuccess
	return release, nil
}

// tagImages tags every image with its image location, images tagged before
// a failure are still returned so they can be removed
func (c *Calcium) tagImages(ctx context.Context, e engine.API, images []*types.BuiltImage, created *types.ReleaseCreated) ([]*types.TaggedImage, error) {
	tagged := []*types.TaggedImage{}
	for _, image := range images {
		serviceImage, ok := created.ServiceImages[image.ServiceName]
		if !ok || serviceImage == nil {
			return tagged, errors.Wrapf(types.ErrNoServiceImage, "%s", image.ServiceName)
		}
		t, err := parseImageLocation(serviceImage.IsStoredAtImageLocation)
		if err != nil {
			return tagged, err
		}
		t.ServiceName, t.LocalImage, t.ServiceImage = image.ServiceName, image, serviceImage
		if err := e.ImageTag(ctx, image.Name, t.Ref()); err != nil {
			return tagged, errors.Wrapf(err, "failed to tag %s", image.Name)
		}
		tagged = append(tagged, t)
	}
	return tagged, nil
}

func parseImageLocation(location string) (*types.TaggedImage, error) {
	named, err := reference.ParseNormalizedNamed(location)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s: %s", types.ErrBadImageLocation, location), types.ErrBadImageLocation)
	}
	t := &types.TaggedImage{Registry: reference.Domain(named), Repo: reference.Path(named), Tag: "latest"}
	if tagged, ok := named.(reference.Tagged); ok {
		t.Tag = tagged.Tag()
	}
	return t, nil
}

func (c *Calcium) authorizePush(ctx context.Context, app *types.Application, tagged []*types.TaggedImage) (string, error) {
	logger := log.WithFunc("calcium.authorizePush")
	registry := c.config.API.Registry
	if len(tagged) > 0 {
		registry = tagged[0].Registry
	}
	repos := utils.Map(tagged, func(t *types.TaggedImage) string { return t.Repo })
	previous, err := c.cloud.PreviousRepositories(ctx, app.ID)
	if err != nil {
		logger.Warnf(ctx, "no previous repositories, layers are pushed in full: %+v", err)
		previous = nil
	}
	return c.cloud.AuthorizePush(ctx, registry, repos, previous)
}

func (c *Calcium) pushImage(ctx context.Context, e engine.API, t *types.TaggedImage, token string, opts *types.DeployOptions) error {
	logger := log.WithFunc("calcium.pushImage").WithField("ref", t.Ref())
	start := time.Now()
	result, err := c.doPush(ctx, e, t, token, opts.Sink)
	if err != nil {
		logger.Error(ctx, err, "push failed")
		if ctx.Err() == nil {
			if uerr := c.cloud.UpdateServiceImage(ctx, t.ServiceImage.ID, map[string]any{
				"status":        types.StatusFailed,
				"error_message": utils.Tail(err.Error(), maxErrorLines),
				"end_timestamp": time.Now(),
			}); uerr != nil {
				logger.Error(ctx, uerr, "failed to mark image failed")
			}
		}
		return errors.Mark(errors.Wrapf(err, "%s %s", types.ErrPushFailed, t.Ref()), types.ErrPushFailed)
	}

	size := result.size
	if t.LocalImage.Props.Size > 0 {
		size = t.LocalImage.Props.Size
	}
	patch := map[string]any{
		"status":          types.StatusSuccess,
		"content_hash":    result.digest,
		"image_size":      size,
		"start_timestamp": t.LocalImage.Props.StartTime,
		"end_timestamp":   t.LocalImage.Props.EndTime,
		"push_timestamp":  start,
		"project_type":    t.LocalImage.Props.ProjectType,
	}
	if t.LocalImage.Props.Dockerfile != "" {
		patch["dockerfile"] = t.LocalImage.Props.Dockerfile
	}
	if !opts.SkipLogUpload {
		patch["build_log"] = t.LocalImage.Logs
	}
	return c.cloud.UpdateServiceImage(ctx, t.ServiceImage.ID, patch)
}

func (c *Calcium) doPush(ctx context.Context, e engine.API, t *types.TaggedImage, token string, sink types.ProgressSink) (*streamResult, error) {
	body, err := e.ImagePush(ctx, t.Ref(), &enginetypes.RegistryAuth{RegistryToken: token, ServerAddress: t.Registry})
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return processImageStream(ctx, t.ServiceName, body, sink)
}

func (c *Calcium) untag(ctx context.Context, e engine.API, tagged []*types.TaggedImage) {
	logger := log.WithFunc("calcium.untag")
	for _, t := range tagged {
		if _, err := e.ImageRemove(ctx, t.Ref(), false, false); err != nil {
			logger.Warnf(ctx, "failed to remove tag %s: %+v", t.Ref(), err)
		}
	}
}
