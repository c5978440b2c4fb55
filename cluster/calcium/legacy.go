package calcium

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/engine"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
)

// deployLegacy uploads a single image archive to the builder of a legacy fleet
func (c *Calcium) deployLegacy(ctx context.Context, e engine.API, app *types.Application, images []*types.BuiltImage, opts *types.DeployOptions) (*types.Release, error) {
	logger := log.WithFunc("calcium.deployLegacy").WithField("fleet", app.Slug)
	if len(images) != 1 {
		return nil, errors.Wrapf(types.ErrNotSupport, "legacy fleets take a single service, got %d", len(images))
	}
	image := images[0]
	if !image.Successful {
		return nil, errors.Wrapf(types.ErrNoImage, "service %s was not built", image.ServiceName)
	}

	archive, err := e.ImageSave(ctx, []string{image.Name})
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	opts.Sink.OnServiceEvent(image.ServiceName, types.ServiceEvent{Kind: types.EventStatus, Message: "Uploading image"})
	buildID, err := c.cloud.UploadLegacyImage(ctx, app, archive)
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "image uploaded as build %s", buildID)

	if !opts.SkipLogUpload {
		if err := c.cloud.UploadLegacyLogs(ctx, app, buildID, image.Logs); err != nil {
			logger.Warnf(ctx, "failed to upload build logs: %+v", err)
		}
	}
	return &types.Release{
		Status:         types.StatusSuccess,
		Commit:         buildID,
		Source:         types.ReleaseSource,
		ApplicationID:  app.ID,
		StartTimestamp: image.Props.StartTime,
	}, nil
}
