package calcium

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/device"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/project"
	"github.com/projecteru2/barge/types"
)

const (
	localAppID       = "1"
	localAppName     = "localapp"
	localReleaseName = "localrelease"
	systemLogSource  = "device"
)

// LocalImageName is the image name of a service in local mode
func LocalImageName(service string) string {
	return fmt.Sprintf("local_image_%s:latest", service)
}

// DeployToDevice builds a project on a local mode device and runs it there
func (c *Calcium) DeployToDevice(ctx context.Context, opts *types.DeviceDeployOptions) error {
	logger := log.WithFunc("calcium.DeployToDevice").WithField("device", opts.DeviceHost)
	if err := opts.Validate(); err != nil {
		return err
	}

	dev := c.devices(opts.DeviceHost)
	if err := dev.Ping(ctx); err != nil {
		return errors.Mark(errors.Wrapf(err, "%s at %s", types.ErrDeviceUnreachable, opts.DeviceHost), types.ErrDeviceUnreachable)
	}
	version, err := dev.GetVersion(ctx)
	if err != nil {
		return err
	}
	if err := device.CheckVersion(version, c.config.Device.MinSupervisor); err != nil {
		return err
	}
	info, err := dev.GetDeviceInfo(ctx)
	if err != nil {
		return err
	}
	logger.Infof(ctx, "device is a %s (%s), supervisor %s", info.DeviceType, info.Arch, version)

	p, err := project.Load(ctx, &opts.Project)
	if err != nil {
		return err
	}
	for i := range p.Descriptors {
		p.Descriptors[i].Tag = LocalImageName(p.Descriptors[i].ServiceName)
	}
	e, err := c.GetEngine(ctx, device.Endpoint(c.config.Device, opts.DeviceHost))
	if err != nil {
		return err
	}

	images, err := c.BuildProject(ctx, e, p, c.deviceBuildOptions(info, opts))
	if err != nil {
		return err
	}

	current, err := dev.GetTargetState(ctx)
	if err != nil {
		return err
	}
	if err := dev.SetTargetState(ctx, targetState(current, p, opts)); err != nil {
		return err
	}
	logger.Info(ctx, "target state applied")

	if opts.Live {
		return c.Live(ctx, e, dev, p, images, info, opts)
	}
	if opts.Logs {
		return c.relayLogs(ctx, dev, opts)
	}
	return nil
}

func (c *Calcium) deviceBuildOptions(info *types.DeviceInfo, opts *types.DeviceDeployOptions) *types.BuildOptions {
	return &types.BuildOptions{
		Arch:        info.Arch,
		DeviceType:  info.DeviceType,
		NoGitignore: opts.NoGitignore,
		ConvertEOL:  opts.ConvertEOL,
		NoCache:     opts.NoCache,
		Pull:        opts.Pull,
		DeviceCache: true,
		Sink:        opts.Sink,
	}
}

// targetState replaces the local apps of current with the project
func targetState(current types.TargetState, p *types.ComposeProject, opts *types.DeviceDeployOptions) types.TargetState {
	services := map[string]any{}
	for i, name := range p.Composition.ServiceNames() {
		svc := p.Composition.Services[name]
		id := i + 1
		s := svc.Map()
		delete(s, "build")
		env := map[string]string{}
		for k, v := range svc.Environment {
			env[k] = v
		}
		for k, v := range opts.ServiceEnv(name) {
			env[k] = v
		}
		labels := map[string]string{}
		for k, v := range svc.Labels {
			labels[k] = v
		}
		s["environment"] = env
		s["labels"] = labels
		s["imageId"] = id
		s["serviceName"] = name
		s["serviceId"] = id
		s["image"] = LocalImageName(name)
		s["running"] = true
		services[strconv.Itoa(id)] = s
	}

	app := map[string]any{
		"name":      localAppName,
		"commit":    localReleaseName,
		"releaseId": 1,
		"services":  services,
		"volumes":   orEmpty(p.Composition.Volumes),
		"networks":  orEmpty(p.Composition.Networks),
	}

	state := types.TargetState{}
	for k, v := range current {
		state[k] = v
	}
	local := map[string]any{}
	if l, ok := current["local"].(map[string]any); ok {
		for k, v := range l {
			local[k] = v
		}
	}
	local["apps"] = map[string]any{localAppID: app}
	state["local"] = local
	return state
}

func orEmpty(m map[string]map[string]any) map[string]map[string]any {
	if m == nil {
		return map[string]map[string]any{}
	}
	return m
}

// relayLogs writes device logs to the sink until the stream closes
func (c *Calcium) relayLogs(ctx context.Context, dev device.API, opts *types.DeviceDeployOptions) error {
	logger := log.WithFunc("calcium.relayLogs").WithField("device", opts.DeviceHost)
	ch, err := dev.GetLogStream(ctx)
	if err != nil {
		return err
	}
	wanted := map[string]bool{}
	for _, s := range opts.Services {
		wanted[s] = true
	}
	for l := range ch {
		source := l.ServiceName
		if l.IsSystem || source == "" {
			source = systemLogSource
		} else if len(wanted) > 0 && !wanted[source] {
			continue
		}
		opts.Sink.OnServiceEvent(source, types.ServiceEvent{Kind: types.EventLog, Message: l.Message})
	}
	if ctx.Err() != nil {
		return errors.Wrap(types.ErrInterrupted, "log stream")
	}
	logger.Info(ctx, "device log stream closed")
	return nil
}

// waitSettled polls the supervisor until every container matches the target state
func (c *Calcium) waitSettled(ctx context.Context, dev device.API) (*types.DeviceStatus, error) {
	logger := log.WithFunc("calcium.waitSettled")
	interval := c.config.Device.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := dev.GetStatus(ctx)
		switch {
		case err != nil:
			logger.Warnf(ctx, "failed to get device status: %+v", err)
		case status.AppState == types.AppStateApplied:
			return status, nil
		default:
			logger.Debugf(ctx, "device is %s", status.AppState)
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(types.ErrDeviceNotSettled, ctx.Err().Error())
		case <-ticker.C:
		}
	}
}
