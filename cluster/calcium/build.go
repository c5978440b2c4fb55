package calcium

import (
	"bytes"
	"context"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/emulation"
	"github.com/projecteru2/barge/engine"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/ignore"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/project"
	"github.com/projecteru2/barge/resolve"
	"github.com/projecteru2/barge/source"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

// Build loads a project and builds it on the default engine
func (c *Calcium) Build(ctx context.Context, projectOpts *types.ProjectOptions, opts *types.BuildOptions) ([]*types.BuiltImage, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p, err := project.Load(ctx, projectOpts)
	if err != nil {
		return nil, err
	}
	e, err := c.GetEngine(ctx, c.config.Docker.Endpoint)
	if err != nil {
		return nil, err
	}
	return c.BuildProject(ctx, e, p, opts)
}

// BuildProject packs, splits and resolves a project, then builds every
// selected service on e. Failed services are reported together in a
// *types.BuildFailures, images of every service are returned either way.
func (c *Calcium) BuildProject(ctx context.Context, e engine.API, p *types.ComposeProject, opts *types.BuildOptions) ([]*types.BuiltImage, error) {
	logger := log.WithFunc("calcium.BuildProject").WithField("project", p.Name)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Arch == "" {
		arch, err := c.deviceTypeArch(ctx, opts.DeviceType)
		if err != nil {
			return nil, err
		}
		opts.Arch = arch
	}

	tasks, err := c.prepareTasks(ctx, e, p, opts)
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "building %d services for %s", len(tasks), opts.Arch)
	return c.runTasks(ctx, e, tasks, opts)
}

func (c *Calcium) prepareTasks(ctx context.Context, e engine.API, p *types.ComposeProject, opts *types.BuildOptions) ([]types.ResolvedTask, error) {
	filter, err := ignore.New(p.Path, c.config.Docker.GitIgnore && !opts.NoGitignore)
	if err != nil {
		return nil, err
	}
	packed, err := source.Pack(ctx, p.Path, source.PackOptions{
		Filter:     filter,
		ConvertEOL: c.convertEOL(opts.ConvertEOL),
	})
	if err != nil {
		return nil, err
	}
	defer packed.Close()

	tasks, err := source.Split(p, packed)
	if err != nil {
		return nil, err
	}
	tasks = utils.Filter(tasks, func(t types.SplitTask) bool { return opts.WantService(t.ServiceName) })
	if len(tasks) == 0 {
		return nil, errors.Wrapf(types.ErrConflictingOptions, "no service matches %v", opts.Services)
	}
	secrets := c.registrySecrets(opts)
	for i := range tasks {
		if tasks[i].External {
			continue
		}
		if tasks[i].Tar, err = source.InjectRegistrySecrets(tasks[i].Tar, secrets); err != nil {
			return nil, err
		}
	}

	resolved, err := resolve.Resolve(ctx, tasks, opts.Arch, opts.DeviceType, opts.Sink)
	if err != nil {
		return nil, err
	}
	if opts.Emulated {
		if err := c.emulate(ctx, e, resolved, opts.Arch); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func (c *Calcium) emulate(ctx context.Context, e engine.API, tasks []types.ResolvedTask, arch string) error {
	logger := log.WithFunc("calcium.emulate").WithField("arch", arch)
	need, err := emulation.NeedsQemu(ctx, e, arch)
	if err != nil {
		return err
	}
	if !need {
		logger.Info(ctx, "engine runs the target natively, emulation skipped")
		return nil
	}
	binary, err := emulation.Install(ctx, c.httpClient, c.config.Emulation, arch)
	if err != nil {
		return err
	}
	for i := range tasks {
		if tasks[i].External {
			continue
		}
		content, err := emulation.Preprocess(tasks[i].DockerfileContent)
		if err != nil {
			return errors.Wrapf(err, "service %s", tasks[i].ServiceName)
		}
		if tasks[i].Tar, err = source.Rewrite(tasks[i].Tar, map[string][]byte{tasks[i].DockerfilePath: content}, emulation.Inject(binary)); err != nil {
			return err
		}
		tasks[i].DockerfileContent = content
	}
	return nil
}

func (c *Calcium) runTasks(ctx context.Context, e engine.API, tasks []types.ResolvedTask, opts *types.BuildOptions) ([]*types.BuiltImage, error) {
	pool, err := utils.NewGoroutinePool(c.config.MaxConcurrency)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	images := make([]*types.BuiltImage, len(tasks))
	for i := range tasks {
		i := i
		pool.Go(ctx, func() {
			images[i] = c.runTask(ctx, e, &tasks[i], opts)
		})
	}
	pool.Wait(ctx)

	failures := &types.BuildFailures{}
	for i, image := range images {
		if image == nil {
			images[i] = &types.BuiltImage{ServiceName: tasks[i].ServiceName, Error: errors.Wrap(types.ErrNoImage, "task never ran")}
			image = images[i]
		}
		if !image.Successful {
			failures.Failures = append(failures.Failures, types.BuildFailure{ServiceName: image.ServiceName, Err: image.Error})
		}
	}
	if len(failures.Failures) > 0 {
		return images, failures
	}
	return images, nil
}

func (c *Calcium) runTask(ctx context.Context, e engine.API, task *types.ResolvedTask, opts *types.BuildOptions) *types.BuiltImage {
	logger := log.WithFunc("calcium.runTask").WithField("service", task.ServiceName)
	image := &types.BuiltImage{
		ServiceName: task.ServiceName,
		Name:        task.Tag,
		Props: types.ImageProps{
			Dockerfile:  string(task.DockerfileContent),
			ProjectType: task.ProjectType,
			StartTime:   time.Now(),
		},
	}

	var err error
	if task.External {
		image.Logs, err = c.pullTask(ctx, e, task, opts)
	} else {
		image.Logs, err = c.buildTask(ctx, e, task, opts)
	}
	image.Props.EndTime = time.Now()
	if err != nil {
		logger.Error(ctx, err, "service failed")
		image.Error = err
		return image
	}

	if inspected, err := e.ImageInspect(ctx, task.Tag); err != nil {
		logger.Warnf(ctx, "failed to inspect %s: %+v", task.Tag, err)
	} else {
		image.Props.Size = inspected.Size
	}
	image.Successful = true
	logger.Infof(ctx, "%s ready in %v", task.Tag, image.Props.EndTime.Sub(image.Props.StartTime))
	return image
}

func (c *Calcium) pullTask(ctx context.Context, e engine.API, task *types.ResolvedTask, opts *types.BuildOptions) (string, error) {
	logger := log.WithFunc("calcium.pullTask").WithField("image", task.Image)
	body, err := e.ImagePull(ctx, task.Image)
	if err != nil {
		return "", err
	}
	defer body.Close()
	result, err := processImageStream(ctx, task.ServiceName, body, opts.Sink)
	if err != nil {
		return result.logs, err
	}
	if task.Tag == "" || task.Tag == task.Image {
		return result.logs, nil
	}
	if err := e.ImageTag(ctx, task.Image, task.Tag); err != nil {
		return result.logs, err
	}
	if _, err := e.ImageRemove(ctx, task.Image, false, false); err != nil {
		logger.Warnf(ctx, "failed to remove pulled tag: %+v", err)
	}
	return result.logs, nil
}

func (c *Calcium) buildTask(ctx context.Context, e engine.API, task *types.ResolvedTask, opts *types.BuildOptions) (string, error) {
	buildOpts := &enginetypes.BuildOptions{
		Tags:       []string{task.Tag},
		Dockerfile: task.DockerfilePath,
		BuildArgs:  c.buildArgs(task, opts),
		CacheFrom:  append([]string{}, opts.CacheFrom...),
		Labels: map[string]string{
			c.label("image"):   "1",
			c.label("service"): task.ServiceName,
		},
		Target:  task.Target,
		Pull:    opts.Pull || c.config.Docker.PullParent,
		NoCache: opts.NoCache || c.config.Docker.NoCache,
	}
	if opts.DeviceCache {
		buildOpts.CacheFrom = append(buildOpts.CacheFrom, c.cachedImages(ctx, e, task.ServiceName)...)
	}

	body, err := e.ImageBuild(ctx, bytes.NewReader(task.Tar), buildOpts)
	if err != nil {
		return "", err
	}
	defer body.Close()
	result, err := processImageStream(ctx, task.ServiceName, body, opts.Sink)
	return result.logs, err
}

// cachedImages lists earlier builds of a service on e
func (c *Calcium) cachedImages(ctx context.Context, e engine.API, service string) []string {
	images, err := e.ImageList(ctx, &enginetypes.ImageListOptions{Labels: map[string]string{c.label("service"): service}})
	if err != nil {
		log.WithFunc("calcium.cachedImages").Warnf(ctx, "failed to list images of %s: %+v", service, err)
		return nil
	}
	r := []string{}
	for _, image := range images {
		for _, tag := range image.Tags {
			if tag != "<none>:<none>" {
				r = append(r, tag)
			}
		}
	}
	return r
}

// buildArgs merges config, compose and command line args, later ones win
func (c *Calcium) buildArgs(task *types.ResolvedTask, opts *types.BuildOptions) map[string]string {
	args := map[string]string{}
	for _, m := range []map[string]string{c.config.Docker.BuildArgs, task.Args, opts.BuildArgs} {
		for k, v := range m {
			args[k] = v
		}
	}
	return args
}

func (c *Calcium) registrySecrets(opts *types.BuildOptions) map[string]types.AuthConfig {
	secrets := map[string]types.AuthConfig{}
	for k, v := range c.config.Docker.AuthConfigs {
		secrets[k] = v
	}
	for k, v := range opts.RegistrySecrets {
		secrets[k] = v
	}
	return secrets
}

func (c *Calcium) convertEOL(opt *bool) bool {
	switch {
	case opt != nil:
		return *opt
	case c.config.Docker.ConvertEOL != nil:
		return *c.config.Docker.ConvertEOL
	}
	return runtime.GOOS == "windows"
}

func (c *Calcium) label(key string) string {
	return c.config.Docker.LabelPrefix + "." + key
}
