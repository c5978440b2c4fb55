package calcium

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/barge/device"
	"github.com/projecteru2/barge/engine"
	"github.com/projecteru2/barge/ignore"
	"github.com/projecteru2/barge/livepush"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

const cancelPollInterval = 100 * time.Millisecond

var runningIn = regexp.MustCompile(`---> Running in ([0-9a-f]+)`)

type liveService struct {
	sync.Mutex
	name       string
	context    string // posix, relative to the project
	contextDir string
	dockerfile string // explicit dockerfile, relative to the context

	handle  *livepush.Handle
	timer   *time.Timer
	updated map[string]bool
	deleted map[string]bool

	rebuilding     bool
	cancelling     bool
	waiting        bool
	cancelRebuild  context.CancelFunc
	buildContainer string
	rebuilds       int

	performMu sync.Mutex
}

// isDockerfile tells whether a change of rel, relative to the context, needs a rebuild
func (s *liveService) isDockerfile(rel string) bool {
	if s.dockerfile != "" {
		return rel == path.Clean(s.dockerfile)
	}
	return !strings.Contains(rel, "/") && strings.HasPrefix(rel, "Dockerfile")
}

// add buckets a change, the debounce timer is re-armed under the lock
func (s *liveService) add(rel string, deleted bool, debounce time.Duration, flush func()) {
	s.Lock()
	defer s.Unlock()
	if deleted {
		s.deleted[rel] = true
		delete(s.updated, rel)
	} else {
		s.updated[rel] = true
		delete(s.deleted, rel)
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(debounce, flush)
		return
	}
	// a fired timer has a flush in flight, it takes this change too
	if s.timer.Stop() {
		s.timer.Reset(debounce)
	}
}

type liveManager struct {
	c        *Calcium
	e        engine.API
	dev      device.API
	project  *types.ComposeProject
	info     *types.DeviceInfo
	opts     *types.DeviceDeployOptions
	filter   *ignore.Filter
	services map[string]*liveService
	debounce time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	build func(ctx context.Context, svc *liveService, sink types.ProgressSink) (*types.BuiltImage, error)
}

// Live keeps the services of a device in sync with the project directory
// until ctx is done. Source changes are patched into running containers,
// dockerfile changes rebuild the service.
func (c *Calcium) Live(ctx context.Context, e engine.API, dev device.API, p *types.ComposeProject, images []*types.BuiltImage, info *types.DeviceInfo, opts *types.DeviceDeployOptions) error {
	logger := log.WithFunc("calcium.Live").WithField("device", opts.DeviceHost)
	m, err := c.newLiveManager(e, dev, p, info, opts)
	if err != nil {
		return err
	}
	defer m.cleanup(ctx)

	status, err := c.waitSettled(ctx, dev)
	if err != nil {
		return err
	}
	m.bind(ctx, images, status)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithStack(err)
	}
	defer watcher.Close()
	for _, svc := range m.services {
		if err := m.addRecursive(watcher, svc.contextDir); err != nil {
			return err
		}
		opts.Sink.OnServiceEvent(svc.name, types.ServiceEvent{Kind: types.EventStatus, Message: "Watching for file changes..."})
	}
	logger.Infof(ctx, "watching %d services", len(m.services))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Logs {
		g.Go(func() error { return c.relayLogs(gctx, dev, opts) })
	}
	g.Go(func() error { return m.loop(gctx, watcher) })
	return g.Wait()
}

func (c *Calcium) newLiveManager(e engine.API, dev device.API, p *types.ComposeProject, info *types.DeviceInfo, opts *types.DeviceDeployOptions) (*liveManager, error) {
	filter, err := ignore.New(p.Path, c.config.Docker.GitIgnore && !opts.NoGitignore)
	if err != nil {
		return nil, err
	}
	m := &liveManager{
		c:        c,
		e:        e,
		dev:      dev,
		project:  p,
		info:     info,
		opts:     opts,
		filter:   filter,
		services: map[string]*liveService{},
		debounce: c.config.Livepush.Debounce,
	}
	if m.debounce <= 0 {
		m.debounce = time.Second
	}
	m.build = m.buildService
	for _, name := range p.Composition.ServiceNames() {
		svc := p.Composition.Services[name]
		if svc.Build == nil {
			continue
		}
		dir := utils.ToPosix(svc.Build.Context)
		m.services[name] = &liveService{
			name:       name,
			context:    dir,
			contextDir: filepath.Join(p.Path, filepath.FromSlash(dir)),
			dockerfile: svc.Build.Dockerfile,
			updated:    map[string]bool{},
			deleted:    map[string]bool{},
		}
	}
	return m, nil
}

// bind attaches a livepush handle to every service with a running container
func (m *liveManager) bind(ctx context.Context, images []*types.BuiltImage, status *types.DeviceStatus) {
	logger := log.WithFunc("calcium.liveManager.bind")
	for _, image := range images {
		svc, ok := m.services[image.ServiceName]
		if !ok {
			continue
		}
		handle, err := m.newHandle(svc, image, status)
		if err != nil {
			logger.Warnf(ctx, "livepush disabled for %s: %+v", svc.name, err)
			continue
		}
		svc.Lock()
		svc.handle = handle
		svc.Unlock()
	}
}

func (m *liveManager) newHandle(svc *liveService, image *types.BuiltImage, status *types.DeviceStatus) (*livepush.Handle, error) {
	containerID := status.ContainerID(svc.name)
	if containerID == "" {
		return nil, errors.Wrapf(types.ErrNoContainer, "%s", svc.name)
	}
	dockerfile, err := livepush.ParseDockerfile([]byte(image.Props.Dockerfile))
	if err != nil {
		return nil, err
	}
	return livepush.New(m.e, containerID, svc.contextDir, dockerfile, livepush.StageImageIDs(image.Logs), m.opts.Sink, svc.name), nil
}

func (m *liveManager) addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if rel := m.rel(p); rel != "." && m.filter.CanSkipDir(rel) {
			return filepath.SkipDir
		}
		return errors.WithStack(watcher.Add(p))
	})
}

func (m *liveManager) rel(p string) string {
	rel, err := filepath.Rel(m.project.Path, p)
	if err != nil {
		return p
	}
	return utils.ToPosix(rel)
}

func (m *liveManager) loop(ctx context.Context, watcher *fsnotify.Watcher) error {
	logger := log.WithFunc("calcium.liveManager.loop")
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(types.ErrInterrupted, "livepush")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf(ctx, "watcher error: %+v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			m.onEvent(ctx, watcher, event)
		}
	}
}

func (m *liveManager) onEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	logger := log.WithFunc("calcium.liveManager.onEvent").WithField("path", event.Name)
	deleted := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if !deleted && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !deleted {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if !event.Has(fsnotify.Create) {
				return
			}
			if err := m.addRecursive(watcher, event.Name); err != nil {
				logger.Warnf(ctx, "failed to watch new dir: %+v", err)
			}
			m.addTree(ctx, event.Name)
			return
		}
	}
	m.change(ctx, m.rel(event.Name), deleted)
}

// addTree marks every file of a new dir updated, they may predate its watch
func (m *liveManager) addTree(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		m.change(ctx, m.rel(p), false)
		return nil
	})
}

func (m *liveManager) change(ctx context.Context, rel string, deleted bool) {
	if m.filter.Ignored(rel, false) {
		return
	}
	for _, svc := range m.services {
		if !utils.Within(svc.context, rel) {
			continue
		}
		svcRel := rel
		if svc.context != "." {
			svcRel = strings.TrimPrefix(rel, svc.context+"/")
		}
		svc := svc
		svc.add(svcRel, deleted, m.debounce, func() {
			if !m.track() {
				return
			}
			defer m.wg.Done()
			m.flush(ctx, svc)
		})
	}
}

// flush hands the buckets of a service to livepush or a rebuild
func (m *liveManager) flush(ctx context.Context, svc *liveService) {
	logger := log.WithFunc("calcium.liveManager.flush").WithField("service", svc.name)
	svc.Lock()
	svc.timer = nil
	if ctx.Err() != nil || len(svc.updated)+len(svc.deleted) == 0 {
		svc.Unlock()
		return
	}
	updated, deleted := maps.Keys(svc.updated), maps.Keys(svc.deleted)
	slices.Sort(updated)
	slices.Sort(deleted)
	dockerfileChanged := false
	for _, rel := range append(append([]string{}, updated...), deleted...) {
		dockerfileChanged = dockerfileChanged || svc.isDockerfile(rel)
	}
	if svc.rebuilding && !dockerfileChanged {
		// replayed once the rebuild binds a new handle
		svc.Unlock()
		return
	}
	svc.updated, svc.deleted = map[string]bool{}, map[string]bool{}
	handle := svc.handle
	svc.Unlock()

	if dockerfileChanged {
		m.startRebuild(ctx, svc)
		return
	}
	if handle == nil {
		logger.Warnf(ctx, "no running container, %d changes dropped", len(updated)+len(deleted))
		return
	}
	if !handle.ActionsNeeded(updated, deleted) {
		logger.Debugf(ctx, "nothing to do for %v %v", updated, deleted)
		return
	}

	svc.performMu.Lock()
	defer svc.performMu.Unlock()
	if err := handle.Perform(ctx, updated, deleted); err != nil && !errors.Is(err, types.ErrLivepushCancelled) {
		logger.Error(ctx, err, "livepush failed")
	}
}

// track counts one more flush or rebuild, false once cleanup began
func (m *liveManager) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	return true
}

func (m *liveManager) startRebuild(ctx context.Context, svc *liveService) {
	if !m.track() {
		return
	}
	utils.SentryGo(func() {
		defer m.wg.Done()
		if err := m.rebuild(ctx, svc); err != nil {
			log.WithFunc("calcium.liveManager.startRebuild").WithField("service", svc.name).Error(ctx, err, "rebuild ended")
		}
	})
}

// rebuild builds one service again and rebinds its handle. A rebuild in
// flight is cancelled first, at most one rebuild waits for that.
func (m *liveManager) rebuild(ctx context.Context, svc *liveService) error {
	logger := log.WithFunc("calcium.liveManager.rebuild").WithField("service", svc.name)
	svc.Lock()
	if svc.waiting {
		svc.Unlock()
		logger.Debug(ctx, "a rebuild is already queued")
		return nil
	}
	if svc.rebuilding {
		svc.waiting = true
		svc.cancelling = true
		cancel, container := svc.cancelRebuild, svc.buildContainer
		svc.Unlock()

		m.sink(svc, types.EventStatus, "Cancelling running rebuild...")
		m.cancelBuild(ctx, cancel, container)
		svc.Lock()
		for svc.cancelling {
			svc.Unlock()
			select {
			case <-ctx.Done():
				svc.Lock()
				svc.waiting = false
				svc.Unlock()
				return errors.Wrap(types.ErrInterrupted, "rebuild")
			case <-time.After(cancelPollInterval):
			}
			svc.Lock()
		}
		svc.waiting = false
	}
	svc.rebuilding = true
	rctx, cancel := context.WithCancel(ctx)
	svc.cancelRebuild, svc.buildContainer = cancel, ""
	old := svc.handle
	svc.Unlock()
	defer cancel()

	finished := false
	defer func() {
		if finished {
			return
		}
		svc.Lock()
		svc.rebuilding, svc.cancelling, svc.cancelRebuild, svc.buildContainer = false, false, nil, ""
		svc.Unlock()
	}()

	if old != nil {
		old.Cancel()
	}
	m.sink(svc, types.EventStatus, "Rebuilding service...")
	image, err := m.build(rctx, svc, m.buildSink(svc))
	if err != nil {
		if rctx.Err() != nil {
			return errors.Wrapf(types.ErrRebuildCancelled, "%s", svc.name)
		}
		m.sink(svc, types.EventError, "Rebuild failed: "+err.Error())
		return err
	}

	handle, err := m.rebind(rctx, svc, old, image)
	if err != nil {
		if rctx.Err() != nil {
			return errors.Wrapf(types.ErrRebuildCancelled, "%s", svc.name)
		}
		m.sink(svc, types.EventError, "Rebuild failed: "+err.Error())
		return err
	}

	svc.Lock()
	finished = true
	svc.handle = handle
	svc.rebuilds++
	svc.rebuilding, svc.cancelling, svc.cancelRebuild, svc.buildContainer = false, false, nil, ""
	pending := len(svc.updated)+len(svc.deleted) > 0 && svc.timer == nil
	svc.Unlock()
	m.sink(svc, types.EventStatus, "Rebuild complete")
	logger.Infof(ctx, "rebound to container %s", utils.TruncateID(handle.ContainerID()))

	if pending {
		m.flush(ctx, svc)
	}
	return nil
}

// rebind replaces the container of a rebuilt service and makes a handle for the new one
func (m *liveManager) rebind(ctx context.Context, svc *liveService, old *livepush.Handle, image *types.BuiltImage) (*livepush.Handle, error) {
	logger := log.WithFunc("calcium.liveManager.rebind").WithField("service", svc.name)
	if old != nil {
		if err := m.e.VirtualizationRemove(ctx, old.ContainerID(), true, true); err != nil {
			logger.Warnf(ctx, "failed to remove old container: %+v", err)
		}
		if err := old.Cleanup(ctx); err != nil {
			logger.Warnf(ctx, "failed to clean livepush containers: %+v", err)
		}
	}
	current, err := m.dev.GetTargetState(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.dev.SetTargetState(ctx, targetState(current, m.project, m.opts)); err != nil {
		return nil, err
	}
	status, err := m.c.waitSettled(ctx, m.dev)
	if err != nil {
		return nil, err
	}
	return m.newHandle(svc, image, status)
}

func (m *liveManager) cancelBuild(ctx context.Context, cancel context.CancelFunc, container string) {
	if container != "" {
		if err := m.e.VirtualizationRemove(ctx, container, true, true); err != nil {
			log.WithFunc("calcium.liveManager.cancelBuild").Warnf(ctx, "failed to remove build container %s: %+v", container, err)
		}
	}
	if cancel != nil {
		cancel()
	}
}

func (m *liveManager) buildService(ctx context.Context, svc *liveService, sink types.ProgressSink) (*types.BuiltImage, error) {
	opts := m.c.deviceBuildOptions(m.info, m.opts)
	opts.Services = []string{svc.name}
	opts.Sink = sink
	images, err := m.c.BuildProject(ctx, m.e, m.project, opts)
	if err != nil {
		return nil, err
	}
	return images[0], nil
}

// buildSink relays build output and remembers the container of the running step
func (m *liveManager) buildSink(svc *liveService) types.ProgressSink {
	return types.ProgressSinkFunc(func(service string, ev types.ServiceEvent) {
		if match := runningIn.FindStringSubmatch(ev.Message); match != nil {
			svc.Lock()
			svc.buildContainer = match[1]
			svc.Unlock()
		}
		m.opts.Sink.OnServiceEvent(service, ev)
	})
}

func (m *liveManager) sink(svc *liveService, kind types.EventKind, msg string) {
	m.opts.Sink.OnServiceEvent(svc.name, types.ServiceEvent{Kind: kind, Message: msg})
}

// cleanup stops rebuilds and removes every intermediate container
func (m *liveManager) cleanup(ctx context.Context) {
	logger := log.WithFunc("calcium.liveManager.cleanup")
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	for _, svc := range m.services {
		svc.Lock()
		if svc.timer != nil {
			svc.timer.Stop()
			svc.timer = nil
		}
		if svc.cancelRebuild != nil {
			svc.cancelRebuild()
		}
		svc.Unlock()
	}
	m.wg.Wait()

	cleanupCtx, cancel := m.c.cleanupContext(ctx)
	defer cancel()
	for _, svc := range m.services {
		svc.Lock()
		handle := svc.handle
		svc.Unlock()
		if handle == nil {
			continue
		}
		handle.Cancel()
		if err := handle.Cleanup(cleanupCtx); err != nil {
			logger.Errorf(ctx, err, "failed to clean livepush containers of %s", svc.name)
		}
	}
}
