package livepush

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/engine"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

// LabelKey marks intermediate containers
const LabelKey = "io.barge.livepush"

// Handle replays file changes of one service into its running container
type Handle struct {
	engine      engine.API
	containerID string
	contextDir  string
	dockerfile  *Dockerfile
	stageImages []string
	sink        types.ProgressSink
	service     string

	mu        sync.Mutex
	cancelled bool
	// intermediate containers by stage index
	containers map[int]string
}

// state is what WORKDIR and ENV leave behind while walking a stage
type state struct {
	workdir string
	env     map[string]string
}

// New binds a handle to the container of a service
func New(e engine.API, containerID, contextDir string, dockerfile *Dockerfile, stageImages []string, sink types.ProgressSink, service string) *Handle {
	if sink == nil {
		sink = types.DiscardSink
	}
	return &Handle{
		engine:      e,
		containerID: containerID,
		contextDir:  contextDir,
		dockerfile:  dockerfile,
		stageImages: stageImages,
		sink:        sink,
		service:     service,
		containers:  map[int]string{},
	}
}

// ContainerID is the container the final stage lives in
func (h *Handle) ContainerID() string {
	return h.containerID
}

// ActionsNeeded tells whether any change touches an instruction of a needed stage
func (h *Handle) ActionsNeeded(updated, deleted []string) bool {
	changed := append(append([]string{}, updated...), deleted...)
	dirty := map[int]bool{}
	for _, i := range h.dockerfile.Needed() {
		if h.firstAffected(h.dockerfile.Stages[i], changed, dirty) >= 0 {
			return true
		}
	}
	return false
}

// Perform replays the instructions affected by the changes, stage by stage
func (h *Handle) Perform(ctx context.Context, updated, deleted []string) error {
	logger := log.WithFunc("livepush.Perform").WithField("service", h.service)
	changed := append(append([]string{}, updated...), deleted...)
	dirty := map[int]bool{}
	last := len(h.dockerfile.Stages) - 1

	h.emit(types.EventLivepushStart, "Performing livepush...", 0)
	for _, i := range h.dockerfile.Needed() {
		stage := h.dockerfile.Stages[i]
		first := h.firstAffected(stage, changed, dirty)
		if first < 0 {
			continue
		}
		dirty[i] = true
		if err := h.check(); err != nil {
			return err
		}
		containerID, err := h.stageContainer(ctx, i, last)
		if err != nil {
			return err
		}
		logger.Debugf(ctx, "replaying stage %d from instruction %d in %s", i, first, utils.TruncateID(containerID))

		st := &state{workdir: "/", env: map[string]string{}}
		for k, ins := range stage.Instructions {
			switch ins.Kind {
			case KindWorkdir:
				st.workdir = absolute(st.workdir, ins.Dest)
			case KindEnv:
				for key, value := range ins.Env {
					st.env[key] = value
				}
			}
			if k < first {
				continue
			}
			if err := h.check(); err != nil {
				return err
			}
			switch {
			case (ins.Kind == KindCopy || ins.Kind == KindAdd) && ins.From != "":
				err = h.copyFromStage(ctx, containerID, ins, st, last)
			case ins.Kind == KindCopy || ins.Kind == KindAdd:
				err = h.copyFiles(ctx, containerID, ins, st, updated, deleted)
			case ins.Kind == KindRun:
				err = h.run(ctx, containerID, ins, st)
			}
			if err != nil {
				return err
			}
		}
	}
	h.emit(types.EventLivepushExit, "Livepush complete", 0)
	return nil
}

// Cancel makes running and future performs stop before their next command
func (h *Handle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelled = true
}

// Cleanup removes intermediate containers
func (h *Handle) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	containers := h.containers
	h.containers = map[int]string{}
	h.mu.Unlock()

	var combined error
	for _, ID := range containers {
		if err := h.engine.VirtualizationRemove(ctx, ID, true, true); err != nil {
			log.WithFunc("livepush.Cleanup").WithField("service", h.service).Error(ctx, err, "remove intermediate container failed")
			combined = errors.CombineErrors(combined, err)
		}
	}
	return combined
}

func (h *Handle) check() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return errors.Wrapf(types.ErrLivepushCancelled, "service %s", h.service)
	}
	return nil
}

func (h *Handle) emit(kind types.EventKind, msg string, code int) {
	h.sink.OnServiceEvent(h.service, types.ServiceEvent{Kind: kind, Message: msg, Code: code})
}

func (h *Handle) firstAffected(stage Stage, changed []string, dirty map[int]bool) int {
	if j := h.dockerfile.StageIndex(strings.ToLower(stage.From)); j >= 0 && dirty[j] {
		return 0
	}
	for k, ins := range stage.Instructions {
		if ins.Kind != KindCopy && ins.Kind != KindAdd {
			continue
		}
		if ins.From != "" {
			if j := h.dockerfile.StageIndex(ins.From); j >= 0 && dirty[j] {
				return k
			}
			continue
		}
		for _, file := range changed {
			if _, ok := matchSources(ins.Sources, file); ok {
				return k
			}
		}
	}
	return -1
}

func (h *Handle) stageContainer(ctx context.Context, i, last int) (string, error) {
	if i == last {
		return h.containerID, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if ID, ok := h.containers[i]; ok {
		return ID, nil
	}
	if i >= len(h.stageImages) || h.stageImages[i] == "" {
		return "", errors.Wrapf(types.ErrNoImage, "no image for stage %d of %s", i, h.service)
	}
	created, err := h.engine.VirtualizationCreate(ctx, &enginetypes.VirtualizationCreateOptions{
		Name:       fmt.Sprintf("livepush-%s-%d-%s", h.service, i, utils.RandomHex()[:8]),
		Image:      h.stageImages[i],
		Entrypoint: []string{"/bin/sh", "-c"},
		Cmd:        []string{"while true; do sleep 3600; done"},
		Labels:     map[string]string{LabelKey: h.service},
	})
	if err != nil {
		return "", err
	}
	if err := h.engine.VirtualizationStart(ctx, created.ID); err != nil {
		_ = h.engine.VirtualizationRemove(context.WithoutCancel(ctx), created.ID, true, true)
		return "", err
	}
	h.containers[i] = created.ID
	return created.ID, nil
}

func (h *Handle) copyFiles(ctx context.Context, containerID string, ins Instruction, st *state, updated, deleted []string) error {
	dest := absolute(st.workdir, ins.Dest)
	destDir := strings.HasSuffix(ins.Dest, "/") || len(ins.Sources) > 1

	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	copied := 0
	for _, file := range updated {
		prefix, ok := matchSources(ins.Sources, file)
		if !ok {
			continue
		}
		target := targetPath(prefix, file, dest, destDir)
		if err := addFile(tw, filepath.Join(h.contextDir, filepath.FromSlash(file)), target); err != nil {
			return err
		}
		copied++
	}
	if err := tw.Close(); err != nil {
		return errors.WithStack(err)
	}
	if copied > 0 {
		h.emit(types.EventLivepushOutput, fmt.Sprintf("Copying %d file(s) to %s", copied, dest), 0)
		if err := h.engine.VirtualizationCopyTo(ctx, containerID, "/", buf); err != nil {
			return err
		}
	}

	removed := []string{}
	for _, file := range deleted {
		if prefix, ok := matchSources(ins.Sources, file); ok {
			removed = append(removed, targetPath(prefix, file, dest, destDir))
		}
	}
	if len(removed) == 0 {
		return nil
	}
	return h.exec(ctx, containerID, append([]string{"rm", "-f"}, removed...), st)
}

func (h *Handle) copyFromStage(ctx context.Context, containerID string, ins Instruction, st *state, last int) error {
	j := h.dockerfile.StageIndex(ins.From)
	if j < 0 {
		return nil
	}
	source, err := h.stageContainer(ctx, j, last)
	if err != nil {
		return err
	}
	dest := absolute(st.workdir, ins.Dest)
	destDir := strings.HasSuffix(ins.Dest, "/") || len(ins.Sources) > 1
	for _, src := range ins.Sources {
		src = absolute("/", src)
		rc, err := h.engine.VirtualizationCopyFrom(ctx, source, src)
		if err != nil {
			return err
		}
		archive, err := rebase(rc, path.Base(src), dest, destDir)
		rc.Close()
		if err != nil {
			return err
		}
		h.emit(types.EventLivepushOutput, fmt.Sprintf("Copying %s from stage %s to %s", src, ins.From, dest), 0)
		if err := h.engine.VirtualizationCopyTo(ctx, containerID, "/", archive); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handle) run(ctx context.Context, containerID string, ins Instruction, st *state) error {
	cmd := ins.Command
	if !ins.JSON {
		cmd = []string{"/bin/sh", "-c", strings.Join(ins.Command, " ")}
	}
	h.emit(types.EventLivepushOutput, "Executing "+strings.Join(cmd, " "), 0)
	return h.exec(ctx, containerID, cmd, st)
}

func (h *Handle) exec(ctx context.Context, containerID string, cmd []string, st *state) error {
	env := []string{}
	for k, v := range st.env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	execID, output, err := h.engine.Execute(ctx, containerID, &enginetypes.ExecConfig{
		Env:        env,
		WorkingDir: st.workdir,
		Cmd:        cmd,
	})
	if err != nil {
		return err
	}
	scanner := bufio.NewScanner(output)
	for scanner.Scan() {
		h.emit(types.EventLivepushOutput, scanner.Text(), 0)
	}
	output.Close()
	code, err := h.engine.ExecExitCode(ctx, containerID, execID)
	if err != nil {
		return err
	}
	if code != 0 {
		msg := fmt.Sprintf("Command %s exited with code %d", strings.Join(cmd, " "), code)
		h.emit(types.EventError, msg, code)
		h.emit(types.EventLivepushExit, msg, code)
		return errors.Newf("service %s: %s", h.service, msg)
	}
	return nil
}

func absolute(workdir, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(workdir, p)
}

func cleanSource(src string) string {
	return path.Clean(strings.TrimPrefix(src, "/"))
}

// matchSources returns the part of file a source matched, "." for the whole context
func matchSources(sources []string, file string) (string, bool) {
	for _, src := range sources {
		if strings.Contains(src, "://") {
			continue
		}
		src = cleanSource(src)
		if src == "." {
			return ".", true
		}
		parts := strings.Split(file, "/")
		for i := 1; i <= len(parts); i++ {
			prefix := strings.Join(parts[:i], "/")
			if prefix == src {
				return prefix, true
			}
			if ok, _ := path.Match(src, prefix); ok {
				return prefix, true
			}
		}
	}
	return "", false
}

func targetPath(prefix, file, dest string, destDir bool) string {
	switch {
	case prefix == ".":
		return path.Join(dest, file)
	case prefix != file:
		return path.Join(dest, strings.TrimPrefix(file, prefix+"/"))
	case destDir:
		return path.Join(dest, path.Base(file))
	}
	return dest
}

func addFile(tw *tar.Writer, hostPath, target string) error {
	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return errors.WithStack(err)
	}
	hdr.Name = strings.TrimPrefix(target, "/")
	if err := tw.WriteHeader(hdr); err != nil {
		return errors.WithStack(err)
	}
	_, err = io.Copy(tw, f)
	return errors.WithStack(err)
}

// rebase renames an archive taken from a container so it extracts at dest from /
func rebase(r io.Reader, base, dest string, destDir bool) (io.Reader, error) {
	buf := &bytes.Buffer{}
	tr := tar.NewReader(r)
	tw := tar.NewWriter(buf)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
		name := strings.TrimSuffix(hdr.Name, "/")
		var target string
		switch {
		case name == base && hdr.Typeflag != tar.TypeDir && destDir:
			target = path.Join(dest, base)
		case name == base:
			target = dest
		default:
			target = path.Join(dest, strings.TrimPrefix(name, base+"/"))
		}
		hdr.Name = strings.TrimPrefix(target, "/")
		if hdr.Name == "" {
			continue
		}
		if hdr.Typeflag == tar.TypeDir {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, errors.WithStack(err)
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}
