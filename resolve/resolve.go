package resolve

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/source"
	"github.com/projecteru2/barge/types"
)

const (
	plainDockerfile    = "Dockerfile"
	templateDockerfile = "Dockerfile.template"
	templateSuffix     = ".template"
)

type candidate struct {
	name        string
	projectType types.ProjectType
}

// Resolve picks and renders a dockerfile for every task, one task at a time.
// Explicit dockerfiles are taken as given, otherwise the device type
// specific file wins over the arch specific one, then the template, then
// the plain Dockerfile.
func Resolve(ctx context.Context, tasks []types.SplitTask, arch, deviceType string, sink types.ProgressSink) ([]types.ResolvedTask, error) {
	logger := log.WithFunc("resolve.Resolve").WithField("arch", arch).WithField("deviceType", deviceType)
	if sink == nil {
		sink = types.DiscardSink
	}
	resolved := make([]types.ResolvedTask, 0, len(tasks))
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rt, err := resolveTask(task, arch, deviceType)
		if err != nil {
			logger.Error(ctx, err, "resolve failed")
			return nil, err
		}
		msg := fmt.Sprintf("Resolved %s", rt.ProjectType)
		if rt.DockerfilePath != "" {
			msg += ": " + rt.DockerfilePath
		}
		sink.OnServiceEvent(task.ServiceName, types.ServiceEvent{Kind: types.EventResolved, Message: msg})
		logger.Debugf(ctx, "service %s: %s", task.ServiceName, msg)
		resolved = append(resolved, rt)
	}
	return resolved, nil
}

func resolveTask(task types.SplitTask, arch, deviceType string) (types.ResolvedTask, error) {
	rt := types.ResolvedTask{SplitTask: task}
	if task.External {
		rt.ProjectType = types.ProjectTypeExternal
		return rt, nil
	}

	candidates := []candidate{}
	if task.Dockerfile != "" {
		name := path.Clean(task.Dockerfile)
		projectType := types.ProjectTypeStandard
		if strings.HasSuffix(name, templateSuffix) {
			projectType = types.ProjectTypeTemplate
		}
		candidates = append(candidates, candidate{name, projectType})
	} else {
		if deviceType != "" {
			candidates = append(candidates, candidate{plainDockerfile + "." + deviceType, types.ProjectTypeDeviceType})
		}
		if arch != "" {
			candidates = append(candidates, candidate{plainDockerfile + "." + arch, types.ProjectTypeArch})
		}
		candidates = append(candidates,
			candidate{templateDockerfile, types.ProjectTypeTemplate},
			candidate{plainDockerfile, types.ProjectTypeStandard},
		)
	}

	for _, c := range candidates {
		content, ok, err := source.ReadFile(task.Tar, c.name)
		if err != nil {
			return rt, err
		}
		if !ok {
			continue
		}
		rt.ProjectType = c.projectType
		rt.DockerfilePath = c.name
		rt.DockerfileContent = content
		if c.projectType != types.ProjectTypeTemplate {
			return rt, nil
		}
		rt.DockerfileContent = []byte(Substitute(string(content), arch, deviceType))
		if rt.Tar, err = source.Rewrite(task.Tar, map[string][]byte{c.name: rt.DockerfileContent}, nil); err != nil {
			return rt, err
		}
		return rt, nil
	}
	return rt, errors.Wrapf(types.ErrMissingDockerfile, "service %s", task.ServiceName)
}

// Substitute renders template variables of a dockerfile
func Substitute(content, arch, deviceType string) string {
	return strings.NewReplacer(
		"%%BALENA_MACHINE_NAME%%", deviceType,
		"%%BALENA_ARCH%%", arch,
		"%%RESIN_MACHINE_NAME%%", deviceType,
		"%%RESIN_ARCH%%", arch,
	).Replace(content)
}
