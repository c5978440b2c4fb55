package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

// compose file names, first match wins
var composeFileNames = []string{"docker-compose.yml", "docker-compose.yaml"}

// keys kept out of Service.Extra
var modeledKeys = []string{"name", "build", "image", "environment", "labels", "volumes", "networks"}

// Load resolves a project directory into a composition and image descriptors.
// Every call reads the directory again.
func Load(ctx context.Context, opts *types.ProjectOptions) (*types.ComposeProject, error) {
	logger := log.WithFunc("project.Load").WithField("path", opts.Path)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(root)
	}
	name = utils.NormalizeName(name)
	if name == "" {
		name = "project"
	}

	var filename string
	var content []byte
	switch {
	case opts.Image != "":
		filename = "image composition"
		content, err = imageComposition(opts.Image)
	default:
		fi, statErr := os.Stat(root)
		if statErr != nil || !fi.IsDir() {
			return nil, errors.Wrapf(types.ErrBadProjectDir, "%s", opts.Path)
		}
		filename, content, err = findComposeFile(root)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if opts.Dockerfile != "" {
				logger.Warnf(ctx, "ignoring alternative dockerfile %s because %s was found", opts.Dockerfile, filename)
			}
			break
		}
		filename = "default composition"
		content, err = defaultComposition(opts.Dockerfile)
	}
	if err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "using %s", filename)

	composition, err := parse(ctx, root, name, filename, content)
	if err != nil {
		return nil, err
	}
	p := &types.ComposeProject{
		Path:        root,
		Name:        name,
		Composition: composition,
		Descriptors: descriptors(name, opts.Tag, composition),
	}
	logger.Debugf(ctx, "loaded %s", String(p))
	return p, nil
}

func findComposeFile(root string) (string, []byte, error) {
	for _, name := range composeFileNames {
		content, err := os.ReadFile(filepath.Join(root, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, errors.WithStack(err)
		}
		return name, content, nil
	}
	return "", nil, nil
}

func parse(ctx context.Context, root, name, filename string, content []byte) (*types.Composition, error) {
	details := composetypes.ConfigDetails{
		WorkingDir:  root,
		ConfigFiles: []composetypes.ConfigFile{{Filename: filename, Content: content}},
		Environment: environment(),
	}
	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(name, true)
		o.ResolvePaths = false
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s: %s", types.ErrComposeParse, filename), types.ErrComposeParse)
	}
	explicit, err := explicitDockerfiles(content)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s: %s", types.ErrComposeParse, filename), types.ErrComposeParse)
	}
	composition, err := convert(project, explicit)
	if err != nil {
		return nil, err
	}
	return composition, validate(composition)
}

func environment() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// normalization fills in a default dockerfile, the raw document tells
// which services named one
func explicitDockerfiles(content []byte) (map[string]bool, error) {
	raw := struct {
		Services map[string]struct {
			Build yaml.Node `yaml:"build"`
		} `yaml:"services"`
	}{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, err
	}
	r := map[string]bool{}
	for name, svc := range raw.Services {
		if svc.Build.Kind != yaml.MappingNode {
			continue
		}
		for i := 0; i+1 < len(svc.Build.Content); i += 2 {
			if svc.Build.Content[i].Value == "dockerfile" {
				r[name] = true
			}
		}
	}
	return r, nil
}

func convert(project *composetypes.Project, explicit map[string]bool) (*types.Composition, error) {
	composition := &types.Composition{
		Services: map[string]*types.Service{},
		Volumes:  map[string]map[string]any{},
		Networks: map[string]map[string]any{},
	}
	for name, vol := range project.Volumes {
		composition.Volumes[name] = resourceOptions(vol.Driver, vol.DriverOpts, vol.Labels)
	}
	for name, network := range project.Networks {
		if name == "default" {
			continue
		}
		composition.Networks[name] = resourceOptions(network.Driver, network.DriverOpts, network.Labels)
	}

	for name, svc := range project.Services {
		s := &types.Service{
			Name:        name,
			Image:       svc.Image,
			Environment: map[string]string{},
			Labels:      map[string]string{},
		}
		if svc.Build != nil {
			s.Build = &types.BuildSpec{
				Context: svc.Build.Context,
				Target:  svc.Build.Target,
				Args:    map[string]string{},
			}
			if explicit[name] {
				s.Build.Dockerfile = svc.Build.Dockerfile
			}
			for k, v := range svc.Build.Args {
				if v != nil {
					s.Build.Args[k] = *v
				}
			}
		}
		for k, v := range svc.Environment {
			if v != nil {
				s.Environment[k] = *v
			}
		}
		for k, v := range svc.Labels {
			s.Labels[k] = v
		}
		for _, vol := range svc.Volumes {
			s.Volumes = append(s.Volumes, volumeString(vol))
		}
		for network := range svc.Networks {
			if network != "default" {
				s.Networks = append(s.Networks, network)
			}
		}
		sort.Strings(s.Networks)

		extra, err := extraKeys(svc)
		if err != nil {
			return nil, err
		}
		s.Extra = extra
		composition.Services[name] = s
	}
	return composition, nil
}

func resourceOptions(driver string, opts, labels map[string]string) map[string]any {
	r := map[string]any{}
	if driver != "" {
		r["driver"] = driver
	}
	if len(opts) > 0 {
		r["driver_opts"] = opts
	}
	if len(labels) > 0 {
		r["labels"] = labels
	}
	return r
}

func volumeString(vol composetypes.ServiceVolumeConfig) string {
	s := vol.Target
	if vol.Source != "" {
		s = vol.Source + ":" + vol.Target
	}
	if vol.ReadOnly {
		s += ":ro"
	}
	return s
}

func extraKeys(svc composetypes.ServiceConfig) (map[string]any, error) {
	b, err := json.Marshal(svc)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	extra := map[string]any{}
	if err := json.Unmarshal(b, &extra); err != nil {
		return nil, errors.WithStack(err)
	}
	for _, key := range modeledKeys {
		delete(extra, key)
	}
	return extra, nil
}

func validate(composition *types.Composition) error {
	for _, name := range composition.ServiceNames() {
		svc := composition.Services[name]
		for _, vol := range svc.Volumes {
			source, _, bind := strings.Cut(vol, ":")
			if !bind || strings.HasPrefix(source, "/") || strings.HasPrefix(source, ".") || strings.HasPrefix(source, "~") {
				continue
			}
			if _, ok := composition.Volumes[source]; !ok {
				return errors.Wrapf(types.ErrUndeclaredVolume, "service %s: %s", name, source)
			}
		}
		for _, network := range svc.Networks {
			if _, ok := composition.Networks[network]; !ok {
				return errors.Wrapf(types.ErrUndeclaredNetwork, "service %s: %s", name, network)
			}
		}
	}
	return nil
}

func descriptors(project, tag string, composition *types.Composition) []types.ImageDescriptor {
	r := []types.ImageDescriptor{}
	for _, name := range composition.ServiceNames() {
		svc := composition.Services[name]
		d := types.ImageDescriptor{ServiceName: name, Image: svc.Image, Build: svc.Build}
		switch {
		case svc.Build != nil && svc.Image != "":
			d.Tag = svc.Image
		default:
			d.Tag = utils.ImageName(project, name, tag)
		}
		r = append(r, d)
	}
	return r
}

func imageComposition(image string) ([]byte, error) {
	return yaml.Marshal(map[string]any{
		"version": "2.1",
		"services": map[string]any{
			types.DefaultServiceName: map[string]any{"image": image},
		},
	})
}

func defaultComposition(dockerfile string) ([]byte, error) {
	build := map[string]any{"context": "."}
	if dockerfile != "" {
		build["dockerfile"] = filepath.ToSlash(dockerfile)
	}
	content, err := yaml.Marshal(map[string]any{
		"version":  "2.1",
		"networks": map[string]any{},
		"volumes":  map[string]any{"resin-data": map[string]any{}},
		"services": map[string]any{
			types.DefaultServiceName: map[string]any{
				"build":        build,
				"privileged":   true,
				"tty":          true,
				"restart":      "always",
				"network_mode": "host",
				"volumes":      []string{"resin-data:/data"},
				"labels": map[string]string{
					"io.resin.features.kernel-modules": "1",
					"io.resin.features.firmware":       "1",
					"io.resin.features.dbus":           "1",
					"io.resin.features.supervisor-api": "1",
					"io.resin.features.resin-api":      "1",
				},
			},
		},
	})
	return content, errors.WithStack(err)
}

// String is a debug summary
func String(p *types.ComposeProject) string {
	parts := []string{}
	for _, d := range p.Descriptors {
		if d.External() {
			parts = append(parts, fmt.Sprintf("%s(image %s)", d.ServiceName, d.Image))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s(build %s)", d.ServiceName, d.Build.Context))
	}
	return p.Name + ": " + strings.Join(parts, ", ")
}
