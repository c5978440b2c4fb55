package types

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ProjectOptions locates a project
type ProjectOptions struct {
	Path       string // project directory
	Name       string // project name, defaults to the directory name
	Dockerfile string // alternative dockerfile, relative to Path
	Image      string // deploy this image instead of building
	Tag        string // user tag appended to generated image names
}

// Validate checks options
func (o *ProjectOptions) Validate() error {
	if o.Image != "" && o.Dockerfile != "" {
		return errors.Wrap(ErrConflictingOptions, "--image cannot be used with --dockerfile")
	}
	if o.Path == "" {
		o.Path = "."
	}
	return nil
}

// BuildOptions is options for building a project
type BuildOptions struct {
	Arch        string
	DeviceType  string
	Emulated    bool
	NoGitignore bool
	ConvertEOL  *bool
	NoCache     bool
	Pull        bool
	BuildArgs   map[string]string
	CacheFrom   []string
	Services    []string // only build these services, all when empty
	// DeviceCache uses images of earlier builds of a service on the engine as cache
	DeviceCache bool
	// RegistrySecrets is injected as .balena/registry-secrets.json
	RegistrySecrets map[string]AuthConfig
	Sink            ProgressSink
}

// Validate checks options
func (o *BuildOptions) Validate() error {
	if o.Arch == "" && o.DeviceType == "" {
		return errors.Wrap(ErrConflictingOptions, "one of --arch or --device-type is needed")
	}
	if o.Sink == nil {
		o.Sink = DiscardSink
	}
	return nil
}

// WantService returns whether a service is selected
func (o *BuildOptions) WantService(name string) bool {
	if len(o.Services) == 0 {
		return true
	}
	for _, s := range o.Services {
		if s == name {
			return true
		}
	}
	return false
}

// DeployOptions is options for deploying a release to a fleet
type DeployOptions struct {
	Fleet         string // fleet slug or name
	Project       ProjectOptions
	Build         BuildOptions
	ForceBuild    bool // rebuild even if images exist locally
	SkipLogUpload bool
	Sink          ProgressSink
}

// Validate checks options
func (o *DeployOptions) Validate() error {
	if o.Fleet == "" {
		return errors.Wrap(ErrConflictingOptions, "fleet is required")
	}
	if o.Sink == nil {
		o.Sink = DiscardSink
	}
	return o.Project.Validate()
}

// DeviceDeployOptions is options for pushing a project to a local device
type DeviceDeployOptions struct {
	DeviceHost  string
	Project     ProjectOptions
	Live        bool
	Logs        bool
	Env         []string // KEY=VALUE or service:KEY=VALUE
	Services    []string // only stream logs of these services
	NoGitignore bool
	ConvertEOL  *bool
	NoCache     bool
	Pull        bool
	Sink        ProgressSink
}

// Validate checks options
func (o *DeviceDeployOptions) Validate() error {
	if o.DeviceHost == "" {
		return errors.Wrap(ErrConflictingOptions, "device address is required")
	}
	if o.Project.Image != "" {
		return errors.Wrap(ErrConflictingOptions, "--image is not supported when pushing to a device")
	}
	for _, env := range o.Env {
		if !strings.Contains(env, "=") {
			return errors.Wrapf(ErrConflictingOptions, "bad env %s", env)
		}
	}
	if o.Sink == nil {
		o.Sink = DiscardSink
	}
	return o.Project.Validate()
}

// ServiceEnv returns the variables for a service, service scoped ones win
func (o *DeviceDeployOptions) ServiceEnv(service string) map[string]string {
	global, scoped := map[string]string{}, map[string]string{}
	for _, env := range o.Env {
		key, value, _ := strings.Cut(env, "=")
		if svc, k, ok := strings.Cut(key, ":"); ok {
			if svc == service {
				scoped[k] = value
			}
			continue
		}
		global[key] = value
	}
	for k, v := range scoped {
		global[k] = v
	}
	return global
}
