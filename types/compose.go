package types

import (
	"sort"
)

// DefaultServiceName is the service name of synthesized compositions
const DefaultServiceName = "main"

// BuildSpec is the build section of a service
type BuildSpec struct {
	Context    string            `json:"context"`
	Dockerfile string            `json:"dockerfile,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
	Target     string            `json:"target,omitempty"`
}

// Service is a normalized service of a composition
type Service struct {
	Name        string            `json:"-"`
	Image       string            `json:"image,omitempty"`
	Build       *BuildSpec        `json:"build,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Volumes     []string          `json:"volumes,omitempty"`
	Networks    []string          `json:"networks,omitempty"`
	// Extra keeps the remaining compose keys, keyed as in compose files
	Extra map[string]any `json:"-"`
}

// Composition is a normalized compose document
type Composition struct {
	Version  string                    `json:"version,omitempty"`
	Services map[string]*Service       `json:"services"`
	Volumes  map[string]map[string]any `json:"volumes,omitempty"`
	Networks map[string]map[string]any `json:"networks,omitempty"`
}

// ServiceNames returns service names in sorted order
func (c *Composition) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImageDescriptor pairs a service with an image reference or a build.
// Tag is the canonical local name, pulled images are retagged to it.
type ImageDescriptor struct {
	ServiceName string
	Image       string
	Build       *BuildSpec
	Tag         string
}

// External means the image is pulled, not built
func (d ImageDescriptor) External() bool {
	return d.Build == nil
}

// ComposeProject is a resolved project directory
type ComposeProject struct {
	Path        string
	Name        string
	Composition *Composition
	Descriptors []ImageDescriptor
}

// Descriptor returns the descriptor of a service
func (p *ComposeProject) Descriptor(service string) (ImageDescriptor, bool) {
	for _, d := range p.Descriptors {
		if d.ServiceName == service {
			return d, true
		}
	}
	return ImageDescriptor{}, false
}

// ImageName is the local name of the image of a service
func (p *ComposeProject) ImageName(service string) string {
	d, _ := p.Descriptor(service)
	return d.Tag
}

// Map renders a service the way it appears in a compose document
func (s *Service) Map() map[string]any {
	r := map[string]any{}
	for k, v := range s.Extra {
		r[k] = v
	}
	if s.Image != "" {
		r["image"] = s.Image
	}
	if s.Build != nil {
		build := map[string]any{"context": s.Build.Context}
		if s.Build.Dockerfile != "" {
			build["dockerfile"] = s.Build.Dockerfile
		}
		if len(s.Build.Args) > 0 {
			build["args"] = s.Build.Args
		}
		if s.Build.Target != "" {
			build["target"] = s.Build.Target
		}
		r["build"] = build
	}
	if len(s.Environment) > 0 {
		r["environment"] = s.Environment
	}
	if len(s.Labels) > 0 {
		r["labels"] = s.Labels
	}
	if len(s.Volumes) > 0 {
		r["volumes"] = s.Volumes
	}
	if len(s.Networks) > 0 {
		r["networks"] = s.Networks
	}
	return r
}

// Map renders the composition as a compose document
func (c *Composition) Map() map[string]any {
	services := map[string]any{}
	for name, svc := range c.Services {
		services[name] = svc.Map()
	}
	r := map[string]any{"services": services}
	if c.Version != "" {
		r["version"] = c.Version
	}
	if len(c.Volumes) > 0 {
		r["volumes"] = c.Volumes
	}
	if len(c.Networks) > 0 {
		r["networks"] = c.Networks
	}
	return r
}
