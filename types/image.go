package types

import (
	"time"
)

// ImageProps are the facts recorded about a build
type ImageProps struct {
	Dockerfile  string
	ProjectType ProjectType
	Size        int64
	StartTime   time.Time
	EndTime     time.Time
}

// BuiltImage is what the executor produced for one service
type BuiltImage struct {
	ServiceName string
	Name        string
	Logs        string
	Props       ImageProps
	Successful  bool
	Error       error
}

// TaggedImage is a built image tagged for a release
type TaggedImage struct {
	ServiceName  string
	LocalImage   *BuiltImage
	ServiceImage *ServiceImage
	Registry     string
	Repo         string
	Tag          string
}

// Ref is the full registry reference of a tagged image
func (t *TaggedImage) Ref() string {
	if t.Tag == "" {
		return t.Registry + "/" + t.Repo
	}
	return t.Registry + "/" + t.Repo + ":" + t.Tag
}
