package types

import (
	"encoding/json"
)

// Image contain image meta data
type Image struct {
	ID     string
	Tags   []string
	Size   int64
	Labels map[string]string
}

// ImageListOptions filters ImageList
type ImageListOptions struct {
	Reference string            // repo or repo:tag, may be empty
	Labels    map[string]string // label=value, empty value means the label exists
}

// BuildOptions is options for one image build
type BuildOptions struct {
	Tags       []string
	Dockerfile string // path inside the build context
	BuildArgs  map[string]string
	CacheFrom  []string
	Labels     map[string]string
	Target     string
	Pull       bool
	NoCache    bool
}

// RegistryAuth is credentials for one push or pull
type RegistryAuth struct {
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	RegistryToken string `json:"registrytoken,omitempty"`
	ServerAddress string `json:"serveraddress,omitempty"`
}

// ImageMessage is one line of a build, pull or push stream
type ImageMessage struct {
	Stream   string          `json:"stream,omitempty"`
	Status   string          `json:"status,omitempty"`
	Progress string          `json:"progress,omitempty"`
	ID       string          `json:"id,omitempty"`
	Error    string          `json:"error,omitempty"`
	Aux      json.RawMessage `json:"aux,omitempty"`
}
