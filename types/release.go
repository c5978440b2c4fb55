package types

import (
	"time"
)

// ReleaseStatus is the server side status of a release or an image
type ReleaseStatus string

// release status
const (
	StatusRunning   ReleaseStatus = "running"
	StatusSuccess   ReleaseStatus = "success"
	StatusFailed    ReleaseStatus = "failed"
	StatusCancelled ReleaseStatus = "cancelled"
)

// ReleaseSource marks releases pushed from a workstation
const ReleaseSource = "local"

// Application is a fleet
type Application struct {
	ID         int64  `json:"id"`
	Name       string `json:"app_name"`
	Slug       string `json:"slug"`
	Owner      string `json:"owner"`
	DeviceType string `json:"device_type"`
	Arch       string `json:"arch"`
	IsLegacy   bool   `json:"is_legacy"`
}

// Release is a cloud release
type Release struct {
	ID             int64          `json:"id"`
	Status         ReleaseStatus  `json:"status"`
	Commit         string         `json:"commit"`
	Composition    map[string]any `json:"composition"`
	Source         string         `json:"source"`
	IsFinal        bool           `json:"is_final"`
	StartTimestamp time.Time      `json:"start_timestamp"`
	EndTimestamp   *time.Time     `json:"end_timestamp,omitempty"`
	ApplicationID  int64          `json:"belongs_to__application"`
	UserID         int64          `json:"is_created_by__user,omitempty"`
}

// ServiceImage is the image record of one service in a release
type ServiceImage struct {
	ID                      int64         `json:"id"`
	ServiceID               int64         `json:"is_a_build_of__service"`
	IsStoredAtImageLocation string        `json:"is_stored_at__image_location"`
	Status                  ReleaseStatus `json:"status"`
	ContentHash             string        `json:"content_hash,omitempty"`
	ImageSize               int64         `json:"image_size,omitempty"`
	StartTimestamp          *time.Time    `json:"start_timestamp,omitempty"`
	EndTimestamp            *time.Time    `json:"end_timestamp,omitempty"`
	PushTimestamp           *time.Time    `json:"push_timestamp,omitempty"`
	BuildLog                string        `json:"build_log,omitempty"`
	Dockerfile              string        `json:"dockerfile,omitempty"`
	ProjectType             ProjectType   `json:"project_type,omitempty"`
	ErrorMessage            string        `json:"error_message,omitempty"`
}

// ReleaseCreated is what release creation returns
type ReleaseCreated struct {
	Release       *Release
	ServiceImages map[string]*ServiceImage
}

// PushToken is a registry token scoped for one push
type PushToken struct {
	Token string `json:"token"`
}
