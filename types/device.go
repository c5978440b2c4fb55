package types

// AppStateApplied is reported by the supervisor once containers match the target state
const AppStateApplied = "applied"

// DeviceInfo is what the supervisor reports about its device
type DeviceInfo struct {
	DeviceType string `mapstructure:"deviceType"`
	Arch       string `mapstructure:"arch"`
}

// ContainerStatus is one running service on a device
type ContainerStatus struct {
	Status      string `mapstructure:"status"`
	ServiceName string `mapstructure:"serviceName"`
	AppID       int64  `mapstructure:"appId"`
	ImageID     int64  `mapstructure:"imageId"`
	ServiceID   int64  `mapstructure:"serviceId"`
	ContainerID string `mapstructure:"containerId"`
	CreatedAt   string `mapstructure:"createdAt"`
}

// DeviceStatus is the supervisor state summary
type DeviceStatus struct {
	AppState        string            `mapstructure:"appState"`
	OverallProgress int               `mapstructure:"overallDownloadProgress"`
	Containers      []ContainerStatus `mapstructure:"containers"`
	Release         string            `mapstructure:"release"`
}

// ContainerID returns the container of a service, empty if not running
func (s *DeviceStatus) ContainerID(service string) string {
	for _, c := range s.Containers {
		if c.ServiceName == service {
			return c.ContainerID
		}
	}
	return ""
}

// DeviceLog is one line of the device log stream
type DeviceLog struct {
	Message     string `json:"message"`
	Timestamp   int64  `json:"timestamp"`
	ServiceName string `json:"serviceName,omitempty"`
	ServiceID   int64  `json:"serviceId,omitempty"`
	IsSystem    bool   `json:"isSystem,omitempty"`
	IsStdErr    bool   `json:"isStdErr,omitempty"`
}

// TargetState is the full target state document of a device
type TargetState map[string]any
