package device

import (
	"context"

	"github.com/projecteru2/barge/types"
)

// API is the local mode api of a device supervisor
type API interface {
	Ping(ctx context.Context) error
	GetVersion(ctx context.Context) (string, error)
	GetDeviceInfo(ctx context.Context) (*types.DeviceInfo, error)
	GetTargetState(ctx context.Context) (types.TargetState, error)
	SetTargetState(ctx context.Context, state types.TargetState) error
	GetStatus(ctx context.Context) (*types.DeviceStatus, error)
	// GetLogStream relays device logs until the stream or ctx ends
	GetLogStream(ctx context.Context) (<-chan *types.DeviceLog, error)
}

// Factory makes a client for a device address
type Factory func(host string) API
