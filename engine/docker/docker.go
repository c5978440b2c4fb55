package docker

import (
	"context"
	"strings"

	dockerapi "github.com/docker/docker/client"

	"github.com/projecteru2/barge/engine"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

const (
	// TCPPrefixKey indicate tcp prefix
	TCPPrefixKey = "tcp://"
	// SockPrefixKey indicate sock prefix
	SockPrefixKey = "unix://"
)

// Engine is engine for docker
type Engine struct {
	client dockerapi.APIClient
	config types.Config
}

// MakeClient make docker cli
func MakeClient(ctx context.Context, config types.Config, endpoint, ca, cert, key string) (engine.API, error) {
	client, err := utils.GetHTTPSClient(ctx, config.Docker.CertPath, hostOf(endpoint), ca, cert, key)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(endpoint, SockPrefixKey) || client == utils.GetHTTPClient() {
		// let the docker client build its own transport for plain tcp and sockets
		client = nil
	}

	log.WithFunc("engine.docker.MakeClient").Debugf(ctx, "Create new http.Client for %s, %s", endpoint, config.Docker.APIVersion)
	return makeRawClient(ctx, config, client, endpoint)
}

// Info show engine info
func (e *Engine) Info(ctx context.Context) (*enginetypes.Info, error) {
	r, err := e.client.Info(ctx)
	if err != nil {
		return nil, err
	}
	return &enginetypes.Info{
		ID:              r.ID,
		ServerVersion:   r.ServerVersion,
		OperatingSystem: r.OperatingSystem,
		Architecture:    r.Architecture,
		NCPU:            r.NCPU,
		MemTotal:        r.MemTotal,
	}, nil
}

// Ping test connection
func (e *Engine) Ping(ctx context.Context) error {
	_, err := e.client.Ping(ctx)
	return err
}

// CloseConn close connection
func (e *Engine) CloseConn() error {
	return e.client.Close()
}

func hostOf(endpoint string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, TCPPrefixKey), SockPrefixKey)
	return strings.NewReplacer("/", "-", ":", "-").Replace(host)
}
