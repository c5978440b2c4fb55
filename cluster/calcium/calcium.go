package calcium

import (
	"context"
	"net/http"
	"time"

	"github.com/projecteru2/barge/cloud"
	"github.com/projecteru2/barge/device"
	"github.com/projecteru2/barge/engine"
	"github.com/projecteru2/barge/engine/factory"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

// Calcium implements the cluster
type Calcium struct {
	config     types.Config
	engines    *factory.Factory
	cloud      cloud.API
	devices    device.Factory
	httpClient *http.Client
	cache      *utils.RunCache
	getEngine  func(ctx context.Context, params enginetypes.Params) (engine.API, error)
}

// Option customizes Calcium
type Option func(*Calcium)

// WithCloud replaces the cloud api client
func WithCloud(api cloud.API) Option {
	return func(c *Calcium) {
		c.cloud = api
	}
}

// WithDeviceFactory replaces how supervisor clients are made
func WithDeviceFactory(f device.Factory) Option {
	return func(c *Calcium) {
		c.devices = f
	}
}

// WithEngineGetter replaces how engines are reached
func WithEngineGetter(f func(ctx context.Context, params enginetypes.Params) (engine.API, error)) Option {
	return func(c *Calcium) {
		c.getEngine = f
	}
}

// WithHTTPClient replaces the client used for downloads
func WithHTTPClient(client *http.Client) Option {
	return func(c *Calcium) {
		c.httpClient = client
	}
}

// New returns a new cluster
func New(ctx context.Context, config types.Config, opts ...Option) (*Calcium, error) {
	logger := log.WithFunc("calcium.New")
	httpClient := utils.GetHTTPClient()
	c := &Calcium{
		config:     config,
		engines:    factory.New(config),
		cloud:      cloud.New(config.API, httpClient),
		devices:    device.NewFactory(config.Device),
		httpClient: httpClient,
		cache:      utils.NewRunCache(time.Hour, 10*time.Minute),
	}
	c.getEngine = c.engines.GetEngine
	for _, opt := range opts {
		opt(c)
	}
	logger.Debugf(ctx, "calcium ready, max concurrency %d", config.MaxConcurrency)
	return c, nil
}

// Finalizer closes every engine made
func (c *Calcium) Finalizer() {
	c.engines.Close(context.TODO())
	c.cache.Flush()
}

// GetEngine reaches the engine at endpoint, the configured TLS material
// applies to the default engine only
func (c *Calcium) GetEngine(ctx context.Context, endpoint string) (engine.API, error) {
	params := enginetypes.Params{Endpoint: endpoint}
	if endpoint == c.config.Docker.Endpoint {
		params.CA = c.config.Docker.CA
		params.Cert = c.config.Docker.Cert
		params.Key = c.config.Docker.Key
	}
	return c.getEngine(ctx, params)
}

func (c *Calcium) deviceTypeArch(ctx context.Context, deviceType string) (string, error) {
	return utils.Memoize(ctx, c.cache, "arch/"+deviceType, func(ctx context.Context) (string, error) {
		return c.cloud.GetDeviceTypeArch(ctx, deviceType)
	})
}

// cleanupContext survives cancellation of ctx, bounded by the global timeout
func (c *Calcium) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if c.config.GlobalTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.GlobalTimeout)
}
