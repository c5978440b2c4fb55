package factory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/projecteru2/barge/engine"
	"github.com/projecteru2/barge/engine/docker"
	"github.com/projecteru2/barge/engine/mocks/fakeengine"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
)

type factory func(ctx context.Context, config types.Config, endpoint, ca, cert, key string) (engine.API, error)

var engines = map[string]factory{
	docker.TCPPrefixKey:  docker.MakeClient,
	docker.SockPrefixKey: docker.MakeClient,
	fakeengine.PrefixKey: fakeengine.MakeClient,
}

// Factory makes engines for one run and keeps them until Close
type Factory struct {
	config types.Config
	cache  *utils.RunCache
}

// New .
func New(config types.Config) *Factory {
	return &Factory{
		config: config,
		cache:  utils.NewRunCache(12*time.Hour, 10*time.Minute),
	}
}

// GetEngine get engine, validated by a ping
func (f *Factory) GetEngine(ctx context.Context, params enginetypes.Params) (client engine.API, err error) {
	logger := log.WithFunc("factory.GetEngine").WithField("endpoint", params.Endpoint)
	cacheKey := params.CacheKey()
	if cached, ok := f.cache.Get(cacheKey); ok {
		return cached.(engine.API), nil
	}

	prefix, err := getEnginePrefix(params.Endpoint)
	if err != nil {
		return nil, err
	}
	if client, err = engines[prefix](ctx, f.config, params.Endpoint, params.CA, params.Cert, params.Key); err != nil {
		return nil, err
	}
	if err = validateEngine(ctx, client, f.config.ConnectionTimeout); err != nil {
		logger.Error(ctx, err, "engine is unavailable")
		return nil, err
	}
	client = engine.WithGlobalTimeout(client, f.config.GlobalTimeout)
	f.cache.Set(cacheKey, client)
	logger.Debugf(ctx, "store engine %v in cache", cacheKey)
	return client, nil
}

// Close closes every engine made
func (f *Factory) Close(ctx context.Context) {
	f.cache.Range(func(key string, value any) {
		if client, ok := value.(engine.API); ok {
			if err := client.CloseConn(); err != nil {
				log.WithFunc("factory.Close").Warnf(ctx, "close engine %s failed: %+v", key, err)
			}
		}
	})
	f.cache.Flush()
}

func validateEngine(ctx context.Context, engine engine.API, timeout time.Duration) (err error) {
	if timeout <= 0 {
		return engine.Ping(ctx)
	}
	utils.WithTimeout(ctx, timeout, func(ctx context.Context) {
		err = engine.Ping(ctx)
	})
	return err
}

func getEnginePrefix(endpoint string) (string, error) {
	for prefix := range engines {
		if strings.HasPrefix(endpoint, prefix) {
			return prefix, nil
		}
	}
	return "", types.NewDetailedErr(types.ErrNodeFormat, fmt.Sprintf("endpoint invalid %v", endpoint))
}
