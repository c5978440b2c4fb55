package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/docker/distribution/reference"
	dockertypes "github.com/docker/docker/api/types"
	dockerapi "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/docker/registry"

	"github.com/projecteru2/barge/engine"
	enginetypes "github.com/projecteru2/barge/engine/types"
	"github.com/projecteru2/barge/types"
)

type hijackedStream struct {
	conn io.Closer
	buf  io.Reader
}

func (h hijackedStream) Read(p []byte) (n int, err error) {
	return h.buf.Read(p)
}

func (h hijackedStream) Close() error {
	return h.conn.Close()
}

func mergeStream(stream io.Reader) io.Reader {
	outr, outw := io.Pipe()

	go func() {
		_, err := stdcopy.StdCopy(outw, outw, stream)
		_ = outw.CloseWithError(err)
	}()

	return outr
}

// mergeHijacked demuxes stdout and stderr of an exec into one stream
func mergeHijacked(resp dockertypes.HijackedResponse) io.ReadCloser {
	return hijackedStream{conn: resp.Conn, buf: mergeStream(resp.Reader)}
}

// makeEncodedAuthConfigFromRemote calculates encoded AuthConfig from registry and config
// See https://github.com/docker/cli/blob/16cccc30f95c8163f0749eba5a2e80b807041342/cli/command/registry.go#L67
func makeEncodedAuthConfigFromRemote(authConfigs map[string]types.AuthConfig, remote string) (string, error) {
	serverAddress, err := registryOf(remote)
	if err != nil {
		return "", err
	}
	if authConfig, exists := authConfigs[serverAddress]; exists {
		return encodeAuthToBase64(enginetypes.RegistryAuth{
			Username:      authConfig.Username,
			Password:      authConfig.Password,
			ServerAddress: serverAddress,
		})
	}
	return "dummy", nil
}

func registryOf(remote string) (string, error) {
	ref, err := reference.ParseNormalizedNamed(remote)
	if err != nil {
		return "", err
	}
	repoInfo, err := registry.ParseRepositoryInfo(ref)
	if err != nil {
		return "", err
	}
	return repoInfo.Index.Name, nil
}

// encodeAuthToBase64 serializes the auth configuration as JSON base64 payload
// See https://github.com/docker/cli/blob/master/cli/command/registry.go#L41
func encodeAuthToBase64(authConfig enginetypes.RegistryAuth) (string, error) {
	buf, err := json.Marshal(authConfig)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func makeBuildAuthConfigs(authConfigs map[string]types.AuthConfig) map[string]dockertypes.AuthConfig {
	r := map[string]dockertypes.AuthConfig{}
	for domain, conf := range authConfigs {
		r[domain] = dockertypes.AuthConfig{
			Username:      conf.Username,
			Password:      conf.Password,
			ServerAddress: domain,
		}
	}
	return r
}

func makeRawClient(_ context.Context, config types.Config, client *http.Client, endpoint string) (engine.API, error) {
	cli, err := dockerapi.NewClientWithOpts(
		dockerapi.WithHost(endpoint),
		dockerapi.WithVersion(config.Docker.APIVersion),
		dockerapi.WithHTTPClient(client),
	)
	if err != nil {
		return nil, err
	}
	return &Engine{cli, config}, nil
}
